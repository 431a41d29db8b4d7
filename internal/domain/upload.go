package domain

import (
	"time"
)

// UploadKind separates credential files from message files.
type UploadKind string

// Upload kinds accepted by the file stores.
const (
	UploadCredentials UploadKind = "credentials"
	UploadMessages    UploadKind = "messages"
)

// Upload is a stored credential or message file.
type Upload struct {
	Name         string     `json:"filename"`
	Kind         UploadKind `json:"kind"`
	OriginalName string     `json:"original_name"`
	Content      string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}
