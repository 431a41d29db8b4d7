package domain

import (
	"encoding/json"
	"strings"
)

// Credential is an opaque sender identity handed to the identity gateway.
// It always holds valid JSON: either the decoded line as written, or the raw
// line encoded as a JSON string.
type Credential json.RawMessage

// ParseCredential decodes a line as JSON when possible and otherwise keeps it
// as raw text. Surrounding whitespace is trimmed.
func ParseCredential(line string) Credential {
	line = strings.TrimSpace(line)
	if json.Valid([]byte(line)) {
		return Credential(line)
	}
	raw, _ := json.Marshal(line)
	return Credential(raw)
}

// IsText reports whether the credential was supplied as plain text.
func (c Credential) IsText() bool {
	return len(c) > 0 && c[0] == '"'
}

// Text returns the plain-text form for text credentials, or the JSON itself.
func (c Credential) Text() string {
	if c.IsText() {
		var s string
		if err := json.Unmarshal(c, &s); err == nil {
			return s
		}
	}
	return string(c)
}

// MarshalJSON keeps the credential embedded as JSON rather than base64.
func (c Credential) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return c, nil
}

// UnmarshalJSON stores the raw value as-is.
func (c *Credential) UnmarshalJSON(data []byte) error {
	*c = append((*c)[:0], data...)
	return nil
}
