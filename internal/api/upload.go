package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/entries"
	"github.com/google/uuid"
)

// UploadCredentials stores a credential file (form field "appstateFile").
func (h *Handler) UploadCredentials(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.receiveUpload(w, r, "appstateFile", domain.UploadCredentials)
	if !ok {
		return
	}
	count := len(entries.Credentials(upload.Content))
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  fmt.Sprintf("%d credential sets uploaded", count),
		"count":    count,
		"filename": upload.Name,
	})
}

// UploadMessages stores a message file (form field "msgFile") and echoes
// the parsed messages back.
func (h *Handler) UploadMessages(w http.ResponseWriter, r *http.Request) {
	upload, ok := h.receiveUpload(w, r, "msgFile", domain.UploadMessages)
	if !ok {
		return
	}
	messages := entries.Messages(upload.Content)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  fmt.Sprintf("%d messages uploaded", len(messages)),
		"count":    len(messages),
		"filename": upload.Name,
		"messages": messages,
	})
}

func (h *Handler) receiveUpload(w http.ResponseWriter, r *http.Request, field string, kind domain.UploadKind) (*domain.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Uploads.MaxBytes)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		Fail(w, http.StatusBadRequest, "no file uploaded")
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		Fail(w, http.StatusBadRequest, "no file uploaded")
		return nil, false
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Debug("Failed to close uploaded file", "error", closeErr)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		slog.Error("Failed to read upload", "kind", kind, "error", err)
		Fail(w, http.StatusBadRequest, "failed to read file")
		return nil, false
	}

	upload := &domain.Upload{
		Name:         uploadName(header.Filename),
		Kind:         kind,
		OriginalName: header.Filename,
		Content:      string(content),
	}
	if err := h.repo.SaveUpload(r.Context(), upload); err != nil {
		slog.Error("Failed to store upload", "kind", kind, "error", err)
		Fail(w, http.StatusInternalServerError, "failed to store file")
		return nil, false
	}

	slog.Info("Upload stored", "kind", kind, "filename", upload.Name, "bytes", len(content))
	return upload, true
}

// uploadName builds a unique stored name that keeps the original extension.
func uploadName(original string) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], filepath.Ext(original))
}
