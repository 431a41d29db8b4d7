package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/campaignd/internal/campaign"
	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/entries"
	"github.com/ashureev/campaignd/internal/store"
	"github.com/go-chi/chi/v5"
)

const formMemory = 1 << 20

// startRequest mirrors the /start-sending body. Delay, loop and the inline
// lists accept either JSON strings or native JSON values.
type startRequest struct {
	ThreadID     string          `json:"threadId"`
	Prefix       string          `json:"prefix"`
	Delay        json.RawMessage `json:"delay"`
	Loop         json.RawMessage `json:"loop"`
	AppStates    json.RawMessage `json:"appStates"`
	AppStateFile string          `json:"appStateFile"`
	Messages     json.RawMessage `json:"messages"`
	MessageFile  string          `json:"messageFile"`
}

// RegisterRoutes registers campaign routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/start-sending", h.StartSending)
	r.Get("/session-status/{sessionID}", h.SessionStatus)
	r.Post("/stop-session/{sessionID}", h.StopSession)
	r.Get("/sessions", h.ListSessions)
	r.Post("/upload-appstate", h.UploadCredentials)
	r.Post("/upload-message", h.UploadMessages)
}

// StartSending validates a campaign request and launches it.
func (h *Handler) StartSending(w http.ResponseWriter, r *http.Request) {
	req, err := decodeStartRequest(r)
	if err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	in := campaign.StartInput{
		Destination:  req.ThreadID,
		Prefix:       req.Prefix,
		DelaySeconds: rawScalar(req.Delay),
		Loop:         rawScalar(req.Loop) == "true",
	}

	if in.InlineCredentials, err = entries.CredentialsFromJSON(req.AppStates); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.InlineMessages, err = entries.MessagesFromJSON(req.Messages); err != nil {
		Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	in.FileCredentials = h.loadCredentialFile(r.Context(), req.AppStateFile)
	in.FileMessages = h.loadMessageFile(r.Context(), req.MessageFile)

	snap, err := h.engine.Start(in)
	if err != nil {
		if errors.Is(err, campaign.ErrInvalidInput) {
			Fail(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to start campaign", "error", err)
		Fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("Campaign started", "session_id", snap.ID, "total", snap.TotalPlanned, "loop", snap.Loop)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sessionId": snap.ID,
		"message":   "Campaign started",
		"stats": map[string]int{
			"credentialCount": snap.CredentialCount,
			"messageCount":    snap.MessageCount,
			"total":           snap.TotalPlanned,
		},
	})
}

// SessionStatus reports a point-in-time view of one session.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.sessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, statusBody(snap))
}

// StopSession stops a session and reports its counts at that moment.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Stop(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.sessionError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Session stopped",
		"status":      snap.Status,
		"sentCount":   snap.SentCount,
		"failedCount": snap.FailedCount,
	})
}

// ListSessions returns the status of every known session.
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	snaps := h.engine.List()
	out := make([]map[string]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		body := statusBody(snap)
		body["sessionId"] = snap.ID
		out = append(out, body)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"sessions": out,
	})
}

func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, campaign.ErrNotFound) {
		Fail(w, http.StatusNotFound, "Session not found")
		return
	}
	slog.Error("Session lookup failed", "error", err)
	Fail(w, http.StatusInternalServerError, err.Error())
}

func statusBody(snap domain.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"success":           true,
		"status":            snap.Status,
		"sentCount":         snap.SentCount,
		"failedCount":       snap.FailedCount,
		"totalMessages":     snap.TotalPlanned,
		"progress":          snap.Progress(),
		"currentCredential": snap.CredentialIndex + 1,
		"currentMessage":    snap.MessageIndex + 1,
	}
}

// loadCredentialFile returns the parsed upload, or nil when the reference is
// empty or cannot be loaded. A bad reference is not a request error; the
// inline list may still supply entries.
func (h *Handler) loadCredentialFile(ctx context.Context, name string) []domain.Credential {
	if !isFileRef(name) {
		return nil
	}
	creds, err := h.repo.LoadCredentials(ctx, name)
	if err != nil {
		logFileError("credentials", name, err)
		return nil
	}
	return creds
}

func (h *Handler) loadMessageFile(ctx context.Context, name string) []string {
	if !isFileRef(name) {
		return nil
	}
	msgs, err := h.repo.LoadMessages(ctx, name)
	if err != nil {
		logFileError("messages", name, err)
		return nil
	}
	return msgs
}

func logFileError(kind, name string, err error) {
	if errors.Is(err, store.ErrUploadNotFound) {
		slog.Warn("Referenced upload not found", "kind", kind, "filename", name)
		return
	}
	slog.Error("Failed to load upload", "kind", kind, "filename", name, "error", err)
}

// isFileRef filters out the empty and "undefined" references browsers send.
func isFileRef(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && name != "undefined"
}

func decodeStartRequest(r *http.Request) (*startRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(formMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return &startRequest{
			ThreadID:     r.FormValue("threadId"),
			Prefix:       r.FormValue("prefix"),
			Delay:        formValue(r, "delay"),
			Loop:         formValue(r, "loop"),
			AppStates:    formValue(r, "appStates"),
			AppStateFile: r.FormValue("appStateFile"),
			Messages:     formValue(r, "messages"),
			MessageFile:  r.FormValue("messageFile"),
		}, nil
	default:
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return &req, nil
	}
}

func formValue(r *http.Request, key string) json.RawMessage {
	if _, ok := r.Form[key]; !ok {
		return nil
	}
	raw, _ := json.Marshal(r.FormValue(key))
	return raw
}

// rawScalar flattens a JSON string, number or bool to its text form.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}
