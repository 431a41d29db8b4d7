// Package entries turns uploaded files and inline request fields into the
// ordered credential and message lists a campaign iterates over.
package entries

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/campaignd/internal/domain"
)

// Lines splits content into non-blank lines, dropping a trailing CR.
func Lines(content string) []string {
	raw := strings.Split(content, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Credentials parses one credential per line, JSON-decoded where possible.
func Credentials(content string) []domain.Credential {
	lines := Lines(content)
	out := make([]domain.Credential, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.ParseCredential(line))
	}
	return out
}

// Messages returns one message body per non-blank line, verbatim.
func Messages(content string) []string {
	return Lines(content)
}

// CredentialsFromJSON decodes an inline credential field. A JSON string is
// split into lines; a JSON array yields one credential per element.
func CredentialsFromJSON(raw json.RawMessage) ([]domain.Credential, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode credential text: %w", err)
		}
		return Credentials(s), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode credential list: %w", err)
		}
		out := make([]domain.Credential, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, domain.ParseCredential(s))
				continue
			}
			out = append(out, domain.Credential(item))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("credentials must be a string or an array")
	}
}

// MessagesFromJSON decodes an inline message field: a newline-separated
// string or an array of strings.
func MessagesFromJSON(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode message text: %w", err)
		}
		return Messages(s), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				s = string(item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("messages must be a string or an array")
	}
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
