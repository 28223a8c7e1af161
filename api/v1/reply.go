package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

const invalidResponseMessage = "Invalid server response"

// Reply is a decoded JSON object returned by the API.
type Reply map[string]any

func invalidReply() Reply {
	return Reply{"error": 1, "message": invalidResponseMessage}
}

// Decode converts r into v, typically one of the structs in types.go.
func (r Reply) Decode(v any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return xerrors.Errorf("failed to marshal reply: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return xerrors.Errorf("failed to unmarshal reply: %w", err)
	}
	return nil
}

func (r Reply) Status() string {
	s, _ := r["status"].(string)
	return s
}

// IsError reports whether the reply carries an error, either from the
// service ({status: error}) or from the client ({error: 1}).
func (r Reply) IsError() bool {
	if r.Status() == "error" {
		return true
	}
	switch v := r["error"].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case json.Number:
		return v.String() != "0"
	default:
		return fmt.Sprint(v) != "0"
	}
}

func (r Reply) ErrorMessage() string {
	if m, ok := r["message"].(string); ok && m != "" {
		return m
	}
	if m, ok := r["error"].(string); ok {
		return m
	}
	return ""
}

func decodeReply(body string) (Reply, error) {
	if strings.TrimSpace(body) == "" {
		return nil, xerrors.New("empty body")
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(body)))
	decoder.UseNumber()

	var reply Reply
	if err := decoder.Decode(&reply); err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, xerrors.New("null body")
	}
	return reply, nil
}
