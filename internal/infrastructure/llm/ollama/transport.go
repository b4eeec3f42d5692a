package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	errorBodyLimit = 2048
	snippetChars   = 120
)

// errorEnvelope is how Ollama reports failures, including some sent with 200.
type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	req, err := newJSONRequest(ctx, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}
	return decodeReply(operation, raw, out)
}

func newJSONRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func decodeReply(operation string, raw []byte, out any) error {
	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("ollama %s: %w", operation, errors.New(envelope.Error))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response %q: %w", operation, snippet(raw), err)
	}
	return nil
}

// statusError keeps the message of a JSON error body, or the raw body otherwise.
func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	body := strings.TrimSpace(string(raw))
	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		body = envelope.Error
	}
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

func snippet(raw []byte) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if runes := []rune(s); len(runes) > snippetChars {
		return string(runes[:snippetChars]) + "..."
	}
	return s
}
