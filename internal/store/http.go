package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient posts records to a remote persistence endpoint.
type HTTPClient struct {
	BaseURL string
	Token   string
	client  *http.Client
}

// NewHTTPClient creates a client with a default timeout.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Persist sends r as JSON to <base>/records.
func (h *HTTPClient) Persist(ctx context.Context, r Record) (Response, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Response{}, fmt.Errorf("http: encoding record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("http: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("http: failed to read response: %w", err)
	}

	out := Response{Success: resp.StatusCode < 400}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil && resp.StatusCode < 400 {
			return Response{}, fmt.Errorf("http: decoding response: %w", err)
		}
	}
	if resp.StatusCode >= 400 {
		if out.Error == "" {
			out.Error = fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		out.Success = false
		out.ID = r.ID
		return out, nil
	}
	if out.ID == "" {
		out.ID = r.ID
	}
	return out, nil
}
