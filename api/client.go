package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client is a thin REST client for the docchat backend. It covers
// session and document management; streamed answers go through the
// stream package, which shares this client's *http.Client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client. A zero timeout means no limit
// per request beyond the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client so the streaming transport
// can reuse its transport settings. Streaming must not inherit the CRUD
// timeout, so the returned client has none.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c.http.Transport}
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Error is a structured failure response from the backend
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// errorBody matches both backend error shapes: a bare
// {"error", "message"} object and the same object nested under "detail".
type errorBody struct {
	Err     string `json:"error"`
	Message string `json:"message"`
	Detail  *struct {
		Err     string `json:"error"`
		Message string `json:"message"`
	} `json:"detail"`
}

func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != nil {
			apiErr.Code = parsed.Detail.Err
			apiErr.Message = parsed.Detail.Message
		} else {
			apiErr.Code = parsed.Err
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}

// doJSON performs a JSON round trip against the backend. A nil out
// discards the response body (204 endpoints).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	zap.S().Debugw("api_request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		apiErr := decodeError(resp.StatusCode, raw)
		zap.S().Debugw("api_error", "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
