package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"docchat/messages"
)

// Session is a chat session as the backend reports it
type Session struct {
	ID           string  `json:"id"`
	DocumentID   *string `json:"document_id"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	MessageCount int     `json:"message_count"`
}

// SessionDetail is a session with its recent message history
type SessionDetail struct {
	ID         string                 `json:"id"`
	DocumentID *string                `json:"document_id"`
	CreatedAt  string                 `json:"created_at"`
	UpdatedAt  string                 `json:"updated_at"`
	Messages   []messages.ChatMessage `json:"messages"`
}

// SessionStats aggregates usage accounting for one session
type SessionStats struct {
	SessionID     string  `json:"session_id"`
	TotalMessages int     `json:"total_messages"`
	TotalTokens   int     `json:"total_tokens"`
	CachedTokens  int     `json:"cached_tokens"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type createSessionRequest struct {
	DocumentID *string `json:"document_id,omitempty"`
}

type createSessionResponse struct {
	Session Session `json:"session"`
}

type sessionListResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

type messageListResponse struct {
	Messages []messages.ChatMessage `json:"messages"`
	Total    int                    `json:"total"`
}

// CreateSession creates a chat session, optionally bound to a document
func (c *Client) CreateSession(ctx context.Context, documentID string) (*Session, error) {
	req := createSessionRequest{}
	if documentID != "" {
		req.DocumentID = &documentID
	}
	var resp createSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// ListSessions returns sessions, newest first. limit <= 0 returns all.
func (c *Client) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	path := "/api/chat/sessions"
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprint(offset))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp sessionListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// GetSession returns session details with recent history
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	var resp SessionDetail
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSession deletes a session and all its messages
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chat/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// SessionStats returns token and cost accounting for a session
func (c *Client) SessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	var resp SessionStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(sessionID)+"/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionMessages returns a page of session history, oldest first
func (c *Client) SessionMessages(ctx context.Context, sessionID string, limit, offset int) ([]messages.ChatMessage, error) {
	path := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprint(offset))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var resp messageListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
