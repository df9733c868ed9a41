package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Task statuses reported by the processing pipeline
const (
	TaskStatusPending   = "pending"
	TaskStatusParsing   = "parsing"
	TaskStatusChunking  = "chunking"
	TaskStatusEmbedding = "embedding"
	TaskStatusComplete  = "complete"
	TaskStatusError     = "error"
)

// UploadTask identifies a queued processing job
type UploadTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatus is the current state of a processing job
type TaskStatus struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Progress   string `json:"progress"`
	DocumentID string `json:"document_id"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Terminal reports whether processing has finished, either way
func (t *TaskStatus) Terminal() bool {
	return t.Status == TaskStatusComplete || t.Status == TaskStatusError
}

// Document summarizes an uploaded document
type Document struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	FileType     string `json:"file_type"`
	FileSize     *int64 `json:"file_size"`
	UploadTime   string `json:"upload_time"`
	Status       string `json:"processing_status"`
	ChunkCount   int    `json:"chunk_count"`
}

type documentListResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

type ingestURLRequest struct {
	URL string `json:"url"`
}

// UploadDocument uploads a file for processing and returns the task to
// poll. The backend enforces type and size limits.
func (c *Client) UploadDocument(ctx context.Context, path string) (*UploadTask, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	zap.S().Debugw("document_upload", "file", filepath.Base(path))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, decodeError(resp.StatusCode, raw)
	}

	var task UploadTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	return &task, nil
}

// IngestURL asks the backend to fetch and process a web page
func (c *Client) IngestURL(ctx context.Context, pageURL string) (*UploadTask, error) {
	var task UploadTask
	if err := c.doJSON(ctx, http.MethodPost, "/api/documents/ingest-url", ingestURLRequest{URL: pageURL}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskStatus returns the processing state of an upload task
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents/status/"+url.PathEscape(taskID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForTask polls task status until processing reaches a terminal
// state or the context is cancelled. The terminal status is returned
// even when it is an error status; callers inspect Status themselves.
func (c *Client) WaitForTask(ctx context.Context, taskID string, interval time.Duration) (*TaskStatus, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if status.Terminal() {
			zap.S().Debugw("task_finished", "task_id", taskID, "status", status.Status)
			return status, nil
		}
		zap.S().Debugw("task_polling", "task_id", taskID, "status", status.Status, "progress", status.Progress)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListDocuments returns all uploaded documents
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var resp documentListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// DeleteDocument removes a document and its chunks
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(documentID), nil, nil)
}
