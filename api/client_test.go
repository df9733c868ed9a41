package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat/sessions" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Decoding request: %v", err)
		}
		if req.DocumentID == nil || *req.DocumentID != "doc-1" {
			t.Errorf("document_id = %v", req.DocumentID)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"session": map[string]any{
				"id":            "session-1",
				"document_id":   "doc-1",
				"created_at":    "2026-01-25T10:00:00Z",
				"updated_at":    "2026-01-25T10:00:00Z",
				"message_count": 0,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	session, err := client.CreateSession(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID != "session-1" {
		t.Errorf("session.ID = %q", session.ID)
	}
	if session.DocumentID == nil || *session.DocumentID != "doc-1" {
		t.Errorf("session.DocumentID = %v", session.DocumentID)
	}
}

func TestListSessionsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q", got)
		}
		if got := r.URL.Query().Get("offset"); got != "20" {
			t.Errorf("offset = %q", got)
		}
		json.NewEncoder(w).Encode(sessionListResponse{
			Sessions: []Session{{ID: "s1"}, {ID: "s2"}},
			Total:    2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	sessions, err := client.ListSessions(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s1" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestErrorDecodingDetailShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail": {"error": "Not found", "message": "Session not found. It may have been deleted."}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.GetSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if apiErr.Status != 404 || apiErr.Code != "Not found" {
		t.Errorf("Error = %+v", apiErr)
	}
	if apiErr.Message != "Session not found. It may have been deleted." {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestErrorDecodingFlatShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": "Rate limited", "message": "Too many requests"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	err := client.DeleteSession(context.Background(), "s1")
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("Expected *Error, got %T %v", err, err)
	}
	if apiErr.Status != 429 || apiErr.Message != "Too many requests" {
		t.Errorf("Error = %+v", apiErr)
	}
}

func TestUploadDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "notes.md" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(UploadTask{TaskID: "task-1", Status: TaskStatusPending})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# notes\n"), 0644); err != nil {
		t.Fatal(err)
	}

	client := NewClient(server.URL, 5*time.Second)
	task, err := client.UploadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadDocument failed: %v", err)
	}
	if task.TaskID != "task-1" || task.Status != TaskStatusPending {
		t.Errorf("task = %+v", task)
	}
}

func TestWaitForTaskPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	statuses := []string{TaskStatusPending, TaskStatusEmbedding, TaskStatusComplete}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		idx := int(n) - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		json.NewEncoder(w).Encode(TaskStatus{
			TaskID: "task-1",
			Status: statuses[idx],
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	status, err := client.WaitForTask(context.Background(), "task-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTask failed: %v", err)
	}
	if status.Status != TaskStatusComplete {
		t.Errorf("status = %q", status.Status)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 polls, got %d", calls.Load())
	}
}

func TestWaitForTaskReturnsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TaskStatus{
			TaskID: "task-1",
			Status: TaskStatusError,
			Error:  "unsupported encoding",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	status, err := client.WaitForTask(context.Background(), "task-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTask failed: %v", err)
	}
	if status.Status != TaskStatusError || status.Error != "unsupported encoding" {
		t.Errorf("status = %+v", status)
	}
}

func TestWaitForTaskHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TaskStatus{TaskID: "task-1", Status: TaskStatusPending})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.WaitForTask(ctx, "task-1", 10*time.Millisecond)
	if err == nil {
		t.Fatal("Expected context error")
	}
}

func TestSessionMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/sessions/s1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"messages": [
			{"id": "m1", "role": "user", "content": "hi", "created_at": "2026-01-25T10:01:00Z"},
			{"id": "m2", "role": "assistant", "content": "hello", "created_at": "2026-01-25T10:01:05Z",
			 "source_chunks": [{"chunk_id": "c1", "document_id": "d1"}]}
		], "total": 2, "limit": 50, "offset": 0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	msgs, err := client.SessionMessages(context.Background(), "s1", 0, 0)
	if err != nil {
		t.Fatalf("SessionMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" || len(msgs[1].Sources) != 1 {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}
