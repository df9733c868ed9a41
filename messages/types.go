package messages

// SourceChunk references a document excerpt that backs part of an answer.
// The client treats it as opaque: chunks are never mutated or de-duplicated,
// and arrival order is preserved.
type SourceChunk struct {
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	Similarity *float64 `json:"similarity,omitempty"`
	Text       string   `json:"text,omitempty"`
}

// UsageMetadata is the accounting attached to a completed turn
type UsageMetadata struct {
	TokenCount int     `json:"token_count"`
	CostUSD    float64 `json:"cost_usd"`
	Cached     bool    `json:"cached"`
}

// FocusContext is an optional window of surrounding document text sent
// with a message to bias retrieval toward the reader's position.
type FocusContext struct {
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	ContextText string `json:"context_text"`
}

// Valid reports whether the focus window describes a usable range
func (f *FocusContext) Valid() bool {
	return f.StartChar >= 0 && f.EndChar >= f.StartChar
}

// ChatMessage represents a persisted message from session history
type ChatMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"created_at"`
	Sources   []SourceChunk `json:"source_chunks,omitempty"`
}

// Standard role constants
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)
