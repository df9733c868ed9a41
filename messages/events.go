package messages

// StreamEventType represents the type of streaming event
type StreamEventType string

const (
	// EventTypeToken represents an incremental fragment of the answer
	EventTypeToken StreamEventType = "token"
	// EventTypeSource represents a citation chunk backing part of the answer
	EventTypeSource StreamEventType = "source"
	// EventTypeDone represents stream completion with usage metadata
	EventTypeDone StreamEventType = "done"
	// EventTypeError represents an error that ended the stream
	EventTypeError StreamEventType = "error"
)

// StreamEvent represents a single event in the answer stream.
// A turn carries zero or more token and source events followed by
// exactly one terminal event (done or error).
type StreamEvent struct {
	Type     StreamEventType
	Token    string         // For incremental answer fragments
	Source   *SourceChunk   // For citation events
	Metadata *UsageMetadata // For done events; nil when the payload was absent
	Err      string         // For error events
}

// Terminal reports whether the event ends the turn
func (e *StreamEvent) Terminal() bool {
	return e.Type == EventTypeDone || e.Type == EventTypeError
}
