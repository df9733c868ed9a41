package stream

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docchat/messages"
)

// State is the lifecycle of one streamed answer
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Active reports whether a turn is currently in flight
func (s State) Active() bool {
	return s == StateConnecting || s == StateStreaming
}

// Terminal reports whether the turn has ended
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// transport is the slice of Transport the accumulator drives.
// Satisfied by *Transport; tests substitute scripted fakes.
type transport interface {
	Connect(ctx context.Context, req *Request) error
	Close()
}

// transportFactory builds a fresh transport for each turn
type transportFactory func(handler EventHandler) transport

// Snapshot is a point-in-time copy of the accumulated result
type Snapshot struct {
	State     State
	Message   string
	Sources   []messages.SourceChunk
	Metadata  *messages.UsageMetadata
	Error     string
	IsPartial bool
}

// Accumulator owns the in-memory representation of "the response so far"
// for a chat session: the accumulated answer text, the ordered citation
// list, terminal metadata or error, and the public state machine.
//
// Events are applied strictly in arrival order from the transport's
// single reader goroutine. The mutex exists so UI goroutines can read
// the accumulated result while a turn is in flight, not because events
// race each other. A fresh transport is constructed for every Send and
// disposed on the terminal event; transports are never reused.
type Accumulator struct {
	newTransport transportFactory

	mu         sync.Mutex
	state      State
	generation int
	message    strings.Builder
	sources    []messages.SourceChunk
	metadata   *messages.UsageMetadata
	errMsg     string
	isPartial  bool
	transport  transport
}

// NewAccumulator creates an accumulator that opens streams against the
// given backend base URL. A nil client falls back to http.DefaultClient.
func NewAccumulator(baseURL string, client *http.Client) *Accumulator {
	a := &Accumulator{state: StateIdle}
	a.newTransport = func(handler EventHandler) transport {
		return NewTransport(baseURL, client, handler)
	}
	return a
}

// Send starts a new turn: it validates the request, resets the
// accumulated result, and opens a fresh transport. Validation failures
// are reflected in the error field and returned; they never open a
// transport. Send returns once the initiating call has resolved, and
// the stream continues in the background until a terminal event or Stop.
func (a *Accumulator) Send(ctx context.Context, sessionID, message string, focus *messages.FocusContext) error {
	a.mu.Lock()
	if sessionID == "" {
		a.errMsg = "No session ID provided"
		a.mu.Unlock()
		return newValidationError("No session ID provided")
	}
	if a.state.Active() {
		a.errMsg = "Already streaming a message"
		a.mu.Unlock()
		return newValidationError("Already streaming a message")
	}
	if focus != nil && !focus.Valid() {
		a.errMsg = "Invalid focus context"
		a.mu.Unlock()
		return newValidationError("Invalid focus context")
	}

	a.generation++
	gen := a.generation
	a.message.Reset()
	a.sources = nil
	a.metadata = nil
	a.errMsg = ""
	a.isPartial = false
	a.state = StateConnecting

	tr := a.newTransport(func(event *messages.StreamEvent) {
		a.apply(gen, event)
	})
	a.transport = tr
	a.mu.Unlock()

	if err := tr.Connect(ctx, &Request{SessionID: sessionID, Message: message, Focus: focus}); err != nil {
		// Cannot happen for a fresh transport, but don't leave the
		// state machine stuck in Connecting if it somehow does.
		a.mu.Lock()
		if gen == a.generation && a.state == StateConnecting {
			a.errMsg = err.Error()
			a.state = StateFailed
			a.transport = nil
		}
		a.mu.Unlock()
		tr.Close()
		return err
	}

	a.mu.Lock()
	if gen == a.generation && a.state == StateConnecting {
		a.state = StateStreaming
	}
	a.mu.Unlock()
	return nil
}

// apply folds one event into the accumulated result. Events from a
// superseded turn (stale generation) or after a terminal state are
// discarded, which is what makes Stop's no-mutation guarantee hold even
// if the transport still had buffered data in flight.
func (a *Accumulator) apply(gen int, event *messages.StreamEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation || !a.state.Active() {
		return
	}

	switch event.Type {
	case messages.EventTypeToken:
		a.message.WriteString(event.Token)
		a.state = StateStreaming

	case messages.EventTypeSource:
		if event.Source != nil {
			a.sources = append(a.sources, *event.Source)
		}

	case messages.EventTypeDone:
		a.metadata = event.Metadata
		a.state = StateCompleted
		a.closeTransportLocked()
		zap.S().Debugw("stream_completed",
			"message_length", a.message.Len(),
			"sources", len(a.sources),
		)

	case messages.EventTypeError:
		a.errMsg = event.Err
		a.isPartial = a.message.Len() > 0
		a.state = StateFailed
		a.closeTransportLocked()
		zap.S().Debugw("stream_failed", "error", event.Err, "partial", a.isPartial)
	}
}

// Stop cancels the in-flight turn. It closes the transport before
// returning and freezes the partial message; calling it outside
// Connecting/Streaming is a no-op.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.Active() {
		return
	}
	a.generation++
	a.isPartial = a.message.Len() > 0
	a.state = StateCancelled
	a.closeTransportLocked()
}

// Clear resets the accumulated message, sources, and metadata. The error
// field and any in-flight transport are left untouched.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.message.Reset()
	a.sources = nil
	a.metadata = nil
}

// ClearError resets the error field
func (a *Accumulator) ClearError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errMsg = ""
}

// Close disposes the accumulator on owner teardown. Any in-flight turn
// is cancelled and no event handler fires afterwards.
func (a *Accumulator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	if a.state.Active() {
		a.isPartial = a.message.Len() > 0
		a.state = StateCancelled
	}
	a.closeTransportLocked()
}

func (a *Accumulator) closeTransportLocked() {
	if a.transport != nil {
		a.transport.Close()
		a.transport = nil
	}
}

// State returns the current lifecycle state
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsStreaming reports whether a turn is in flight
func (a *Accumulator) IsStreaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Active()
}

// Message returns the answer accumulated so far: the concatenation, in
// arrival order, of every token received for the current turn.
func (a *Accumulator) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message.String()
}

// Sources returns a copy of the citation chunks in arrival order,
// duplicates preserved.
func (a *Accumulator) Sources() []messages.SourceChunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copySources(a.sources)
}

// Metadata returns the terminal usage metadata, or nil before completion
// or when the done payload was absent.
func (a *Accumulator) Metadata() *messages.UsageMetadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.metadata == nil {
		return nil
	}
	meta := *a.metadata
	return &meta
}

// Err returns the current error message, or "" when there is none
func (a *Accumulator) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

// IsPartial reports whether a cancelled or failed turn had already
// accumulated answer text.
func (a *Accumulator) IsPartial() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isPartial
}

// Snapshot returns a consistent copy of the full accumulated result
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		State:     a.state,
		Message:   a.message.String(),
		Sources:   copySources(a.sources),
		Error:     a.errMsg,
		IsPartial: a.isPartial,
	}
	if a.metadata != nil {
		meta := *a.metadata
		snap.Metadata = &meta
	}
	return snap
}

func copySources(sources []messages.SourceChunk) []messages.SourceChunk {
	if sources == nil {
		return nil
	}
	result := make([]messages.SourceChunk, len(sources))
	copy(result, sources)
	return result
}
