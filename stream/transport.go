package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/messages"
)

// EventHandler receives translated stream events, one at a time, in the
// exact order the transport read them off the wire.
type EventHandler func(*messages.StreamEvent)

// Request describes one chat turn
type Request struct {
	SessionID string
	Message   string
	Focus     *messages.FocusContext
}

// sendMessageBody is the JSON payload of the initiating POST
type sendMessageBody struct {
	Message      string                 `json:"message"`
	FocusContext *messages.FocusContext `json:"focus_context,omitempty"`
}

// Transport owns the lifecycle of a single server-push event connection
// for one chat turn: it issues the initiating request, reads the event
// channel, translates each wire event into a messages.StreamEvent, and
// tears the connection down exactly once. A transport is never reused.
type Transport struct {
	baseURL string
	client  *http.Client
	handler EventHandler

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	body      io.ReadCloser
	closed    atomic.Bool
}

// NewTransport creates a transport bound to a single event handler.
// The handler is invoked from the transport's reader goroutine.
func NewTransport(baseURL string, client *http.Client, handler EventHandler) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		baseURL: baseURL,
		client:  client,
		handler: handler,
	}
}

// Connect issues the turn-initiating call and starts reading the event
// channel. It returns ErrAlreadyConnected if the transport already owns
// a connection. Failures to establish the connection are not returned:
// they surface as a single synthesized error event, after which the
// transport behaves as if it had received a terminal event.
func (t *Transport) Connect(ctx context.Context, req *Request) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.connected = true
	t.mu.Unlock()

	payload, err := json.Marshal(sendMessageBody{
		Message:      req.Message,
		FocusContext: req.Focus,
	})
	if err != nil {
		t.fail(fmt.Sprintf("Connection failed: %v", err))
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)

	url := fmt.Sprintf("%s/api/chat/sessions/%s/messages", t.baseURL, req.SessionID)
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		cancel()
		t.fail(fmt.Sprintf("Connection failed: %v", err))
		return nil
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("X-Request-ID", requestID)

	zap.S().Debugw("stream_connecting",
		"session_id", req.SessionID,
		"request_id", requestID,
		"focus", req.Focus != nil,
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		cancel()
		t.fail(fmt.Sprintf("Connection failed: %v", err))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.fail(fmt.Sprintf("Connection failed: unexpected status %d", resp.StatusCode))
		return nil
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		cancel()
		resp.Body.Close()
		return nil
	}
	t.cancel = cancel
	t.body = resp.Body
	t.mu.Unlock()

	go t.readLoop(resp.Body)
	return nil
}

// Close tears down the connection. It is idempotent, safe before Connect,
// and stops event dispatch: the reader checks the closed flag before
// every handler call, so buffered wire data is discarded after Close.
func (t *Transport) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.mu.Lock()
	cancel, body := t.cancel, t.body
	t.cancel, t.body = nil, nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}
}

// readLoop reads SSE frames until a terminal event, close, or channel
// fault. Running on a single goroutine preserves arrival order.
func (t *Transport) readLoop(body io.ReadCloser) {
	defer body.Close()

	scanner := newSSEScanner(body)
	for {
		frame, ok := scanner.next()
		if !ok {
			break
		}
		if t.closed.Load() {
			return
		}
		event := translate(frame)
		if event == nil {
			continue
		}
		t.dispatch(event)
		if event.Terminal() {
			return
		}
	}

	if t.closed.Load() {
		return
	}
	if err := scanner.err(); err != nil {
		zap.S().Debugw("stream_read_fault", "error", err)
	}
	// The channel died without a terminal event
	t.dispatch(&messages.StreamEvent{Type: messages.EventTypeError, Err: "Connection lost"})
}

func (t *Transport) dispatch(event *messages.StreamEvent) {
	if t.closed.Load() {
		return
	}
	t.handler(event)
}

func (t *Transport) fail(message string) {
	t.dispatch(&messages.StreamEvent{Type: messages.EventTypeError, Err: message})
}

// tokenPayload accepts both payload spellings the backend has used.
// Pointers distinguish an absent field from a legal empty-string token.
type tokenPayload struct {
	Content *string `json:"content"`
	Token   *string `json:"token"`
}

type errorPayload struct {
	Message *string `json:"message"`
	Err     *string `json:"error"`
}

// translate maps one wire frame to at most one stream event.
// Malformed payloads on non-terminal frames are logged and dropped; the
// stream continues. Malformed terminal payloads degrade to a done event
// with absent metadata rather than killing the turn.
func translate(frame sseFrame) *messages.StreamEvent {
	switch frame.name {
	case "token":
		var payload tokenPayload
		if err := json.Unmarshal([]byte(frame.data), &payload); err != nil {
			zap.S().Debugw("stream_event_dropped", "event", frame.name, "error", err)
			return nil
		}
		text := payload.Content
		if text == nil {
			text = payload.Token
		}
		if text == nil {
			zap.S().Debugw("stream_event_dropped", "event", frame.name, "reason", "no token field")
			return nil
		}
		return &messages.StreamEvent{Type: messages.EventTypeToken, Token: *text}

	case "source":
		var chunk messages.SourceChunk
		if err := json.Unmarshal([]byte(frame.data), &chunk); err != nil {
			zap.S().Debugw("stream_event_dropped", "event", frame.name, "error", err)
			return nil
		}
		return &messages.StreamEvent{Type: messages.EventTypeSource, Source: &chunk}

	case "done":
		if frame.data == "" {
			return &messages.StreamEvent{Type: messages.EventTypeDone}
		}
		var meta messages.UsageMetadata
		if err := json.Unmarshal([]byte(frame.data), &meta); err != nil {
			zap.S().Warnw("stream_terminal_malformed", "event", frame.name, "error", err)
			return &messages.StreamEvent{Type: messages.EventTypeDone}
		}
		return &messages.StreamEvent{Type: messages.EventTypeDone, Metadata: &meta}

	case "error":
		var payload errorPayload
		if err := json.Unmarshal([]byte(frame.data), &payload); err != nil {
			zap.S().Warnw("stream_terminal_malformed", "event", frame.name, "error", err)
			return &messages.StreamEvent{Type: messages.EventTypeDone}
		}
		msg := payload.Message
		if msg == nil {
			msg = payload.Err
		}
		if msg == nil {
			zap.S().Warnw("stream_terminal_malformed", "event", frame.name, "reason", "no message field")
			return &messages.StreamEvent{Type: messages.EventTypeDone}
		}
		return &messages.StreamEvent{Type: messages.EventTypeError, Err: *msg}

	default:
		zap.S().Debugw("stream_event_dropped", "event", frame.name, "reason", "unknown event type")
		return nil
	}
}
