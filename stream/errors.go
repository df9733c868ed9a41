package stream

// ErrorKind classifies failures in the streaming core
type ErrorKind string

const (
	// KindValidation marks requests rejected before a transport was opened
	KindValidation ErrorKind = "validation"
	// KindTransport marks initiating-call or channel failures
	KindTransport ErrorKind = "transport"
	// KindProtocol marks malformed event payloads, recovered locally
	KindProtocol ErrorKind = "protocol"
	// KindServer marks explicit error events from the backend
	KindServer ErrorKind = "server"
)

// Error is a classified streaming failure
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrAlreadyConnected is returned by Transport.Connect when the transport
// already owns an open connection. A transport serves exactly one turn.
var ErrAlreadyConnected = &Error{Kind: KindValidation, Message: "transport already connected"}

func newValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}
