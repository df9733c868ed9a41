package stream

import (
	"bufio"
	"io"
	"strings"
)

// sseFrame is one named event frame from a text/event-stream body
type sseFrame struct {
	name string
	data string
}

// sseScanner reads server-sent event frames from a response body.
// It understands the subset of the SSE wire format the backend emits:
// "event:" and "data:" fields, comment lines, and blank-line delimiters.
// Multi-line data fields are joined with newlines per the SSE spec.
type sseScanner struct {
	sc *bufio.Scanner
}

func newSSEScanner(r io.Reader) *sseScanner {
	sc := bufio.NewScanner(r)
	// Token events are small but source excerpts can be long single lines
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseScanner{sc: sc}
}

// next returns the next complete frame, or false at end of stream.
// Check err after next returns false to distinguish EOF from a read fault.
func (s *sseScanner) next() (sseFrame, bool) {
	var frame sseFrame
	var data []string
	started := false

	for s.sc.Scan() {
		line := s.sc.Text()
		switch {
		case line == "":
			if started {
				frame.data = strings.Join(data, "\n")
				return frame, true
			}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			frame.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			started = true
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			started = true
		}
	}

	// Stream ended mid-frame; a frame without its blank-line delimiter
	// was never committed by the server, so it is discarded.
	return sseFrame{}, false
}

func (s *sseScanner) err() error {
	return s.sc.Err()
}
