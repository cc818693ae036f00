// Package sse reads Server-Sent Events from a streaming response body.
package sse

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxLineSize bounds a single line of the stream.
const DefaultMaxLineSize = 1 << 20

// Event represents a single server-sent event.
type Event struct {
	// Event is the SSE event type (from "event:" line). Empty for data-only events.
	Event string
	// Data is the event payload. Multi-line data is joined with newlines.
	Data string
	// ID is the event ID (from "id:" line).
	ID string
	// Retry is the reconnection delay advertised by the server, if any.
	Retry time.Duration
}

// Reader reads server-sent events from a stream. It is not safe for concurrent use.
type Reader struct {
	lines *LineReader
	body  io.ReadCloser
}

// NewReader creates an SSE reader. maxLine <= 0 uses DefaultMaxLineSize.
func NewReader(body io.ReadCloser, maxLine int) *Reader {
	return &Reader{lines: NewLineReader(body, maxLine), body: body}
}

// Next returns the next SSE event. Returns io.EOF when the stream ends.
// An oversized line drops the event it belongs to: Next returns
// ErrLineTooLong once that event ends, and the following call continues
// with the next event.
func (r *Reader) Next() (*Event, error) {
	var event Event
	var hasData, dropped bool

	for {
		line, err := r.lines.ReadLine()
		if errors.Is(err, ErrLineTooLong) {
			dropped = true
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if line == "" {
			if dropped {
				return nil, ErrLineTooLong
			}
			if hasData {
				return &event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil {
				event.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if dropped {
		return nil, ErrLineTooLong
	}
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.body.Close()
}

// parseLine splits a line into field and value, dropping one leading space.
func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
