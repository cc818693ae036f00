// Package stream decodes incremental inference responses into JSON chunks.
//
// The default format is newline-delimited JSON. Responses served as
// text/event-stream are read as Server-Sent Events, where each data payload
// is one chunk and "[DONE]" ends the stream. A line that fails to decode is
// logged, counted and skipped; the stream continues.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"mime"
	"strings"
	"sync"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/httpclient/sse"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/util"
)

// Chunk is one decoded JSON object from the stream.
type Chunk map[string]any

// Format selects how the body is split into payloads.
type Format int

const (
	FormatNDJSON Format = iota
	FormatSSE
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatSSE {
		return "sse"
	}
	return "ndjson"
}

// DoneMarker terminates an SSE stream.
const DoneMarker = "[DONE]"

// FormatFor picks the format for a response Content-Type.
func FormatFor(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == "text/event-stream" {
		return FormatSSE
	}
	return FormatNDJSON
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithFormat sets the payload format.
func WithFormat(f Format) Option {
	return func(d *Decoder) { d.format = f }
}

// WithLogger sets the logger used for skipped lines.
func WithLogger(log *logger.Logger) Option {
	return func(d *Decoder) { d.log = logger.OrNop(log) }
}

// WithMaxLineSize bounds a single line (default 1 MiB). Longer lines are
// skipped like undecodable ones.
func WithMaxLineSize(n int) Option {
	return func(d *Decoder) { d.maxLine = n }
}

// Decoder is a forward-only, non-restartable sequence of chunks.
// It is not safe for concurrent use, except that Close may be called at any time.
type Decoder struct {
	body    io.ReadCloser
	format  Format
	log     *logger.Logger
	maxLine int

	lines  *sse.LineReader
	events *sse.Reader

	skipped int
	done    bool

	closeOnce sync.Once
	closeErr  error
}

// NewDecoder wraps body. The decoder owns body and closes it on Close, at
// end of stream, or when the context passed to Next is cancelled.
func NewDecoder(body io.ReadCloser, opts ...Option) *Decoder {
	d := &Decoder{
		body:    body,
		log:     logger.Nop(),
		maxLine: sse.DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.format == FormatSSE {
		d.events = sse.NewReader(body, d.maxLine)
	} else {
		d.lines = sse.NewLineReader(body, d.maxLine)
	}
	return d
}

// Next returns the next chunk, or io.EOF when the stream has ended.
// Transport failures are returned as API errors; ctx cancellation closes the
// stream and returns the context error.
func (d *Decoder) Next(ctx context.Context) (Chunk, error) {
	if d.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		d.finish()
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = d.Close() })
	defer stop()

	for {
		payload, err := d.nextPayload()
		if errors.Is(err, sse.ErrLineTooLong) {
			d.skipped++
			d.log.WithContext(ctx).Warn("skipping oversized stream line", logger.Fields(
				"max_bytes", d.maxLine,
				"format", d.format.String(),
			))
			continue
		}
		if err != nil {
			d.finish()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, apperrors.API("stream interrupted", 0, nil).WithCause(err)
		}

		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if d.format == FormatSSE && payload == DoneMarker {
			d.finish()
			return nil, io.EOF
		}

		var chunk Chunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil || chunk == nil {
			d.skipped++
			d.log.WithContext(ctx).Warn("skipping undecodable stream line", logger.Fields(
				"line", util.Abbreviate(payload, 200),
				"format", d.format.String(),
			))
			continue
		}
		return chunk, nil
	}
}

// All ranges over the remaining chunks. Iteration stops after the first
// error; breaking out of the loop closes the stream.
func (d *Decoder) All(ctx context.Context) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		defer d.Close()
		for {
			chunk, err := d.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Skipped returns how many lines were dropped as undecodable.
func (d *Decoder) Skipped() int { return d.skipped }

// Close releases the underlying body. It is safe to call more than once.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}

func (d *Decoder) finish() {
	d.done = true
	_ = d.Close()
}

func (d *Decoder) nextPayload() (string, error) {
	if d.events != nil {
		ev, err := d.events.Next()
		if err != nil {
			return "", err
		}
		return ev.Data, nil
	}
	return d.lines.ReadLine()
}
