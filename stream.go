package freeseek

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/freeseek/freeseek-go/httpclient"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/middleware"
	"github.com/freeseek/freeseek-go/observability"
	"github.com/freeseek/freeseek-go/stream"
)

const streamAccept = "application/x-ndjson, text/event-stream"

// Stream is an open streaming inference. Chunks are read with Next or All
// and the stream must be closed, which All does when the loop ends.
// A Stream is not safe for concurrent use.
type Stream struct {
	client *Client
	cl     *call
	resp   *httpclient.StreamResponse
	dec    *stream.Decoder
	chunks int

	once sync.Once
}

// StreamInfer starts a streaming inference. Failures before the first byte
// of the body, including retries, are returned here; failures while reading
// are returned by Next.
func (c *Client) StreamInfer(ctx context.Context, model string, data map[string]any) (*Stream, error) {
	model, data, err := c.prepareInfer(ctx, model, data)
	if err != nil {
		return nil, err
	}
	cl := c.begin(ctx, OpStreamInfer, model)
	s, err := c.openStream(cl, c.inferRequest(model, data))
	if err != nil {
		c.end(cl, err)
		return nil, err
	}
	return s, nil
}

func (c *Client) openStream(cl *call, req *middleware.Request) (*Stream, error) {
	req.Headers.Set("Accept", streamAccept)
	req, err := c.prepare(cl, req)
	if err != nil {
		return nil, err
	}
	resp, err := send(c, cl, req, c.transport.DoStream, func(r *httpclient.StreamResponse) http.Header {
		return r.Headers
	})
	if err != nil {
		return nil, c.toAPIError(err)
	}
	out, err := c.finalize(cl, &middleware.Response{StatusCode: resp.StatusCode, Headers: resp.Headers})
	if err != nil {
		_ = resp.Close()
		return nil, err
	}

	// Post-response middleware may rewrite the headers that pick the format.
	format := stream.FormatFor(out.Headers.Get("Content-Type"))
	cl.log.Debug("stream opened", logger.Fields("format", format.String()))
	return &Stream{
		client: c,
		cl:     cl,
		resp:   resp,
		dec:    stream.NewDecoder(resp.Body, stream.WithFormat(format), stream.WithLogger(c.log)),
	}, nil
}

// Next returns the next chunk, or io.EOF once the stream has ended.
// Lines that are not JSON objects are skipped. Cancelling the context passed
// to StreamInfer interrupts a pending read.
func (s *Stream) Next() (stream.Chunk, error) {
	chunk, err := s.dec.Next(s.cl.ctx)
	switch {
	case err == nil:
		s.chunks++
		return chunk, nil
	case errors.Is(err, io.EOF):
		s.finish(nil)
		return nil, io.EOF
	default:
		err = s.client.toAPIError(err)
		s.finish(err)
		return nil, err
	}
}

// All ranges over the remaining chunks. Iteration stops after the first
// error, and the stream is closed when the loop ends.
func (s *Stream) All() iter.Seq2[stream.Chunk, error] {
	return func(yield func(stream.Chunk, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Next()
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

// Close releases the connection. Closing before the end of the stream
// completes the call successfully.
func (s *Stream) Close() error {
	s.finish(nil)
	return nil
}

// Skipped returns how many undecodable lines were dropped so far.
func (s *Stream) Skipped() int { return s.dec.Skipped() }

// RequestID returns the id sent in the X-Request-ID header.
func (s *Stream) RequestID() string { return s.cl.requestID }

// StatusCode returns the HTTP status of the stream response.
func (s *Stream) StatusCode() int { return s.resp.StatusCode }

func (s *Stream) finish(err error) {
	s.once.Do(func() {
		_ = s.dec.Close()
		if cerr := s.resp.Close(); cerr != nil && err == nil {
			s.cl.log.Debug("stream close", logger.Fields(logger.FieldError, cerr.Error()))
		}
		s.cl.span.SetAttributes(
			attribute.Int(observability.AttrStreamChunks, s.chunks),
			attribute.Int(observability.AttrStreamSkipped, s.dec.Skipped()),
		)
		s.client.end(s.cl, err)
	})
}
