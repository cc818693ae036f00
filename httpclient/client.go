package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed streaming response is read for diagnostics.
const maxErrorBody = 64 << 10

// Doer performs one complete request/response exchange.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Streamer performs one request and hands back the open response body.
type Streamer interface {
	DoStream(ctx context.Context, req *Request) (*StreamResponse, error)
}

// Client is the single-attempt HTTP transport.
type Client struct {
	httpClient *http.Client
	config     Config
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Timeout is ignored;
// attempts are bounded through the request context instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		clone := *hc
		clone.Timeout = 0
		c.httpClient = &clone
	}
}

// New creates a new HTTP transport with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		config:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do executes one HTTP request and returns the complete response. Non-2xx
// statuses return the response together with a classified *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	httpReq, err := c.buildRequest(attemptCtx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	if statusErr := StatusError(resp.StatusCode, resp.Header, body); statusErr != nil {
		return result, statusErr
	}
	return result, nil
}

// DoStream executes one HTTP request and returns as soon as headers arrive.
// The configured timeout applies until then; afterwards only ctx bounds the
// body. The caller must close the returned StreamResponse.
func (c *Client) DoStream(ctx context.Context, req *Request) (*StreamResponse, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	headerTimer := time.AfterFunc(c.config.Timeout, cancel)

	httpReq, err := c.buildRequest(streamCtx, req)
	if err != nil {
		headerTimer.Stop()
		cancel()
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if !headerTimer.Stop() {
		// The header deadline fired and streamCtx is already cancelled.
		if err == nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("no response headers within %s", c.config.Timeout)
		}
		cancel()
		if ctx.Err() != nil {
			return nil, classifyTransportError(ctx, err)
		}
		return nil, NewTimeoutError(err)
	}
	if err != nil {
		cancel()
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		return nil, StatusError(resp.StatusCode, resp.Header, body)
	}

	return &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
		cancel:     cancel,
	}, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if req == nil {
		return nil, NewRequestError("nil request")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewRequestError(fmt.Sprintf("encode body: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, NewRequestError(fmt.Sprintf("create request: %v", err))
	}

	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	return httpReq, nil
}

// encodeBody converts a body value into an io.Reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// classifyTransportError separates caller cancellation from attempt timeouts
// and connection failures.
func classifyTransportError(callerCtx context.Context, err error) *Error {
	if callerCtx.Err() != nil {
		return NewCanceledError(errors.Join(callerCtx.Err(), err))
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}
	return NewConnectionError(err)
}
