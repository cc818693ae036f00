// Package httpclient is the transport used by the freeseek client.
//
// A Client performs exactly one HTTP attempt per call and classifies every
// failure as transient (timeouts, connection failures, 5xx, 429) or fatal
// (other 4xx, request construction errors). Retry, circuit breaking and rate
// limiting are composed by the caller around Do and DoStream.
//
// # Basic Usage
//
//	c, err := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
//
//	resp, err := c.Do(ctx, &httpclient.Request{
//	    Method: http.MethodPost,
//	    URL:    "https://api.freeseek.com/v1/infer",
//	    Body:   map[string]any{"model": "deepseek_v3", "data": data},
//	})
//
// # Streaming
//
// DoStream returns once response headers arrive. The per-attempt timeout only
// covers that phase; the body is read under the caller's context and must be
// released with Close.
package httpclient
