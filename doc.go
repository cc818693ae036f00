// Package freeseek is a client for the FreeSeek inference API.
//
// A Client authenticates with a bearer token that it refreshes ahead of
// expiry, and sends every call through the same request lifecycle:
//
//	validate -> pre-request middleware -> retry { rate limit wait ->
//	circuit breaker -> transport attempt -> quota update } ->
//	post-response middleware -> decode
//
// Only transient failures are retried: timeouts, connection errors and 5xx
// responses. A 429 waits for the advertised quota reset before the next
// attempt. Every failure is returned as an *errors.Error from the errors
// subpackage, carrying the HTTP status and body when one was received.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	client, err := freeseek.New(*cfg, freeseek.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	result, err := client.Infer(ctx, "deepseek_v3", map[string]any{"prompt": "Hello"})
//
// Streaming responses are consumed with a range loop; breaking out of the
// loop releases the connection:
//
//	s, err := client.StreamInfer(ctx, "deepseek_v3", data)
//	if err != nil {
//		return err
//	}
//	for chunk, err := range s.All() {
//		...
//	}
package freeseek
