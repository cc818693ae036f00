// Package middleware provides the ordered request and response hooks that run
// around every API call.
//
// Pre-request middlewares see the outgoing Request before it is sent;
// post-response middlewares see the final Response before it is decoded.
// Both run strictly in registration order. Each returns an Outcome: Keep
// leaves the current value in place, Replace swaps in a new value for the
// middlewares that follow and for the caller. The first error aborts the
// chain and is reported as a MIDDLEWARE_ERROR naming the failing middleware.
//
//	p := middleware.NewPipeline(log, true)
//	p.AddPreRequest(middleware.RequestID(), middleware.UserAgent("my-app/1.0"))
//	p.AddPostResponse(middleware.LogResponses(log))
package middleware
