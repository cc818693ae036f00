// Package optimizer rewrites an inference request before dispatch.
//
// The Optimizer picks a model tier from the prompt length and the remaining
// rate-limit quota, adjusts the prompt for the configured priority, and
// classifies it into a coarse category. The chosen tier and prompt are
// memoized per exact prompt in a bounded LRU, and the last prompts are kept in a fixed-size
// history used to report the average prompt length.
//
// Payloads without a string "prompt" are passed through unchanged. The
// optimizer never fails a request.
package optimizer
