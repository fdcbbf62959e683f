// Package llm provides a client for OpenAI-compatible chat completion APIs.
//
// Complete issues a blocking request and returns the first choice's message
// content. Stream requests server-sent events and hands each delta to a
// callback as it arrives; frames may be split across reads arbitrarily and are
// reassembled by a carry-over line buffer.
//
// # Retry Behaviour
//
// Blocking requests retry on HTTP 408/429/5xx errors and timeouts with
// exponential backoff, honouring Retry-After. Streams are never retried.
// Context cancellation aborts immediately.
//
// # Timeouts
//
// Connection setup is bounded by dial, TLS and response-header timeouts. A
// blocking request is bounded as a whole; a stream is bounded by an idle
// window that restarts whenever bytes arrive.
package llm
