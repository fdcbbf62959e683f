// Package ocr manages a resident text-extraction worker process.
//
// The worker speaks a line-delimited JSON protocol on stdin/stdout: after
// start it prints one handshake line ({"status":"ready"} or {"error":...}),
// then answers each {"image_path":...} request with exactly one {"text":...}
// or {"error":...} line. Requests are serialized; there is no correlation id.
//
// Liveness is checked before every use. Any write, read or decode failure
// fails only the current call and destroys the process, so the next call
// starts a fresh worker.
package ocr
