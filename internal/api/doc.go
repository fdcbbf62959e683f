// Package api serves the HTTP surface of the dailycraft daemon and provides
// a small client for it.
//
// Routes are mounted on a chi router:
//
//	GET  /api/health             liveness, generation flag, worker and database state
//	GET  /api/generation         current job snapshot
//	POST /api/generation         start a background generation (202, 409 when busy)
//	POST /api/generation/sync    generate and wait for the text
//	GET  /api/events             server-sent chunk, complete and error events
//	POST /api/extract            read text from an image on the daemon host
//	GET  /api/diaries[/{key}]    saved diaries
//	PUT  /api/diaries/{key}      replace a saved diary
//	GET  /metrics                Prometheus exposition
//
// Everything except health and metrics requires the bearer token when
// api.token is set. Errors are JSON bodies whose status code follows the
// marker wrapped by the failing service (see statusFor).
package api
