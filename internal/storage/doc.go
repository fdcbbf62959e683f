// Package storage archives generated diaries.
//
// Each diary is keyed by its local date (YYYY-MM-DD). The SQLite database is
// the source of truth for listing and reading; every save also writes a
// markdown copy to the configured diary directory so diaries stay readable
// without the gateway.
package storage
