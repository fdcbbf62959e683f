// Package services defines shared utilities consumed by the generation
// coordinator and the external integrations under it.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper, so callers classify
//     failures with errors.Is rather than string matching.
package services
