// Package deps checks that external programs and files used by the
// extraction worker are present.
package deps
