// Package daemon owns the lifecycle of the long-running dailycraft process.
//
// It takes the already-built store, event hub, metrics, generation
// coordinator and optional extraction worker, serves them over HTTP, and
// holds a flock-based lock in the data directory so only one instance runs
// at a time. Construction of those services lives in daemonrun.
package daemon
