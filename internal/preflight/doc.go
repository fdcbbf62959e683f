// Package preflight provides readiness checks for the directories, the
// chat-completion API and the extraction worker that dailycraft depends on.
//
// The CLI "doctor" command runs RunAll and CheckDaemon and renders the
// results as a table. Checks for disabled features are skipped.
package preflight
