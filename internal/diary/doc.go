// Package diary coordinates diary generation.
//
// A Coordinator accepts at most one running generation. The job streams
// deltas from the chat-completion endpoint into a shared record that callers
// poll through Status, publishes chunk, complete and error events, and saves
// the finished text through an Archive. Settings are resolved per job so
// configuration edits take effect on the next Start.
package diary
