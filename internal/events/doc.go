// Package events buffers generation notifications (chunk, complete, error)
// for pollers and streaming subscribers.
//
// Events carry a hub-wide sequence number; a subscriber resumes by fetching
// everything after the last sequence it saw. Events from one publisher keep
// their publish order.
package events
