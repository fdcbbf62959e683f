package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"dailycraft/internal/events"
	"dailycraft/internal/logging"
)

const (
	eventBatchLimit   = 128
	recentEventsLimit = 50
)

// handleEvents streams hub events as server-sent events. The cursor comes
// from ?since= or the Last-Event-ID header; ?follow=false writes what is
// buffered and returns instead of waiting for more.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		s.writeError(w, r, errGenerationDisabled)
		return
	}
	since, err := eventCursor(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	follow := true
	if value := strings.TrimSpace(r.URL.Query().Get("follow")); value != "" {
		follow = value == "1" || strings.EqualFold(value, "true")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ctx := r.Context()
	defer func() {
		s.logger.Debug("event stream closed", logging.Uint64("last_sequence", since))
	}()
	for {
		batch, _, err := s.deps.Events.Fetch(ctx, since, eventBatchLimit, follow)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("event fetch failed", logging.Error(err))
			}
			return
		}
		for _, evt := range batch {
			if err := writeEvent(w, evt); err != nil {
				s.logger.Debug("event client went away", logging.Error(err))
				return
			}
			since = evt.Sequence
		}
		if flusher != nil {
			flusher.Flush()
		}
		if !follow && len(batch) < eventBatchLimit {
			return
		}
	}
}

// handleRecentEvents returns the newest buffered events as JSON, oldest
// first. ?limit= caps the count.
func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		s.writeError(w, r, errGenerationDisabled)
		return
	}
	limit := recentEventsLimit
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			s.badRequest(w, fmt.Sprintf("invalid limit %q", value))
			return
		}
		limit = parsed
	}
	items, last := s.deps.Events.Tail(limit)
	if items == nil {
		items = []events.Event{}
	}
	writeJSON(w, http.StatusOK, RecentEventsResponse{Items: items, LastSequence: last})
}

func eventCursor(r *http.Request) (uint64, error) {
	value := strings.TrimSpace(r.URL.Query().Get("since"))
	if value == "" {
		value = strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	}
	if value == "" {
		return 0, nil
	}
	since, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event cursor %q", value)
	}
	return since, nil
}

func writeEvent(w http.ResponseWriter, evt events.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Name, data)
	return err
}
