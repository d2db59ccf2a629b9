package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/asubexec/internal/events"
)

const (
	// sseRetryHint tells clients how long to wait before reconnecting;
	// Last-Event-ID replay from the ring buffer covers the gap.
	sseRetryHint = 3 * time.Second

	sseKeepAliveEvery = 15 * time.Second
)

// handleEvents streams the hub over SSE. The hub's event id doubles as the
// SSE event id, so a reconnecting client's Last-Event-ID maps straight onto
// SnapshotSince and it catches up on job.* and scheduler.* events it missed
// while disconnected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: %d\n\n", sseRetryHint.Milliseconds())

	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	replayed := 0
	for _, ev := range s.events.SnapshotSince(lastID) {
		if err := writeEvent(w, ev); err != nil {
			return
		}
		replayed++
	}
	flusher.Flush()

	s.logger.Debug("event stream opened",
		"last_event_id", lastID,
		"replayed", replayed,
		"request_id", middleware.GetReqID(r.Context()))

	ch, cancel := s.events.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(sseKeepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			// Comment line; keeps idle proxies from dropping the stream.
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeEvent frames one hub event. The hub type ("job.completed",
// "scheduler.skipped", ...) is the SSE event name, and the payload is
// single-line JSON, so exactly one data line per event.
func writeEvent(w io.Writer, ev events.Event) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
	return err
}
