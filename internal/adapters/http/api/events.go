package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/tabroom/internal/domain/model"
	"github.com/okian/tabroom/pkg/logger"
)

const keepAliveInterval = 15 * time.Second

// TournamentReader checks that a tournament exists and is readable.
type TournamentReader interface {
	Tournament(ctx context.Context, user *model.User, tournamentID string) (*model.Tournament, error)
}

// EventsHandler streams refresh notifications as server-sent events.
type EventsHandler struct {
	deps   TournamentReader
	events Subscriber
	logger logger.Logger
}

// NewEventsHandler creates a new events handler. events may be nil.
func NewEventsHandler(deps TournamentReader, events Subscriber, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, events: events, logger: l}
}

// HandleStream handles GET /tournaments/{tid}/events.
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tid := param(r, "tid")
	if h.events == nil {
		writeError(w, http.StatusNotFound, "not_found", ErrNoEventsFeed)
		return
	}
	if _, err := h.deps.Tournament(ctx, userFrom(ctx), tid); err != nil {
		status, code := statusOf(err)
		writeError(w, status, code, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("streaming unsupported"))
		return
	}
	ch, err := h.events.Subscribe(ctx, tid)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn(ctx, "cannot encode event", logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
