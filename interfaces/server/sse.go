package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/felixgeelhaar/orbit/domain/event"
)

// streamEvents writes events as Server-Sent Events until the channel
// closes or the client goes away. Each frame carries the event sequence
// as id, the event type as event and the full event JSON as data.
func (s *Server) streamEvents(c echo.Context, events <-chan event.Event) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	done := c.Request().Context().Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case <-done:
			return nil
		}
	}
}

func writeEvent(w *echo.Response, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Type, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// handleThreadEvents follows a thread's live events from the publisher
// until a terminal event or disconnect.
func (s *Server) handleThreadEvents(c echo.Context) error {
	if s.events == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "live events are not enabled")
	}

	sub, err := s.events.Subscribe(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	until := make(chan event.Event)
	go func() {
		defer close(until)
		for ev := range sub {
			select {
			case until <- ev:
			case <-c.Request().Context().Done():
				return
			}
			if ev.IsTerminal() {
				return
			}
		}
	}()
	return s.streamEvents(c, until)
}
