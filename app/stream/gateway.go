// Package stream pushes feed change events to connected viewers over
// server-sent events. Each connection holds one bus subscription and a
// keep-alive ticker; both are released on every exit path.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ripple/app/events"
	"ripple/app/middleware"
)

// DefaultKeepAlive is the interval between keep-alive comments. It sits
// under common intermediary idle timeouts (30-60s).
const DefaultKeepAlive = 25 * time.Second

// Gateway serves the live event stream endpoint.
type Gateway struct {
	bus       *events.Bus
	keepAlive time.Duration
	log       *zap.Logger
}

// NewGateway creates a Gateway. keepAlive <= 0 selects DefaultKeepAlive.
func NewGateway(bus *events.Bus, keepAlive time.Duration, log *zap.Logger) *Gateway {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{bus: bus, keepAlive: keepAlive, log: log}
}

// ServeHTTP upgrades the request to an event stream. Anonymous callers
// are rejected before a subscription is registered. The connection's
// subscription and ticker are torn down when the client disconnects or
// a write fails.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := g.bus.Subscribe()
	defer sub.Cancel()

	ticker := time.NewTicker(g.keepAlive)
	defer ticker.Stop()

	log := g.log.With(zap.String("actor", actor))
	log.Info("stream opened")
	defer log.Info("stream closed")

	// Initial comment confirms the stream to the client immediately.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				// Bus shut down underneath the connection.
				return
			}
			if err := writeEvent(w, event); err != nil {
				log.Warn("stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				log.Warn("keep-alive write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
