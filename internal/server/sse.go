package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// Discovery stream event names.
const (
	EventTools = "tools"
	EventPing  = "ping"
)

// handleSSE announces the tool catalog once, then keeps the stream alive
// with periodic pings until the client goes away or the server stops.
func (s *Server) handleSSE(c *gin.Context) {
	ctx := c.Request.Context()
	log := s.logger.With("request_id", RequestID(ctx))

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()
	log.Debug("discovery stream opened")
	defer log.Debug("discovery stream closed")

	h := c.Writer.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeEvent(c.Writer, EventTools, gin.H{"tools": s.registry.ListTools()}); err != nil {
		log.Debug("discovery stream write failed", "error", err)
		return
	}

	ticker := time.NewTicker(s.cfg.SSE.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeEvent(c.Writer, EventPing, map[string]any{}); err != nil {
				log.Debug("discovery stream write failed", "error", err)
				return
			}
		}
	}
}

// writeEvent writes one "event: <name>" / "data: <json>" frame and flushes it.
func writeEvent(w gin.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
