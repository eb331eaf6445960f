package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/foundry/internal/event"
)

// eventBuffer is how many events a slow stream may fall behind before
// events are dropped for it.
const eventBuffer = 64

// StreamEvent is the data of one server-sent event.
type StreamEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      event.Event `json:"data"`
}

// streamEvents relays the project's bus events as server-sent events until
// the client disconnects or the server shuts down.
func (s *Server) streamEvents(c *gin.Context) {
	id := c.Param("id")
	if s.bus == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "event stream is not enabled",
			Code:    "unavailable",
		})
		return
	}
	if _, err := s.pipeline.GetStatus(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}

	log := s.logger.WithProject(id)
	events := make(chan event.Event, eventBuffer)
	// Publish may run under the project lock, so the handler never blocks.
	sub := s.bus.SubscribeProject(id, func(e event.Event) {
		select {
		case events <- e:
		default:
			log.Warn("event stream lagging; event dropped", "event_type", e.EventType())
		}
	})
	defer s.bus.Unsubscribe(sub)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	log.Debug("event stream opened")

	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-events:
			c.SSEvent(e.EventType(), StreamEvent{Type: e.EventType(), Timestamp: e.Timestamp(), Data: e})
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now()})
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.closing:
			return false
		}
	})
	log.Debug("event stream closed")
}
