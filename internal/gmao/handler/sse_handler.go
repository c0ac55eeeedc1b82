package handler

import (
	"fmt"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/sse"
	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 30 * time.Second

// SSEHandler 台账事件推送
type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream GET /events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		Error(c, 50300, "event stream unavailable")
		return
	}
	userID := GetUserID(c)
	client := &sse.Client{
		ID:     fmt.Sprintf("%s_%d", userID, time.Now().UnixNano()),
		UserID: userID,
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":%q}\n\n", client.ID)
	w.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, event.Data)
			w.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			w.Flush()
		}
	}
}
