package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// SSEHandlers serves the named text/event-stream surfaces (queue, status,
// outputs, albums, metadata, logs), one subscriber goroutine per connected
// client, following the teacher's StreamHandler.ServeHTTP write/flush loop.
type SSEHandlers struct {
	svc *service.SSEService
}

func NewSSEHandlers(svc *service.SSEService) *SSEHandlers {
	return &SSEHandlers{svc: svc}
}

// Stream handles GET /sse/:name.
func (h *SSEHandlers) Stream(c *gin.Context) {
	sub, kinds, ok := h.svc.Subscribe(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown stream"})
		return
	}
	defer sub.Close()

	wanted := make(map[eventbus.Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if !wanted[ev.Kind] {
				continue
			}
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Kind) + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			w.Flush()
		}
	}
}
