package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// StreamHandlers serves GET /stream.
type StreamHandlers struct {
	svc *service.StreamService
}

func NewStreamHandlers(svc *service.StreamService) *StreamHandlers {
	return &StreamHandlers{svc: svc}
}

// Serve handles GET /stream?path=.
func (h *StreamHandlers) Serve(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "path is required"})
		return
	}
	if err := h.svc.Serve(c.Writer, c.Request, path); err != nil {
		if apperr.IsBadRequest(err) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": err.Error()})
			return
		}
		writeError(c, err)
	}
}
