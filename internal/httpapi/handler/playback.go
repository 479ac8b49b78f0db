package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// PlaybackHandlers serves POST /play, /pause, /stop, /seek.
type PlaybackHandlers struct {
	svc *service.PlaybackService
}

func NewPlaybackHandlers(svc *service.PlaybackService) *PlaybackHandlers {
	return &PlaybackHandlers{svc: svc}
}

type playRequestBody struct {
	Path        string `json:"path" binding:"required"`
	StartPaused bool   `json:"start_paused"`
}

// Play handles POST /play.
func (h *PlaybackHandlers) Play(c *gin.Context) {
	var body playRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if err := h.svc.Play(c.Request.Context(), body.Path, body.StartPaused); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}

// Pause handles POST /pause.
func (h *PlaybackHandlers) Pause(c *gin.Context) {
	if err := h.svc.PauseToggle(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}

// Stop handles POST /stop.
func (h *PlaybackHandlers) Stop(c *gin.Context) {
	if err := h.svc.Stop(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}

type seekRequestBody struct {
	Ms int64 `json:"ms"`
}

// Seek handles POST /seek.
func (h *PlaybackHandlers) Seek(c *gin.Context) {
	var body seekRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if err := h.svc.Seek(c.Request.Context(), body.Ms); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}
