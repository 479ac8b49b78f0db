package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// QueueHandlers serves the GET/POST /queue* surface.
type QueueHandlers struct {
	queue    *service.QueueService
	playback *service.PlaybackService
}

func NewQueueHandlers(queue *service.QueueService, playback *service.PlaybackService) *QueueHandlers {
	return &QueueHandlers{queue: queue, playback: playback}
}

// List handles GET /queue.
func (h *QueueHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.queue.List()})
}

type pathsRequestBody struct {
	Paths []string `json:"paths"`
}

// Add handles POST /queue (append).
func (h *QueueHandlers) Add(c *gin.Context) {
	var body pathsRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": h.queue.Add(body.Paths)})
}

// AddNext handles POST /queue/next/add (prepend).
func (h *QueueHandlers) AddNext(c *gin.Context) {
	var body pathsRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": h.queue.AddNext(body.Paths)})
}

type pathRequestBody struct {
	Path string `json:"path" binding:"required"`
}

// Remove handles POST /queue/remove.
func (h *QueueHandlers) Remove(c *gin.Context) {
	var body pathRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if !h.queue.Remove(body.Path) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "path not queued"})
		return
	}
	ok(c)
}

// Clear handles POST /queue/clear.
func (h *QueueHandlers) Clear(c *gin.Context) {
	h.queue.Clear()
	ok(c)
}

// Next handles POST /queue/next (manual skip).
func (h *QueueHandlers) Next(c *gin.Context) {
	_, played, err := h.playback.Next(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !played {
		c.Status(http.StatusNoContent)
		return
	}
	ok(c)
}

// Previous handles POST /queue/previous.
func (h *QueueHandlers) Previous(c *gin.Context) {
	_, played, err := h.playback.Previous(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !played {
		c.Status(http.StatusNoContent)
		return
	}
	ok(c)
}

// PlayFrom handles POST /queue/play_from: the path must already be in the
// pending queue, or the request 404s.
func (h *QueueHandlers) PlayFrom(c *gin.Context) {
	var body pathRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if !existsInQueue(h.queue, body.Path) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "path not queued"})
		return
	}
	if err := h.playback.PlayFrom(c.Request.Context(), body.Path); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}

func existsInQueue(q *service.QueueService, path string) bool {
	for _, p := range q.List() {
		if p == path {
			return true
		}
	}
	return false
}
