package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// LibraryHandlers serves GET /library and POST /library/rescan.
type LibraryHandlers struct {
	svc *service.LibraryService
}

func NewLibraryHandlers(svc *service.LibraryService) *LibraryHandlers {
	return &LibraryHandlers{svc: svc}
}

// List handles GET /library?dir=.
func (h *LibraryHandlers) List(c *gin.Context) {
	dir := c.Query("dir")
	entries, err := h.svc.List(dir)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dir": dir, "entries": entries})
}

// Rescan handles POST /library/rescan.
func (h *LibraryHandlers) Rescan(c *gin.Context) {
	if err := h.svc.Rescan(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	ok(c)
}
