package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// OutputsHandlers serves the providers/outputs surface.
type OutputsHandlers struct {
	svc *service.OutputsService
}

func NewOutputsHandlers(svc *service.OutputsService) *OutputsHandlers {
	return &OutputsHandlers{svc: svc}
}

// Providers handles GET /providers.
func (h *OutputsHandlers) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.svc.Providers()})
}

// OutputsForProvider handles GET /providers/:id/outputs.
func (h *OutputsHandlers) OutputsForProvider(c *gin.Context) {
	list, ok := h.svc.OutputsForProvider(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown provider"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": list})
}

// List handles GET /outputs.
func (h *OutputsHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"outputs": h.svc.ListAll(), "active": h.svc.ActiveID()})
}

type selectOutputRequestBody struct {
	ID string `json:"id" binding:"required"`
}

// Select handles POST /outputs/select.
func (h *OutputsHandlers) Select(c *gin.Context) {
	var body selectOutputRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if err := h.svc.Select(c.Request.Context(), body.ID); err != nil {
		writeError(c, err)
		return
	}
	ok(c)
}

// Status handles GET /outputs/:id/status.
func (h *OutputsHandlers) Status(c *gin.Context) {
	st, err := h.svc.StatusForOutput(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
