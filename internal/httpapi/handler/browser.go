package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/browserout"
)

// BrowserHandlers serves GET /browser/ws, upgrading to the browser output
// provider's websocket session protocol.
type BrowserHandlers struct {
	manager *browserout.Manager
}

func NewBrowserHandlers(manager *browserout.Manager) *BrowserHandlers {
	return &BrowserHandlers{manager: manager}
}

// ServeWS handles GET /browser/ws.
func (h *BrowserHandlers) ServeWS(c *gin.Context) {
	h.manager.ServeWS(c.Writer, c.Request)
}
