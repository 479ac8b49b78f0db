// Package handler holds the gin route handlers, one file per domain, each
// wrapping a narrow internal/httpapi/service type exactly as
// arung-agamani-denpa-radio's internal/radio/handler wraps
// internal/radio/service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/apperr"
)

// writeError maps an apperr classification to a status code and writes the
// JSON error body, following the teacher's Server.writeError shape.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsBadRequest(err):
		status = http.StatusBadRequest
	case apperr.IsUnavailable(err):
		status = http.StatusServiceUnavailable
	case apperr.IsFatalSession(err):
		status = http.StatusInternalServerError
	case apperr.IsTransient(err):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": "error", "error": err.Error()})
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
