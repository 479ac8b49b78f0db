package handler

import "github.com/gin-gonic/gin"

// Health handles GET /health.
func Health(c *gin.Context) {
	ok(c)
}
