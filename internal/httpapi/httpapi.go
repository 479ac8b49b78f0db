// Package httpapi assembles the gin.Engine serving every route spec.md §6
// names, wiring each internal/httpapi/handler type to its
// internal/httpapi/service counterpart.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/komorebi-audio/hub/internal/httpapi/handler"
	"github.com/komorebi-audio/hub/internal/httpapi/service"
)

// NewRouter builds the full route table. webDir, when non-empty, serves the
// built frontend with an SPA fallback for unmatched GET routes.
func NewRouter(svc *service.Services, webDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(securityHeadersMiddleware())

	r.GET("/health", handler.Health)

	playback := handler.NewPlaybackHandlers(svc.Playback)
	r.POST("/play", playback.Play)
	r.POST("/pause", playback.Pause)
	r.POST("/stop", playback.Stop)
	r.POST("/seek", playback.Seek)

	queue := handler.NewQueueHandlers(svc.Queue, svc.Playback)
	r.GET("/queue", queue.List)
	r.POST("/queue", queue.Add)
	r.POST("/queue/next/add", queue.AddNext)
	r.POST("/queue/remove", queue.Remove)
	r.POST("/queue/clear", queue.Clear)
	r.POST("/queue/next", queue.Next)
	r.POST("/queue/previous", queue.Previous)
	r.POST("/queue/play_from", queue.PlayFrom)

	outs := handler.NewOutputsHandlers(svc.Outputs)
	r.GET("/providers", outs.Providers)
	r.GET("/providers/:id/outputs", outs.OutputsForProvider)
	r.GET("/outputs", outs.List)
	r.POST("/outputs/select", outs.Select)
	r.GET("/outputs/:id/status", outs.Status)

	lib := handler.NewLibraryHandlers(svc.Library)
	r.GET("/library", lib.List)
	r.POST("/library/rescan", lib.Rescan)

	stream := handler.NewStreamHandlers(svc.Stream)
	r.GET("/stream", stream.Serve)

	sse := handler.NewSSEHandlers(svc.SSE)
	r.GET("/sse/:name", sse.Stream)

	browser := handler.NewBrowserHandlers(svc.Browser)
	r.GET("/browser/ws", browser.ServeWS)

	if webDir != "" {
		spa := handler.NewSPAHandler(webDir)
		r.NoRoute(spa.Handle)
	}

	return r
}
