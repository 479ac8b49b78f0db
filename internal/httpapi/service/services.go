package service

import (
	"github.com/komorebi-audio/hub/internal/browserout"
	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
)

// Services aggregates every domain service internal/httpapi/handler
// depends on, assembled once in cmd/hub/main.go and threaded through
// httpapi.NewRouter.
type Services struct {
	Playback *PlaybackService
	Queue    *QueueService
	Library  *LibraryService
	Outputs  *OutputsService
	Stream   *StreamService
	SSE      *SSEService
	Browser  *browserout.Manager
	Status   *status.Store

	bus *eventbus.Bus
}

func New(
	dispatcher *ActiveDispatcher,
	queue *playqueue.Queue,
	store *status.Store,
	registry *outputs.Registry,
	lib *LibraryService,
	stream *StreamService,
	browser *browserout.Manager,
	bus *eventbus.Bus,
) *Services {
	return &Services{
		Playback: NewPlaybackService(dispatcher, queue, store),
		Queue:    NewQueueService(queue),
		Library:  lib,
		Outputs:  NewOutputsService(registry),
		Stream:   stream,
		SSE:      NewSSEService(bus),
		Browser:  browser,
		Status:   store,
		bus:      bus,
	}
}
