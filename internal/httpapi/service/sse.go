package service

import (
	"github.com/komorebi-audio/hub/internal/eventbus"
)

// sseStreamKinds maps each SSE stream name spec.md §6 lists to the event
// bus kind(s) that feed it.
var sseStreamKinds = map[string][]eventbus.Kind{
	"queue":    {eventbus.KindQueueChanged},
	"status":   {eventbus.KindStatusChanged},
	"outputs":  {eventbus.KindOutputsChanged},
	"albums":   {eventbus.KindLibraryChanged},
	"metadata": {eventbus.KindMetadata},
	"logs":     {KindLog},
}

// SSEService resolves a stream name to the bus subscription that feeds it.
type SSEService struct {
	bus *eventbus.Bus
}

func NewSSEService(bus *eventbus.Bus) *SSEService {
	return &SSEService{bus: bus}
}

// Subscribe returns a live subscription plus the set of kinds the named
// stream cares about; ok is false for an unrecognized stream name.
func (s *SSEService) Subscribe(name string) (*eventbus.Subscription, []eventbus.Kind, bool) {
	kinds, ok := sseStreamKinds[name]
	if !ok {
		return nil, nil, false
	}
	return s.bus.Subscribe(), kinds, true
}
