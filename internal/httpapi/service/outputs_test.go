package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/localout"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/pipeline"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
)

func newOutputsFixture(t *testing.T) *OutputsService {
	t.Helper()
	bus := eventbus.New()
	store := status.New(bus)
	registry := outputs.NewRegistry(bus)
	queue := playqueue.New(bus, store)
	local := localout.New(t.TempDir(), pipeline.DefaultConfig(), store, queue, registry)
	registry.Register(local)
	return NewOutputsService(registry)
}

func TestOutputsServiceProvidersListsRegistered(t *testing.T) {
	svc := newOutputsFixture(t)
	require.Contains(t, svc.Providers(), "local")
}

func TestOutputsServiceActiveIDEmptyWhenNoneSelected(t *testing.T) {
	svc := newOutputsFixture(t)
	require.Empty(t, svc.ActiveID())
}

func TestOutputsServiceListAllIncludesLocalDevice(t *testing.T) {
	svc := newOutputsFixture(t)
	all := svc.ListAll()
	require.NotEmpty(t, all)
}
