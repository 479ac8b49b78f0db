package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
)

func TestSSEServiceSubscribeKnownStream(t *testing.T) {
	bus := eventbus.New()
	svc := NewSSEService(bus)

	sub, kinds, ok := svc.Subscribe("queue")
	require.True(t, ok)
	require.NotNil(t, sub)
	require.Equal(t, []eventbus.Kind{eventbus.KindQueueChanged}, kinds)
	sub.Close()
}

func TestSSEServiceSubscribeLogsStream(t *testing.T) {
	bus := eventbus.New()
	svc := NewSSEService(bus)

	sub, kinds, ok := svc.Subscribe("logs")
	require.True(t, ok)
	require.Equal(t, []eventbus.Kind{KindLog}, kinds)
	sub.Close()
}

func TestSSEServiceSubscribeUnknownStream(t *testing.T) {
	bus := eventbus.New()
	svc := NewSSEService(bus)

	_, _, ok := svc.Subscribe("not-a-stream")
	require.False(t, ok)
}
