package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
)

func TestStripTXTPrefixRemovesKeyEqualsPrefix(t *testing.T) {
	require.Equal(t, "bridge-1", stripTXTPrefix("id", "id=bridge-1"))
	require.Equal(t, "bridge-1", stripTXTPrefix("id", "bridge-1"))
}

func TestBackoffMatchesReconnectScenario(t *testing.T) {
	// S6: failures 1..3 back off 2s, 4s, 6s.
	require.Equal(t, 2*time.Second, Backoff(1))
	require.Equal(t, 4*time.Second, Backoff(2))
	require.Equal(t, 6*time.Second, Backoff(3))
}

func TestBackoffCapsAtRetryMax(t *testing.T) {
	require.Equal(t, RetryMax, Backoff(100))
}

func TestRegistryUpsertAndEvictPublishesOutputsChanged(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	r := NewRegistry(bus)
	r.upsertDiscovered(BridgeRecord{ID: "b1", Address: "10.0.0.5:8700", Discovered: true})
	<-sub.Events()

	all := r.All()
	require.Len(t, all, 1)

	r.evictDiscovered("b1")
	<-sub.Events()
	require.Empty(t, r.All())
}

func TestSupervisorResetsFailuresOnEvent(t *testing.T) {
	s := NewSupervisor("b1", false)
	s.SetBackoff(func(int) time.Duration { return time.Millisecond })

	attempt := 0
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(ctx context.Context, onEvent func()) error {
			attempt++
			if attempt == 1 {
				return errors.New("boom")
			}
			onEvent()
			cancel()
			return nil
		}, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
	require.GreaterOrEqual(t, attempt, 2)
	require.Equal(t, int32(0), s.failures.Load())
}

func TestSupervisorEvictsDiscoveredOnlyAfterMaxFailures(t *testing.T) {
	s := NewSupervisor("b1", true)
	s.SetBackoff(func(int) time.Duration { return time.Millisecond })

	evicted := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Run(ctx, func(ctx context.Context, onEvent func()) error {
		return errors.New("always fails")
	}, func() { close(evicted) })

	select {
	case <-evicted:
	default:
		t.Fatal("expected eviction callback to have fired")
	}
	require.Equal(t, StateEvicted, s.State())
}
