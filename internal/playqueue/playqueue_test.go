package playqueue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

type fakeTransport struct {
	mu     sync.Mutex
	played []string
}

func (f *fakeTransport) Play(ctx context.Context, req transport.PlayRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, req.Path)
	return nil
}
func (f *fakeTransport) PauseToggle(ctx context.Context) error { return nil }
func (f *fakeTransport) Stop(ctx context.Context) error        { return nil }
func (f *fakeTransport) Seek(ctx context.Context, ms int64) error { return nil }

func (f *fakeTransport) Played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	copy(out, f.played)
	return out
}

func int64p(v int64) *int64 { return &v }

func TestAddDeduplicatesAgainstPendingQueue(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"A"}, AddAppend)
	added := q.Add([]string{"A", "B", "A"}, AddAppend)

	require.Equal(t, 1, added)
	require.Equal(t, []string{"A", "B"}, q.List())
}

func TestAddNextInsertsAtFront(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"A", "B"}, AddAppend)
	q.Add([]string{"C"}, AddNext)
	require.Equal(t, []string{"C", "A", "B"}, q.List())
}

func TestEvaluateAutoAdvanceNaturalEndDispatchesNext(t *testing.T) {
	bus := eventbus.New()
	q := New(bus, nil)
	q.Add([]string{"T2"}, AddAppend)
	tr := &fakeTransport{}

	prevDur := int64p(10000)
	inputs := status.AutoAdvanceInputs{
		ElapsedMs:          nil,
		DurationMs:         nil,
		PreviousDurationMs: prevDur,
		HasNowPlaying:      true,
	}
	dispatched := q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1")

	require.True(t, dispatched)
	require.Equal(t, []string{"T2"}, tr.Played())
	require.Empty(t, q.List())
}

func TestEvaluateAutoAdvanceTailWindowDispatchesNext(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2"}, AddAppend)
	tr := &fakeTransport{}

	inputs := status.AutoAdvanceInputs{
		ElapsedMs:     int64p(9960),
		DurationMs:    int64p(10000),
		HasNowPlaying: true,
	}
	dispatched := q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1")
	require.True(t, dispatched)
	require.Equal(t, []string{"T2"}, tr.Played())
}

func TestEvaluateAutoAdvanceSuppressedWhenUserPaused(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2"}, AddAppend)
	tr := &fakeTransport{}

	inputs := status.AutoAdvanceInputs{
		ElapsedMs:     int64p(9999),
		DurationMs:    int64p(10000),
		UserPaused:    true,
		HasNowPlaying: true,
	}
	dispatched := q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1")
	require.False(t, dispatched)
	require.Empty(t, tr.Played())
}

func TestEvaluateAutoAdvanceSuppressedDuringSeekInFlight(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2"}, AddAppend)
	tr := &fakeTransport{}

	inputs := status.AutoAdvanceInputs{
		ElapsedMs:     int64p(9999),
		DurationMs:    int64p(10000),
		SeekInFlight:  true,
		HasNowPlaying: true,
	}
	require.False(t, q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1"))
}

func TestEvaluateAutoAdvanceSuppressedWhileAutoAdvanceInFlight(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2"}, AddAppend)
	tr := &fakeTransport{}

	inputs := status.AutoAdvanceInputs{
		ElapsedMs:           int64p(9999),
		DurationMs:          int64p(10000),
		AutoAdvanceInFlight: true,
		HasNowPlaying:       true,
	}
	require.False(t, q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1"))
}

func TestEvaluateAutoAdvanceSuppressedDuringOutputSwitchGrace(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2"}, AddAppend)
	q.SetSwitchGraceActive(func() bool { return true })
	tr := &fakeTransport{}

	inputs := status.AutoAdvanceInputs{
		PreviousDurationMs: int64p(10000),
		HasNowPlaying:      true,
	}
	require.False(t, q.EvaluateAutoAdvance(context.Background(), tr, inputs, "T1"))
	require.Empty(t, tr.Played())
}

func TestPreviousReplaysMostRecentDistinctHistoryEntry(t *testing.T) {
	bus := eventbus.New()
	store := status.New(bus)
	q := New(bus, store)
	tr := &fakeTransport{}

	q.Add([]string{"T2"}, AddAppend)
	q.EvaluateAutoAdvance(context.Background(), tr, status.AutoAdvanceInputs{
		PreviousDurationMs: int64p(10000), HasNowPlaying: true,
	}, "T1")

	path, ok, err := q.Previous(context.Background(), tr, "T2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T1", path)
}

func TestNextPopsHeadAndRecordsHistory(t *testing.T) {
	q := New(eventbus.New(), nil)
	q.Add([]string{"T2", "T3"}, AddAppend)
	tr := &fakeTransport{}

	path, ok, err := q.Next(context.Background(), tr, "T1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T2", path)
	require.Equal(t, []string{"T3"}, q.List())
}
