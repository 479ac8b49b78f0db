package localout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/pipeline"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

func newFixture(t *testing.T) (*Provider, *outputs.Registry) {
	t.Helper()
	bus := eventbus.New()
	store := status.New(bus)
	registry := outputs.NewRegistry(bus)
	queue := playqueue.New(bus, store)

	p := New(t.TempDir(), pipeline.DefaultConfig(), store, queue, registry)
	t.Cleanup(p.Close)
	registry.Register(p)
	return p, registry
}

func TestListOutputsReportsOneReadyDevice(t *testing.T) {
	p, _ := newFixture(t)
	out := p.ListOutputs()
	require.Len(t, out, 1)
	require.Equal(t, OutputID, out[0].ID)
	require.Equal(t, outputs.StateReady, out[0].State)
}

func TestCanHandleOutputIDMatchesLocalPrefix(t *testing.T) {
	p, _ := newFixture(t)
	require.True(t, p.CanHandleOutputID("local:host:default"))
	require.False(t, p.CanHandleOutputID("bridge:x:y"))
}

func TestEnsureActiveConnectedRejectsUnknownID(t *testing.T) {
	p, _ := newFixture(t)
	require.NoError(t, p.EnsureActiveConnected(context.Background(), OutputID))
	require.Error(t, p.EnsureActiveConnected(context.Background(), "local:other:default"))
}

func TestResolvePathStaysUnderMediaRoot(t *testing.T) {
	p, _ := newFixture(t)
	abs, err := p.resolvePath("../../etc/passwd")
	require.NoError(t, err)
	// Clean("/../../etc/passwd") collapses under mediaRoot, never escapes it.
	require.Contains(t, abs, p.mediaRoot)
}

func TestPlayWithMissingFileIsBadRequest(t *testing.T) {
	p, _ := newFixture(t)
	err := p.Play(context.Background(), transport.PlayRequest{Path: "nope.mp3"})
	require.Error(t, err)
}

func TestPlayOpensExistingFileAndFailsAtDecodeStage(t *testing.T) {
	p, _ := newFixture(t)

	wavPath := filepath.Join(p.mediaRoot, "silence.wav")
	require.NoError(t, os.WriteFile(wavPath, []byte("not a real wav file"), 0o644))

	// The file exists and opens, so Play proceeds to pipeline.Play, which
	// fails decoding this placeholder content; this still exercises the
	// path-resolution and file-open half of Play.
	err := p.Play(context.Background(), transport.PlayRequest{Path: "silence.wav"})
	require.Error(t, err)
}

func TestSeekWithoutActiveSessionIsUnavailable(t *testing.T) {
	p, _ := newFixture(t)
	err := p.Seek(context.Background(), 1000)
	require.Error(t, err)
}

func TestPauseToggleWithoutSessionIsUnavailable(t *testing.T) {
	p, _ := newFixture(t)
	err := p.PauseToggle(context.Background())
	require.Error(t, err)
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	p, _ := newFixture(t)
	require.NoError(t, p.Stop(context.Background()))
}

func TestStatusForOutputReportsCurrentPath(t *testing.T) {
	p, _ := newFixture(t)
	st, err := p.StatusForOutput(OutputID)
	require.NoError(t, err)
	require.Equal(t, OutputID, st.OutputID)
	require.Equal(t, outputs.StateReady, st.State)

	_, err = p.StatusForOutput("local:other:default")
	require.Error(t, err)
}
