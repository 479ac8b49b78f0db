package outputs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/eventbus"
)

type fakeProvider struct {
	id       string
	outs     []Output
	selected string
	ensureErr error
}

func (f *fakeProvider) ProviderID() string      { return f.id }
func (f *fakeProvider) ListOutputs() []Output   { return f.outs }
func (f *fakeProvider) CanHandleOutputID(id string) bool {
	return strings.HasPrefix(id, f.id+":")
}
func (f *fakeProvider) EnsureActiveConnected(ctx context.Context, outputID string) error {
	return f.ensureErr
}
func (f *fakeProvider) SelectOutput(ctx context.Context, outputID string) error {
	f.selected = outputID
	return nil
}
func (f *fakeProvider) StatusForOutput(outputID string) (Status, error) {
	return Status{OutputID: outputID, State: StateReady}, nil
}

func TestListOutputsUnionsAllProviders(t *testing.T) {
	r := NewRegistry(eventbus.New())
	r.Register(&fakeProvider{id: "local", outs: []Output{{ID: "local:host:default", State: StateReady}}})
	r.Register(&fakeProvider{id: "bridge", outs: []Output{{ID: "bridge:b1:alsa0", State: StateReady}}})

	all := r.ListOutputs()
	require.Len(t, all, 2)
}

func TestSelectRoutesByIDPrefixAndOpensGraceWindow(t *testing.T) {
	r := NewRegistry(eventbus.New())
	local := &fakeProvider{id: "local", outs: []Output{{ID: "local:host:default", State: StateReady}}}
	r.Register(local)

	err := r.Select(context.Background(), "local:host:default")
	require.NoError(t, err)
	require.Equal(t, "local:host:default", local.selected)
	require.True(t, r.SwitchGraceActive())

	active, ok := r.Active()
	require.True(t, ok)
	require.Equal(t, "local", active.ProviderID)
}

func TestSelectUnknownIDReturnsBadRequest(t *testing.T) {
	r := NewRegistry(eventbus.New())
	r.Register(&fakeProvider{id: "local"})

	err := r.Select(context.Background(), "bridge:ghost:x")
	require.Error(t, err)
	require.True(t, apperr.IsBadRequest(err))
}

func TestSelectPropagatesEnsureConnectedFailureAsUnavailable(t *testing.T) {
	r := NewRegistry(eventbus.New())
	r.Register(&fakeProvider{id: "bridge", outs: []Output{{ID: "bridge:b1:alsa0"}}, ensureErr: context.DeadlineExceeded})

	err := r.Select(context.Background(), "bridge:b1:alsa0")
	require.True(t, apperr.IsUnavailable(err))
}

func TestBridgeIDExtractedFromOutputID(t *testing.T) {
	require.Equal(t, "b1", bridgeIDFromOutputID("bridge:b1:alsa0"))
	require.Equal(t, "", bridgeIDFromOutputID("local:host:default"))
}

func TestInjectActiveOutputIfMissingPicksFirstReady(t *testing.T) {
	r := NewRegistry(eventbus.New())
	r.Register(&fakeProvider{id: "local", outs: []Output{
		{ID: "local:host:muted", State: StateUnavailable},
		{ID: "local:host:default", State: StateReady},
	}})

	r.InjectActiveOutputIfMissing()
	active, ok := r.Active()
	require.True(t, ok)
	require.Equal(t, "local:host:default", active.OutputID)
}
