package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/apperr"
)

func TestPlaySendsOnChannel(t *testing.T) {
	tr := NewChannelTransport(1)
	err := tr.Play(context.Background(), PlayRequest{Path: "/a.mp3"})
	require.NoError(t, err)

	cmd := <-tr.Commands()
	require.Equal(t, CommandPlay, cmd.Kind)
	require.Equal(t, "/a.mp3", cmd.Play.Path)
}

func TestSendCollapsesToOfflineWhenChannelFullAndContextExpires(t *testing.T) {
	tr := NewChannelTransport(1)
	require.NoError(t, tr.Stop(context.Background())) // fills the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tr.Seek(ctx, 5000)
	require.Error(t, err)
	require.True(t, apperr.IsUnavailable(err))
}

func TestPauseToggleAndStopEnqueueDistinctKinds(t *testing.T) {
	tr := NewChannelTransport(2)
	require.NoError(t, tr.PauseToggle(context.Background()))
	require.NoError(t, tr.Stop(context.Background()))

	require.Equal(t, CommandPauseToggle, (<-tr.Commands()).Kind)
	require.Equal(t, CommandStop, (<-tr.Commands()).Kind)
}
