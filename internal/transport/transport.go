// Package transport implements the playback command abstraction (spec.md
// §4.H): play/pause_toggle/stop/seek routed to whichever provider currently
// owns the active output, with every failure collapsed to a single Offline
// kind via internal/apperr.
package transport

import (
	"context"

	"github.com/komorebi-audio/hub/internal/apperr"
)

// PlayRequest carries everything needed to start a track, mirroring
// spec.md §4.G's dispatch payload.
type PlayRequest struct {
	Path        string
	ExtHint     string
	SeekMs      *int64
	StartPaused bool
}

// Transport is implemented by whatever drives the currently-active output:
// the in-process pipeline (local provider) or a bridge's HTTP client.
type Transport interface {
	Play(ctx context.Context, req PlayRequest) error
	PauseToggle(ctx context.Context) error
	Stop(ctx context.Context) error
	Seek(ctx context.Context, ms int64) error
}

// CommandKind tags a queued Command's payload.
type CommandKind int

const (
	CommandPlay CommandKind = iota
	CommandPauseToggle
	CommandStop
	CommandSeek
)

// Command is one entry in a ChannelTransport's queue.
type Command struct {
	Kind   CommandKind
	Play   PlayRequest
	SeekMs int64
}

// ChannelTransport sends commands into a bounded channel for a worker loop
// to drain through Commands(), generalizing the manager/worker split
// spec.md §4.H describes. No provider in this module consumes one.
type ChannelTransport struct {
	ch chan Command
}

// NewChannelTransport creates a transport with the given channel capacity.
func NewChannelTransport(buffer int) *ChannelTransport {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelTransport{ch: make(chan Command, buffer)}
}

// Commands exposes the consumer side for the owning worker loop.
func (t *ChannelTransport) Commands() <-chan Command {
	return t.ch
}

func (t *ChannelTransport) send(ctx context.Context, cmd Command) error {
	select {
	case t.ch <- cmd:
		return nil
	case <-ctx.Done():
		return apperr.Unavailable("transport offline", ctx.Err())
	}
}

func (t *ChannelTransport) Play(ctx context.Context, req PlayRequest) error {
	return t.send(ctx, Command{Kind: CommandPlay, Play: req})
}

func (t *ChannelTransport) PauseToggle(ctx context.Context) error {
	return t.send(ctx, Command{Kind: CommandPauseToggle})
}

func (t *ChannelTransport) Stop(ctx context.Context) error {
	return t.send(ctx, Command{Kind: CommandStop})
}

func (t *ChannelTransport) Seek(ctx context.Context, ms int64) error {
	return t.send(ctx, Command{Kind: CommandSeek, SeekMs: ms})
}
