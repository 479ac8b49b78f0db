package discovery

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is a stream supervisor's connection state machine position
// (spec.md §4.K): Disconnected -> Connecting -> Streaming -> Failed ->
// (backoff) -> Connecting | Evicted.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateFailed
	StateEvicted
)

// RetryBase and RetryMax implement spec.md §4.K's backoff formula:
// min(RetryBase * max(1, failures), RetryMax).
const (
	RetryBase = 2 * time.Second
	RetryMax  = 60 * time.Second
)

// MaxDiscoveredFailures evicts a discovered-only bridge after this many
// consecutive stream failures with no successful event observed.
const MaxDiscoveredFailures = 5

// Backoff computes the reconnect delay for the given consecutive-failure
// count.
func Backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := RetryBase * time.Duration(failures)
	if d > RetryMax {
		return RetryMax
	}
	return d
}

// StreamFunc runs one connect-and-consume attempt, blocking until the
// stream ends (returning the error that ended it) or ctx is cancelled
// (returning nil). onEvent is called by the implementation on every
// successfully parsed event, used by Supervisor to reset its failure
// counter without waiting for StreamFunc to return.
type StreamFunc func(ctx context.Context, onEvent func()) error

// Supervisor drives one reconnect loop for one bridge's one stream
// (device or status), per spec.md §4.K.
type Supervisor struct {
	label          string
	discoveredOnly bool
	state          atomic.Int32
	failures       atomic.Int32
	backoff        func(int) time.Duration
}

func NewSupervisor(label string, discoveredOnly bool) *Supervisor {
	return &Supervisor{label: label, discoveredOnly: discoveredOnly, backoff: Backoff}
}

// SetBackoff overrides the reconnect delay function; tests use this to
// collapse real sleeps to near-zero.
func (s *Supervisor) SetBackoff(fn func(int) time.Duration) {
	s.backoff = fn
}

func (s *Supervisor) State() State { return State(s.state.Load()) }

func (s *Supervisor) setState(st State) { s.state.Store(int32(st)) }

// Run executes the reconnect loop until ctx is cancelled or (for
// discovered-only bridges) MaxDiscoveredFailures consecutive failures with
// no event observed triggers onEvict.
func (s *Supervisor) Run(ctx context.Context, stream StreamFunc, onEvict func()) {
	s.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}

		s.setState(StateConnecting)
		eventSeen := false
		err := stream(ctx, func() {
			eventSeen = true
			s.failures.Store(0)
			s.setState(StateStreaming)
		})

		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}
		if err == nil {
			// Clean end without ctx cancellation: treat as a failure so the
			// reconnect loop still backs off rather than spinning.
			err = errStreamEndedCleanly
		}

		s.setState(StateFailed)
		if eventSeen {
			s.failures.Store(0)
		}
		failures := int(s.failures.Add(1))

		if s.discoveredOnly && failures >= MaxDiscoveredFailures && !eventSeen {
			slog.Warn("discovery: evicting bridge after repeated stream failures", "bridge", s.label, "failures", failures)
			s.setState(StateEvicted)
			if onEvict != nil {
				onEvict()
			}
			return
		}

		delay := s.backoff(failures)
		slog.Warn("discovery: stream failed, backing off", "bridge", s.label, "failures", failures, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return
		}
	}
}

var errStreamEndedCleanly = streamEndedErr{}

type streamEndedErr struct{}

func (streamEndedErr) Error() string { return "stream ended" }
