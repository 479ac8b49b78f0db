// Package playqueue implements the queue service and auto-advance
// coordinator (spec.md §4.G): an ordered, deduplicated pending queue plus a
// bounded play history, guarded by a single mutex in the same
// RWMutex-over-an-ordered-slice shape as arung-agamani-denpa-radio's
// internal/playlist.Playlist.
package playqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

// tailWindowMs is the heuristic convergence window spec.md §4.G/§9 keeps as
// a tunable constant rather than deriving it from buffer size.
const tailWindowMs = 50

// historyLimit bounds how many recently-played ids are retained for
// "previous" navigation.
const historyLimit = 50

// AddMode selects whether Add appends to the tail or inserts at the head.
type AddMode int

const (
	AddAppend AddMode = iota
	AddNext
)

// Queue is the process-wide singleton queue service. Transport and Store
// are consulted (not owned) when evaluating and dispatching auto-advance.
type Queue struct {
	bus   *eventbus.Bus
	store *status.Store

	mu      sync.Mutex
	pending []string
	history []string

	// switchGraceActive, when non-nil, reports whether an output switch
	// grace period (spec.md §5 "Output switch protection") is still open;
	// during it auto-advance must not fire.
	switchGraceActive func() bool
}

func New(bus *eventbus.Bus, store *status.Store) *Queue {
	return &Queue{bus: bus, store: store}
}

// SetSwitchGraceActive wires the output registry's grace-period check
// (component I) into the auto-advance evaluator.
func (q *Queue) SetSwitchGraceActive(fn func() bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.switchGraceActive = fn
}

// List returns a copy of the pending queue in order.
func (q *Queue) List() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.pending))
	copy(out, q.pending)
	return out
}

// Add appends or front-inserts paths, deduplicating against the existing
// pending queue (spec.md §4.G, scenario S7). Returns the count actually
// added.
func (q *Queue) Add(paths []string, mode AddMode) int {
	q.mu.Lock()
	present := make(map[string]bool, len(q.pending))
	for _, p := range q.pending {
		present[p] = true
	}

	added := 0
	var fresh []string
	for _, p := range paths {
		if present[p] {
			continue
		}
		present[p] = true
		fresh = append(fresh, p)
		added++
	}

	switch mode {
	case AddNext:
		q.pending = append(fresh, q.pending...)
	default:
		q.pending = append(q.pending, fresh...)
	}
	q.mu.Unlock()

	if added > 0 {
		q.publishQueueChanged()
	}
	return added
}

// Remove drops the first occurrence of path from the pending queue.
func (q *Queue) Remove(path string) bool {
	q.mu.Lock()
	removed := false
	for i, p := range q.pending {
		if p == path {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()
	if removed {
		q.publishQueueChanged()
	}
	return removed
}

// Clear empties the pending queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	had := len(q.pending) > 0
	q.pending = nil
	q.mu.Unlock()
	if had {
		q.publishQueueChanged()
	}
}

// recordPlayed appends an id to history, bounding its length, and updates
// has_previous on the status store.
func (q *Queue) recordPlayed(id string) {
	q.mu.Lock()
	q.history = append(q.history, id)
	if len(q.history) > historyLimit {
		q.history = q.history[len(q.history)-historyLimit:]
	}
	q.mu.Unlock()
	if q.store != nil {
		q.store.SetHasPrevious(true)
	}
}

func (q *Queue) publishQueueChanged() {
	if q.bus == nil {
		return
	}
	q.bus.Publish(eventbus.Event{Kind: eventbus.KindQueueChanged, Data: q.List()})
}

// popHead removes and returns the pending queue's first entry.
func (q *Queue) popHead() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	head := q.pending[0]
	q.pending = q.pending[1:]
	return head, true
}

// Next dispatches the head of the pending queue via tr, unconditionally
// (manual skip — the POST /queue/next surface), and records the previously
// playing track in history.
func (q *Queue) Next(ctx context.Context, tr transport.Transport, currentlyPlaying string) (string, bool, error) {
	head, ok := q.popHead()
	if !ok {
		return "", false, nil
	}
	q.publishQueueChanged()
	if currentlyPlaying != "" {
		q.recordPlayed(currentlyPlaying)
	}
	err := tr.Play(ctx, transport.PlayRequest{Path: head, StartPaused: false})
	return head, true, err
}

// Previous dispatches the most recent history entry distinct from
// currentlyPlaying.
func (q *Queue) Previous(ctx context.Context, tr transport.Transport, currentlyPlaying string) (string, bool, error) {
	q.mu.Lock()
	var target string
	found := false
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i] != currentlyPlaying {
			target = q.history[i]
			q.history = append(q.history[:i], q.history[i+1:]...)
			found = true
			break
		}
	}
	remaining := len(q.history) > 0
	q.mu.Unlock()

	if !found {
		return "", false, nil
	}
	if q.store != nil {
		q.store.SetHasPrevious(remaining)
	}
	err := tr.Play(ctx, transport.PlayRequest{Path: target, StartPaused: false})
	return target, true, err
}

// EvaluateAutoAdvance implements spec.md §4.G's auto-advance rule. It is
// called every time a status update (local or remote) arrives. inputs
// comes from status.Store.ApplyRemoteAndInputs. currentlyPlaying is the
// now_playing value before this update was applied (used for history).
func (q *Queue) EvaluateAutoAdvance(ctx context.Context, tr transport.Transport, inputs status.AutoAdvanceInputs, currentlyPlaying string) bool {
	if inputs.AutoAdvanceInFlight || inputs.SeekInFlight || inputs.UserPaused {
		return false
	}

	q.mu.Lock()
	graceActive := q.switchGraceActive != nil && q.switchGraceActive()
	q.mu.Unlock()
	if graceActive {
		return false
	}

	naturalEnd := inputs.PreviousDurationMs != nil &&
		inputs.DurationMs == nil &&
		inputs.ElapsedMs == nil &&
		inputs.HasNowPlaying

	tailWindow := inputs.ElapsedMs != nil && inputs.DurationMs != nil &&
		*inputs.ElapsedMs+tailWindowMs >= *inputs.DurationMs

	if !naturalEnd && !tailWindow {
		return false
	}

	head, ok := q.popHead()
	if !ok {
		return false
	}
	q.publishQueueChanged()
	if currentlyPlaying != "" {
		q.recordPlayed(currentlyPlaying)
	}
	if q.store != nil {
		q.store.SetAutoAdvanceInFlight(true)
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := tr.Play(dispatchCtx, transport.PlayRequest{Path: head, StartPaused: false}); err != nil {
		slog.Warn("playqueue: auto-advance dispatch failed", "path", head, "error", err)
	}
	return true
}
