// Package outputs implements the output provider registry and active
// output state machine (spec.md §4.I): providers are polymorphic over a
// capability set, and the registry is the composition point that unions
// list operations and routes id-keyed operations by prefix claim. The
// narrow-interface, snapshot-returning style follows
// arung-agamani-denpa-radio's internal/radio/service package.
package outputs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/eventbus"
)

// State is an output's connectivity state.
type State string

const (
	StateReady       State = "ready"
	StateConnecting  State = "connecting"
	StateOffline     State = "offline"
	StateUnavailable State = "unavailable"
)

// Capability names an optional operation a provider's outputs support.
type Capability string

const (
	CapabilityDeviceSelect Capability = "device_select"
	CapabilityVolume       Capability = "volume"
)

// Output is a logical destination, id-namespaced as
// "<provider>:<instance>:<device>" (spec.md §3).
type Output struct {
	ID           string
	Kind         string
	Name         string
	State        State
	MinRateHz    *int
	MaxRateHz    *int
	Capabilities map[Capability]bool
}

// ActiveSelection names at most one active output plus its derived
// provider/bridge ids.
type ActiveSelection struct {
	OutputID   string
	ProviderID string
	BridgeID   string
}

// Status is the per-output playback status view returned by
// StatusForOutput and served at GET /outputs/{id}/status.
type Status struct {
	OutputID   string
	State      State
	NowPlaying string
}

// Provider is implemented by each output kind (bridge, local, browser).
// ProviderID is the prefix this provider claims in output ids.
type Provider interface {
	ProviderID() string
	ListOutputs() []Output
	CanHandleOutputID(id string) bool
	EnsureActiveConnected(ctx context.Context, outputID string) error
	SelectOutput(ctx context.Context, outputID string) error
	StatusForOutput(outputID string) (Status, error)
}

// switchGraceWindow is how long auto-advance stays suppressed after an
// output selection change (spec.md §5 "Output switch protection").
const switchGraceWindow = 2 * time.Second

// Registry composes every registered provider and owns the single active
// selection, per spec.md §4.I/§3.
type Registry struct {
	bus *eventbus.Bus

	mu         sync.Mutex
	providers  []Provider
	active     ActiveSelection
	hasActive  bool
	graceUntil time.Time
}

func NewRegistry(bus *eventbus.Bus) *Registry {
	return &Registry{bus: bus}
}

// Register adds a provider to the composition list. Order determines
// priority when more than one provider could in principle claim the same
// id (should not happen given the namespaced id scheme, but first-match
// wins deterministically).
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// ListProviders returns the registered provider ids.
func (r *Registry) ListProviders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.providers))
	for i, p := range r.providers {
		ids[i] = p.ProviderID()
	}
	return ids
}

// ListOutputs unions every provider's output list.
func (r *Registry) ListOutputs() []Output {
	r.mu.Lock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()

	var all []Output
	for _, p := range providers {
		all = append(all, p.ListOutputs()...)
	}
	return all
}

// OutputsForProvider returns the one provider's outputs, or false if no
// provider with that id is registered.
func (r *Registry) OutputsForProvider(providerID string) ([]Output, bool) {
	r.mu.Lock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()

	for _, p := range providers {
		if p.ProviderID() == providerID {
			return p.ListOutputs(), true
		}
	}
	return nil, false
}

// findProvider routes an id-keyed operation to the first provider that
// claims it, by prefix.
func (r *Registry) findProvider(outputID string) Provider {
	for _, p := range r.providers {
		if p.CanHandleOutputID(outputID) {
			return p
		}
	}
	return nil
}

// providerIDFromOutputID extracts the "<provider>" segment from a
// "<provider>:<instance>:<device>" id.
func providerIDFromOutputID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}

// bridgeIDFromOutputID extracts the "<instance>" segment for
// "bridge:<bridge_id>:<device>" ids; empty for non-bridge ids.
func bridgeIDFromOutputID(id string) string {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) < 2 || parts[0] != "bridge" {
		return ""
	}
	return parts[1]
}

// Active returns the current selection and whether one is set.
func (r *Registry) Active() (ActiveSelection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active, r.hasActive
}

// SwitchGraceActive reports whether the output-switch grace period is
// still open (spec.md §5); wired into playqueue's auto-advance evaluator.
func (r *Registry) SwitchGraceActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.graceUntil)
}

// Select activates outputID: it must be claimed by a registered provider,
// which is asked to ensure connectivity before the selection takes effect.
// A successful select opens the 2s auto-advance grace window and emits
// OutputsChanged.
func (r *Registry) Select(ctx context.Context, outputID string) error {
	r.mu.Lock()
	p := r.findProvider(outputID)
	r.mu.Unlock()
	if p == nil {
		return apperr.BadRequest("unknown output id " + outputID)
	}

	if err := p.EnsureActiveConnected(ctx, outputID); err != nil {
		return apperr.Unavailable("output unavailable: "+outputID, err)
	}
	if err := p.SelectOutput(ctx, outputID); err != nil {
		return apperr.Unavailable("select failed: "+outputID, err)
	}

	r.mu.Lock()
	r.active = ActiveSelection{
		OutputID:   outputID,
		ProviderID: providerIDFromOutputID(outputID),
		BridgeID:   bridgeIDFromOutputID(outputID),
	}
	r.hasActive = true
	r.graceUntil = time.Now().Add(switchGraceWindow)
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Kind: eventbus.KindOutputsChanged, Data: r.ListOutputs()})
	}
	return nil
}

// StatusForOutput routes to the claiming provider's status view.
func (r *Registry) StatusForOutput(outputID string) (Status, error) {
	r.mu.Lock()
	p := r.findProvider(outputID)
	r.mu.Unlock()
	if p == nil {
		return Status{}, apperr.BadRequest("unknown output id " + outputID)
	}
	return p.StatusForOutput(outputID)
}

// InjectActiveOutputIfMissing seeds an active selection (e.g. the first
// ready local output) when none has ever been chosen, so playback has
// somewhere to go on a cold start.
func (r *Registry) InjectActiveOutputIfMissing() {
	r.mu.Lock()
	if r.hasActive {
		r.mu.Unlock()
		return
	}
	providers := append([]Provider(nil), r.providers...)
	r.mu.Unlock()

	for _, p := range providers {
		for _, o := range p.ListOutputs() {
			if o.State == StateReady {
				r.mu.Lock()
				r.active = ActiveSelection{
					OutputID:   o.ID,
					ProviderID: providerIDFromOutputID(o.ID),
					BridgeID:   bridgeIDFromOutputID(o.ID),
				}
				r.hasActive = true
				r.mu.Unlock()
				return
			}
		}
	}
}
