// Package bridgeout adapts discovered (or statically configured) renderers
// into outputs.Provider and per-output transport.Transport instances
// (spec.md §4.I/§4.J/§4.K). One bridgeConn owns the bridge.Client plus two
// discovery.Supervisor-driven reconnect loops (devices, status), the same
// connect/backoff/evict state machine component K uses for its own
// discovery-health watcher, reused here for the SSE consumer side.
package bridgeout

import (
	"context"
	"strings"
	"sync"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/bridge"
	"github.com/komorebi-audio/hub/internal/discovery"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

// clientFactory builds a bridge.Client for one discovered address; tests
// substitute a factory pointed at an httptest.Server.
type clientFactory func(baseURL, publicBaseURL string) *bridge.Client

// bridgeConn is one renderer's live connection state: its client, its
// reconnect-loop supervisors, and the last device list/status it reported.
type bridgeConn struct {
	id, name string
	client   *bridge.Client
	cancel   context.CancelFunc

	mu             sync.Mutex
	devices        []bridge.Device
	selectedDevice string
	lastStatus     bridge.Status
	lastDurationMs *int64
}

// Manager tracks every known bridge's connection and implements
// outputs.Provider under the "bridge" prefix, plus id-keyed transport
// dispatch mirroring browserout.Manager's convenience methods.
type Manager struct {
	publicBaseURL string
	newClient     clientFactory
	registry      *outputs.Registry
	store         *status.Store
	queue         *playqueue.Queue

	mu    sync.Mutex
	conns map[string]*bridgeConn
}

func NewManager(publicBaseURL string, registry *outputs.Registry, store *status.Store, queue *playqueue.Queue) *Manager {
	return &Manager{
		publicBaseURL: publicBaseURL,
		newClient:     bridge.New,
		registry:      registry,
		store:         store,
		queue:         queue,
		conns:         make(map[string]*bridgeConn),
	}
}

// SetClientFactory overrides how bridge.Client instances are built; tests
// use this to point at an httptest.Server instead of a real renderer.
func (m *Manager) SetClientFactory(fn clientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newClient = fn
}

// Sync reconciles the manager's live connections against the discovery
// registry's current bridge set: new records get a client plus two stream
// supervisors, vanished records are torn down.
func (m *Manager) Sync(records []discovery.BridgeRecord) {
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		seen[rec.ID] = true
		m.mu.Lock()
		_, exists := m.conns[rec.ID]
		m.mu.Unlock()
		if exists {
			continue
		}
		m.connect(rec)
	}

	m.mu.Lock()
	var stale []*bridgeConn
	for id, c := range m.conns {
		if !seen[id] {
			stale = append(stale, c)
			delete(m.conns, id)
		}
	}
	m.mu.Unlock()
	for _, c := range stale {
		c.cancel()
	}
}

func (m *Manager) connect(rec discovery.BridgeRecord) {
	m.mu.Lock()
	factory := m.newClient
	m.mu.Unlock()

	client := factory(rec.Address, m.publicBaseURL)
	ctx, cancel := context.WithCancel(context.Background())
	conn := &bridgeConn{id: rec.ID, name: rec.Name, client: client, cancel: cancel}

	m.mu.Lock()
	m.conns[rec.ID] = conn
	m.mu.Unlock()

	go m.runDeviceStream(ctx, conn)
	go m.runStatusStream(ctx, conn)
}

func (m *Manager) runDeviceStream(ctx context.Context, conn *bridgeConn) {
	sup := discovery.NewSupervisor("bridge:"+conn.id+":devices", false)
	sup.Run(ctx, func(ctx context.Context, onEvent func()) error {
		return conn.client.ListenDevicesStream(ctx, func(devices []bridge.Device) {
			conn.mu.Lock()
			conn.devices = devices
			conn.mu.Unlock()
			onEvent()
			if m.registry != nil {
				m.registry.InjectActiveOutputIfMissing()
			}
		})
	}, nil)
}

func (m *Manager) runStatusStream(ctx context.Context, conn *bridgeConn) {
	sup := discovery.NewSupervisor("bridge:"+conn.id+":status", false)
	sup.Run(ctx, func(ctx context.Context, onEvent func()) error {
		return conn.client.ListenStatusStream(ctx, func(st bridge.Status) {
			onEvent()
			m.applyStatus(conn, st)
		})
	}, nil)
}

func (m *Manager) applyStatus(conn *bridgeConn, st bridge.Status) {
	conn.mu.Lock()
	conn.lastStatus = st
	lastDuration := conn.lastDurationMs
	conn.lastDurationMs = st.DurationMs
	conn.mu.Unlock()

	if m.store == nil {
		return
	}
	report := status.RemoteReport{
		NowPlaying: st.NowPlaying,
		ElapsedMs:  st.ElapsedMs,
		DurationMs: st.DurationMs,
	}
	prevNowPlaying := m.store.Snapshot().NowPlaying
	inputs := m.store.ApplyRemoteAndInputs(report, lastDuration)

	if m.queue == nil || m.registry == nil {
		return
	}
	active, ok := m.registry.Active()
	if !ok || active.BridgeID != conn.id {
		return
	}
	m.queue.EvaluateAutoAdvance(context.Background(), m.transportFor(conn), inputs, prevNowPlaying)
}

// buildOutputID builds the "bridge:<bridge_id>:<device>" id scheme.
func buildOutputID(bridgeID, device string) string {
	return "bridge:" + bridgeID + ":" + device
}

// splitOutputID parses a bridge output id into its bridge and device
// segments.
func splitOutputID(id string) (bridgeID, device string, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != "bridge" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func (m *Manager) lookup(bridgeID string) (*bridgeConn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[bridgeID]
	return c, ok
}

// --- outputs.Provider ---

func (m *Manager) ProviderID() string { return "bridge" }

func (m *Manager) ListOutputs() []outputs.Output {
	m.mu.Lock()
	conns := make([]*bridgeConn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	var out []outputs.Output
	for _, c := range conns {
		c.mu.Lock()
		devices := append([]bridge.Device(nil), c.devices...)
		name := c.name
		c.mu.Unlock()

		for _, d := range devices {
			out = append(out, outputs.Output{
				ID:           buildOutputID(c.id, d.Name),
				Kind:         "bridge",
				Name:         name + " / " + d.Name,
				State:        outputs.StateReady,
				Capabilities: map[outputs.Capability]bool{outputs.CapabilityDeviceSelect: true},
			})
		}
	}
	return out
}

func (m *Manager) CanHandleOutputID(id string) bool {
	_, _, ok := splitOutputID(id)
	return ok
}

func (m *Manager) EnsureActiveConnected(ctx context.Context, outputID string) error {
	bridgeID, _, ok := splitOutputID(outputID)
	if !ok {
		return apperr.BadRequest("malformed bridge output id " + outputID)
	}
	conn, ok := m.lookup(bridgeID)
	if !ok {
		return apperr.Unavailable("bridge not connected: "+bridgeID, nil)
	}
	return conn.client.Health(ctx)
}

func (m *Manager) SelectOutput(ctx context.Context, outputID string) error {
	bridgeID, device, ok := splitOutputID(outputID)
	if !ok {
		return apperr.BadRequest("malformed bridge output id " + outputID)
	}
	conn, ok := m.lookup(bridgeID)
	if !ok {
		return apperr.Unavailable("bridge not connected: "+bridgeID, nil)
	}
	if err := conn.client.SetDevice(ctx, device); err != nil {
		return err
	}
	conn.mu.Lock()
	conn.selectedDevice = device
	conn.mu.Unlock()
	return nil
}

func (m *Manager) StatusForOutput(outputID string) (outputs.Status, error) {
	bridgeID, _, ok := splitOutputID(outputID)
	if !ok {
		return outputs.Status{}, apperr.BadRequest("malformed bridge output id "+outputID)
	}
	conn, ok := m.lookup(bridgeID)
	if !ok {
		return outputs.Status{}, apperr.Unavailable("bridge not connected: "+bridgeID, nil)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	now := ""
	if conn.lastStatus.NowPlaying != nil {
		now = *conn.lastStatus.NowPlaying
	}
	return outputs.Status{OutputID: outputID, State: outputs.StateReady, NowPlaying: now}, nil
}

// --- transport.Transport, keyed by bridge id ---

// bridgeTransport adapts one bridgeConn to transport.Transport so the
// active-output dispatcher (internal/httpapi/service) can treat every
// output kind uniformly.
type bridgeTransport struct {
	conn *bridgeConn
}

func (t bridgeTransport) Play(ctx context.Context, req transport.PlayRequest) error {
	return t.conn.client.PlayPath(ctx, req.Path, req.ExtHint, "", req.SeekMs, req.StartPaused)
}

func (t bridgeTransport) PauseToggle(ctx context.Context) error {
	return t.conn.client.PauseToggle(ctx)
}

func (t bridgeTransport) Stop(ctx context.Context) error {
	return t.conn.client.Stop(ctx)
}

func (t bridgeTransport) Seek(ctx context.Context, ms int64) error {
	return t.conn.client.Seek(ctx, ms)
}

func (m *Manager) transportFor(conn *bridgeConn) transport.Transport {
	return bridgeTransport{conn: conn}
}

// TransportForOutput resolves outputID to the transport.Transport that
// drives its owning bridge, for the active-output dispatcher.
func (m *Manager) TransportForOutput(outputID string) (transport.Transport, error) {
	bridgeID, _, ok := splitOutputID(outputID)
	if !ok {
		return nil, apperr.BadRequest("malformed bridge output id " + outputID)
	}
	conn, ok := m.lookup(bridgeID)
	if !ok {
		return nil, apperr.Unavailable("bridge not connected: "+bridgeID, nil)
	}
	return m.transportFor(conn), nil
}

// Close tears down every live bridge connection's stream goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	conns := make([]*bridgeConn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*bridgeConn)
	m.mu.Unlock()
	for _, c := range conns {
		c.cancel()
	}
}
