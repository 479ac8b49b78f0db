// Package discovery implements mDNS bridge discovery and per-bridge stream
// supervisors (spec.md §4.K). Announcement in the retrieval pack only shows
// the publish side (doismellburning-samoyed's src/dns_sd.go, announcing
// "_kiss-tnc._tcp" via github.com/brutella/dnssd's Responder); the browse
// side used here follows that same package's symmetric LookupType API.
package discovery

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brutella/dnssd"

	"github.com/komorebi-audio/hub/internal/eventbus"
)

// ServiceType is the mDNS service type bridges announce themselves under.
const ServiceType = "_audio-bridge._tcp.local."

// healthSilenceLimit evicts a discovered bridge whose health check has gone
// unanswered this long.
const healthSilenceLimit = 60 * time.Second

// healthCheckInterval is how often the health watcher pings every
// discovered bridge.
const healthCheckInterval = 15 * time.Second

// BridgeRecord describes one discovered (or statically configured) bridge.
type BridgeRecord struct {
	ID         string
	Name       string
	Address    string // host:port
	LastSeen   time.Time
	Discovered bool
}

// stripTXTPrefix strips a leading "key=" some mDNS TXT encoders prepend to
// every value (spec.md §9's mDNS property-decoding note).
func stripTXTPrefix(key, value string) string {
	prefix := key + "="
	return strings.TrimPrefix(value, prefix)
}

// Registry holds the discovered-bridge map plus any statically configured
// bridges, guarded by a short-held mutex per spec.md §5.
type Registry struct {
	bus *eventbus.Bus

	mu         sync.Mutex
	discovered map[string]*BridgeRecord
	configured map[string]*BridgeRecord
}

func NewRegistry(bus *eventbus.Bus) *Registry {
	return &Registry{
		bus:        bus,
		discovered: make(map[string]*BridgeRecord),
		configured: make(map[string]*BridgeRecord),
	}
}

// AddConfigured registers a statically configured bridge (from the CLI
// bridges file), which is never evicted by the health watcher.
func (r *Registry) AddConfigured(id, name, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configured[id] = &BridgeRecord{ID: id, Name: name, Address: address}
}

// All returns every known bridge, configured and discovered.
func (r *Registry) All() []BridgeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BridgeRecord, 0, len(r.configured)+len(r.discovered))
	for _, b := range r.configured {
		out = append(out, *b)
	}
	for _, b := range r.discovered {
		out = append(out, *b)
	}
	return out
}

// Get returns one bridge record by id.
func (r *Registry) Get(id string) (BridgeRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.configured[id]; ok {
		return *b, true
	}
	if b, ok := r.discovered[id]; ok {
		return *b, true
	}
	return BridgeRecord{}, false
}

func (r *Registry) upsertDiscovered(rec BridgeRecord) {
	r.mu.Lock()
	r.discovered[rec.ID] = &rec
	r.mu.Unlock()
	r.publishChanged()
}

func (r *Registry) evictDiscovered(id string) {
	r.mu.Lock()
	_, existed := r.discovered[id]
	delete(r.discovered, id)
	r.mu.Unlock()
	if existed {
		r.publishChanged()
	}
}

func (r *Registry) touch(id string) {
	r.mu.Lock()
	if b, ok := r.discovered[id]; ok {
		b.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

func (r *Registry) publishChanged() {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Kind: eventbus.KindOutputsChanged, Data: r.All()})
}

// Browse subscribes to the bridge service type and updates the registry on
// resolve/remove events, running until ctx is cancelled.
func (r *Registry) Browse(ctx context.Context) error {
	add := func(e dnssd.BrowseEntry) {
		rec := recordFromEntry(e)
		slog.Info("discovery: bridge resolved", "id", rec.ID, "address", rec.Address)
		rec.LastSeen = time.Now()
		r.upsertDiscovered(rec)
	}
	remove := func(e dnssd.BrowseEntry) {
		id := idFromEntry(e)
		slog.Info("discovery: bridge removed", "id", id)
		r.evictDiscovered(id)
	}
	return dnssd.LookupType(ctx, ServiceType, add, remove)
}

func idFromEntry(e dnssd.BrowseEntry) string {
	if v, ok := e.Text["id"]; ok {
		return stripTXTPrefix("id", string(v))
	}
	return e.Name
}

func recordFromEntry(e dnssd.BrowseEntry) BridgeRecord {
	id := idFromEntry(e)
	name := e.Name
	if v, ok := e.Text["name"]; ok {
		name = stripTXTPrefix("name", string(v))
	}
	port := e.Port
	if v, ok := e.Text["api_port"]; ok {
		if p, err := strconv.Atoi(stripTXTPrefix("api_port", string(v))); err == nil {
			port = p
		}
	}

	host := e.Name
	for _, ip := range e.IPs {
		host = ip.String()
		break
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))

	return BridgeRecord{ID: id, Name: name, Address: address, Discovered: true}
}

// healthChecker is the narrow interface the health watcher needs; *bridge.Client
// satisfies it.
type healthChecker = interface {
	Health(ctx context.Context) error
}

// WatchHealth pings every discovered bridge's /health on an interval,
// evicting any whose last successful check is older than
// healthSilenceLimit (spec.md §4.K). newClient builds (or reuses) a client
// for a bridge's address; ctx cancellation stops the loop.
func (r *Registry) WatchHealth(ctx context.Context, newClient func(address string) healthChecker) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	lastHealthy := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			ids := make([]string, 0, len(r.discovered))
			addrs := make(map[string]string, len(r.discovered))
			for id, b := range r.discovered {
				ids = append(ids, id)
				addrs[id] = b.Address
			}
			r.mu.Unlock()

			for _, id := range ids {
				client := newClient(addrs[id])
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				err := client.Health(checkCtx)
				cancel()

				if err == nil {
					lastHealthy[id] = time.Now()
					r.touch(id)
					continue
				}
				if last, ok := lastHealthy[id]; ok && time.Since(last) <= healthSilenceLimit {
					continue
				}
				if _, ok := lastHealthy[id]; !ok {
					lastHealthy[id] = time.Now().Add(-healthSilenceLimit / 2)
					continue
				}
				slog.Warn("discovery: bridge health silent, evicting", "id", id)
				r.evictDiscovered(id)
				delete(lastHealthy, id)
			}
		}
	}
}
