// Package localout implements the in-process "local" output provider
// (spec.md §4.I): it owns the one live pipeline.Session for the host's own
// audio device and exposes it through both outputs.Provider and
// transport.Transport, the same dual-role pairing the bridge and browser
// providers use. Polling the live session's counters into the status store
// on a ticker mirrors the periodic-callback pattern
// arung-agamani-denpa-radio's playlist.Scheduler uses around a
// time.Ticker.
package localout

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/pipeline"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

// pollInterval is how often the background loop samples the live
// session's counters into the status store.
const pollInterval = 250 * time.Millisecond

var hostLabel = func() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "host"
	}
	return h
}()

// OutputID is the one output id this provider ever reports.
var OutputID = "local:" + hostLabel + ":default"

// Provider drives the host's own audio device via internal/pipeline. It
// implements both outputs.Provider and transport.Transport.
type Provider struct {
	mediaRoot string
	cfg       pipeline.Config
	store     *status.Store
	queue     *playqueue.Queue
	registry  *outputs.Registry

	mu      sync.Mutex
	session *pipeline.Session
	path    string

	lastDurationMs *int64
	stopPoll       chan struct{}
}

func New(mediaRoot string, cfg pipeline.Config, store *status.Store, queue *playqueue.Queue, registry *outputs.Registry) *Provider {
	p := &Provider{
		mediaRoot: mediaRoot,
		cfg:       cfg,
		store:     store,
		queue:     queue,
		registry:  registry,
		stopPoll:  make(chan struct{}),
	}
	go p.pollLoop()
	return p
}

// Close stops the background poll loop and cancels any live session.
func (p *Provider) Close() {
	close(p.stopPoll)
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
}

func (p *Provider) isActive() bool {
	active, ok := p.registry.Active()
	return ok && active.OutputID == OutputID
}

// --- outputs.Provider ---

func (p *Provider) ProviderID() string { return "local" }

func (p *Provider) ListOutputs() []outputs.Output {
	return []outputs.Output{{
		ID:           OutputID,
		Kind:         "local",
		Name:         "This machine",
		State:        outputs.StateReady,
		Capabilities: map[outputs.Capability]bool{},
	}}
}

func (p *Provider) CanHandleOutputID(id string) bool {
	return strings.HasPrefix(id, "local:")
}

func (p *Provider) EnsureActiveConnected(ctx context.Context, outputID string) error {
	if outputID != OutputID {
		return apperr.BadRequest("unknown local output id " + outputID)
	}
	return nil
}

func (p *Provider) SelectOutput(ctx context.Context, outputID string) error {
	return p.EnsureActiveConnected(ctx, outputID)
}

func (p *Provider) StatusForOutput(outputID string) (outputs.Status, error) {
	if outputID != OutputID {
		return outputs.Status{}, apperr.BadRequest("unknown local output id " + outputID)
	}
	p.mu.Lock()
	path := p.path
	p.mu.Unlock()
	return outputs.Status{OutputID: outputID, State: outputs.StateReady, NowPlaying: path}, nil
}

// --- transport.Transport ---

func (p *Provider) resolvePath(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	joined := filepath.Join(p.mediaRoot, clean)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", apperr.BadRequest("invalid media path")
	}
	return abs, nil
}

func extHintFor(req transport.PlayRequest) string {
	if req.ExtHint != "" {
		return req.ExtHint
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Path)), ".")
}

func (p *Provider) Play(ctx context.Context, req transport.PlayRequest) error {
	abs, err := p.resolvePath(req.Path)
	if err != nil {
		return err
	}
	f, err := os.Open(abs)
	if err != nil {
		return apperr.BadRequest("cannot open " + req.Path)
	}

	sess, err := pipeline.Play(f, req.Path, extHintFor(req), req.SeekMs, req.StartPaused, p.cfg)
	if err != nil {
		f.Close()
		return apperr.FatalSession("starting local playback", err)
	}

	p.mu.Lock()
	old := p.session
	p.session = sess
	p.path = req.Path
	p.lastDurationMs = nil
	p.mu.Unlock()

	if old != nil {
		old.Cancel()
	}

	p.store.OnPlay(req.Path, req.StartPaused)
	return nil
}

func (p *Provider) PauseToggle(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return apperr.Unavailable("no active local session", nil)
	}
	sess.SetPaused(!sess.Paused())
	p.store.OnPauseToggle()
	return nil
}

func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.session = nil
	p.path = ""
	p.mu.Unlock()
	if sess != nil {
		sess.Cancel()
	}
	p.store.OnStop()
	return nil
}

func (p *Provider) Seek(ctx context.Context, ms int64) error {
	p.mu.Lock()
	path := p.path
	p.mu.Unlock()
	if path == "" {
		return apperr.Unavailable("no active local session to seek", nil)
	}
	if err := p.Play(ctx, transport.PlayRequest{Path: path, SeekMs: &ms}); err != nil {
		return err
	}
	p.store.MarkSeekInFlight()
	return nil
}

// pollLoop periodically folds the live session's counters into the status
// store as a RemoteReport (the same merge path a bridge's status SSE feed
// uses), and evaluates auto-advance when the local output is the active
// one.
func (p *Provider) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopPoll:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Provider) tick() {
	p.mu.Lock()
	sess := p.session
	path := p.path
	lastDuration := p.lastDurationMs
	p.mu.Unlock()
	if sess == nil || sess.Cancelled() {
		return
	}

	buffered, capacity, underrunFrames, underrunEvents, elapsedMs := sess.PollStatus()
	durationMs := sess.DurationMs()
	sampleRate := sess.SourceSpec().RateHz
	channels := sess.SourceSpec().Channels
	resampling := sess.Resampling()
	deviceRate := sess.DeviceRateHz()

	report := status.RemoteReport{
		NowPlaying:           &path,
		ElapsedMs:            &elapsedMs,
		DurationMs:           durationMs,
		SampleRate:           &sampleRate,
		Channels:             &channels,
		Resampling:           &resampling,
		DeviceRateHz:         &deviceRate,
		BufferedFrames:       &buffered,
		BufferCapacityFrames: &capacity,
		UnderrunFrames:       &underrunFrames,
		UnderrunEvents:       &underrunEvents,
	}
	inputs := p.store.ApplyRemoteAndInputs(report, lastDuration)

	p.mu.Lock()
	p.lastDurationMs = durationMs
	p.mu.Unlock()

	if p.isActive() {
		p.queue.EvaluateAutoAdvance(context.Background(), p, inputs, path)
	}
}
