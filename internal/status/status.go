// Package status implements the single-writer player status reducer
// (spec.md §4.F): it merges local playback events and remote renderer
// reports into one PlayerStatus, publishing a StatusChanged event only
// when an observable field actually changed.
package status

import (
	"sync"

	"github.com/komorebi-audio/hub/internal/eventbus"
)

// PlayerStatus is the reduced, publicly-observable playback state, mirroring
// spec.md §3 field for field.
type PlayerStatus struct {
	NowPlaying string // empty when nothing is playing
	Paused     bool
	UserPaused bool

	ElapsedMs *int64
	DurationMs *int64

	SampleRate int
	Channels   int
	Codec      string
	BitDepth   int
	Container  string

	OutputDevice       string
	OutputSampleFormat string
	Resampling         bool
	SourceRateHz       int
	DeviceRateHz       int

	BufferSizeFrames     int
	BufferedFrames       int
	BufferCapacityFrames int

	UnderrunFrames uint64
	UnderrunEvents uint64

	AutoAdvanceInFlight bool
	SeekInFlight        bool

	HasPrevious bool
}

func (s PlayerStatus) equal(o PlayerStatus) bool {
	return s.NowPlaying == o.NowPlaying &&
		s.Paused == o.Paused &&
		s.UserPaused == o.UserPaused &&
		int64PtrEqual(s.ElapsedMs, o.ElapsedMs) &&
		int64PtrEqual(s.DurationMs, o.DurationMs) &&
		s.SampleRate == o.SampleRate &&
		s.Channels == o.Channels &&
		s.Codec == o.Codec &&
		s.BitDepth == o.BitDepth &&
		s.Container == o.Container &&
		s.OutputDevice == o.OutputDevice &&
		s.OutputSampleFormat == o.OutputSampleFormat &&
		s.Resampling == o.Resampling &&
		s.SourceRateHz == o.SourceRateHz &&
		s.DeviceRateHz == o.DeviceRateHz &&
		s.BufferSizeFrames == o.BufferSizeFrames &&
		s.BufferedFrames == o.BufferedFrames &&
		s.BufferCapacityFrames == o.BufferCapacityFrames &&
		s.UnderrunFrames == o.UnderrunFrames &&
		s.UnderrunEvents == o.UnderrunEvents &&
		s.AutoAdvanceInFlight == o.AutoAdvanceInFlight &&
		s.SeekInFlight == o.SeekInFlight &&
		s.HasPrevious == o.HasPrevious
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RemoteReport is what a bridge's status SSE feed or the local pipeline's
// counters supply to ApplyRemoteAndInputs. Nil pointer fields mean "not
// reported", left untouched rather than cleared — except ElapsedMs and
// DurationMs, whose explicit absence (both nil) is itself the "natural end"
// signal G looks for.
type RemoteReport struct {
	NowPlaying *string
	ElapsedMs  *int64
	DurationMs *int64

	SampleRate *int
	Channels   *int
	Codec      *string
	BitDepth   *int
	Container  *string

	OutputDevice       *string
	OutputSampleFormat *string
	Resampling         *bool
	SourceRateHz       *int
	DeviceRateHz       *int

	BufferSizeFrames     *int
	BufferedFrames       *int
	BufferCapacityFrames *int

	UnderrunFrames *uint64
	UnderrunEvents *uint64
}

// AutoAdvanceInputs is the value object ApplyRemoteAndInputs hands to the
// queue service (component G) so it can evaluate the auto-advance rule
// without reaching back into the store's internals.
type AutoAdvanceInputs struct {
	ElapsedMs           *int64
	DurationMs          *int64
	PreviousDurationMs  *int64
	UserPaused          bool
	SeekInFlight        bool
	AutoAdvanceInFlight bool
	HasNowPlaying       bool
}

// Store is the process-wide single writer for PlayerStatus. All mutating
// methods acquire the same mutex; publication happens after release.
type Store struct {
	bus *eventbus.Bus

	mu      sync.Mutex
	current PlayerStatus
}

func New(bus *eventbus.Bus) *Store {
	return &Store{bus: bus}
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) publishIfChanged(before PlayerStatus) {
	after := s.current
	if before.equal(after) {
		return
	}
	snap := after
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Kind: eventbus.KindStatusChanged, Data: &snap})
	}
}

// OnPlay resets transport/codec fields for a freshly-started session.
func (s *Store) OnPlay(path string, startPaused bool) {
	s.mu.Lock()
	before := s.current
	zero := int64(0)
	s.current.NowPlaying = path
	s.current.ElapsedMs = &zero
	s.current.DurationMs = nil
	s.current.Paused = startPaused
	s.current.UserPaused = startPaused
	s.current.SampleRate = 0
	s.current.Channels = 0
	s.current.Codec = ""
	s.current.BitDepth = 0
	s.current.Container = ""
	s.current.OutputDevice = ""
	s.current.OutputSampleFormat = ""
	s.current.Resampling = false
	s.current.SourceRateHz = 0
	s.current.DeviceRateHz = 0
	s.current.AutoAdvanceInFlight = false
	s.current.SeekInFlight = false
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// OnPauseToggle flips paused and user_paused together — the invariant that
// user_paused implies paused is maintained because both always change in
// lockstep here (spec.md §3).
func (s *Store) OnPauseToggle() {
	s.mu.Lock()
	before := s.current
	s.current.Paused = !s.current.Paused
	s.current.UserPaused = s.current.Paused
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// OnStop clears playback and transport fields entirely.
func (s *Store) OnStop() {
	s.mu.Lock()
	before := s.current
	s.current = PlayerStatus{HasPrevious: s.current.HasPrevious}
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// MarkSeekInFlight sets the seek_in_flight flag; ApplyRemoteAndInputs
// clears it once both elapsed and duration are known again, and OnPlay and
// OnStop reset it.
func (s *Store) MarkSeekInFlight() {
	s.mu.Lock()
	before := s.current
	s.current.SeekInFlight = true
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// SetHasPrevious records whether "previous" navigation currently has a
// target.
func (s *Store) SetHasPrevious(v bool) {
	s.mu.Lock()
	before := s.current
	s.current.HasPrevious = v
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// SetAutoAdvanceInFlight records that an auto-play command was dispatched
// and not yet observed as a new now_playing.
func (s *Store) SetAutoAdvanceInFlight(v bool) {
	s.mu.Lock()
	before := s.current
	s.current.AutoAdvanceInFlight = v
	s.mu.Unlock()
	s.publishIfChanged(before)
}

// ApplyRemoteAndInputs merges every reported remote field into the store,
// clears seek_in_flight once both elapsed and duration are present again
// post-seek, and returns the inputs G needs to evaluate auto-advance.
func (s *Store) ApplyRemoteAndInputs(remote RemoteReport, lastDurationMs *int64) AutoAdvanceInputs {
	s.mu.Lock()
	before := s.current

	if remote.NowPlaying != nil {
		s.current.NowPlaying = *remote.NowPlaying
	}
	s.current.ElapsedMs = remote.ElapsedMs
	s.current.DurationMs = remote.DurationMs

	if remote.SampleRate != nil {
		s.current.SampleRate = *remote.SampleRate
	}
	if remote.Channels != nil {
		s.current.Channels = *remote.Channels
	}
	if remote.Codec != nil {
		s.current.Codec = *remote.Codec
	}
	if remote.BitDepth != nil {
		s.current.BitDepth = *remote.BitDepth
	}
	if remote.Container != nil {
		s.current.Container = *remote.Container
	}
	if remote.OutputDevice != nil {
		s.current.OutputDevice = *remote.OutputDevice
	}
	if remote.OutputSampleFormat != nil {
		s.current.OutputSampleFormat = *remote.OutputSampleFormat
	}
	if remote.Resampling != nil {
		s.current.Resampling = *remote.Resampling
	}
	if remote.SourceRateHz != nil {
		s.current.SourceRateHz = *remote.SourceRateHz
	}
	if remote.DeviceRateHz != nil {
		s.current.DeviceRateHz = *remote.DeviceRateHz
	}
	if remote.BufferSizeFrames != nil {
		s.current.BufferSizeFrames = *remote.BufferSizeFrames
	}
	if remote.BufferedFrames != nil {
		s.current.BufferedFrames = *remote.BufferedFrames
	}
	if remote.BufferCapacityFrames != nil {
		s.current.BufferCapacityFrames = *remote.BufferCapacityFrames
	}
	if remote.UnderrunFrames != nil {
		s.current.UnderrunFrames = *remote.UnderrunFrames
	}
	if remote.UnderrunEvents != nil {
		s.current.UnderrunEvents = *remote.UnderrunEvents
	}

	if s.current.SeekInFlight && s.current.ElapsedMs != nil && s.current.DurationMs != nil {
		s.current.SeekInFlight = false
	}

	inputs := AutoAdvanceInputs{
		ElapsedMs:           s.current.ElapsedMs,
		DurationMs:          s.current.DurationMs,
		PreviousDurationMs:  lastDurationMs,
		UserPaused:          s.current.UserPaused,
		SeekInFlight:        s.current.SeekInFlight,
		AutoAdvanceInFlight: s.current.AutoAdvanceInFlight,
		HasNowPlaying:       s.current.NowPlaying != "",
	}
	s.mu.Unlock()
	s.publishIfChanged(before)
	return inputs
}
