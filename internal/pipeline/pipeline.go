// Package pipeline implements the session assembler (spec.md §4.E): it
// wires decode (B) through an optional resample stage (C) into the
// realtime output stage (D), opening the device the way
// Alexander-D-Karpov-amp's cmd/audio/test.go does with
// github.com/gordonklaus/portaudio's OpenDefaultStream plus a
// func(out [][]float32) callback.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/decode"
	"github.com/komorebi-audio/hub/internal/output"
	"github.com/komorebi-audio/hub/internal/resample"
	"github.com/komorebi-audio/hub/internal/sampleq"
)

// candidateDeviceRates lists device sample rates this hub will try, highest
// first; the real gordonklaus/portaudio DeviceInfo only reports one
// DefaultSampleRate rather than a full supported-rate table, so the
// pipeline assembler picks from this fixed ladder instead of querying the
// device directly.
var candidateDeviceRates = []int{192000, 96000, 48000, 44100}

// maxBufferSeconds caps the large-buffer-to-reduce-underruns knob spec.md
// §4.E calls for.
const maxBufferSeconds = 4.0

// Config tunes session construction; fields map directly onto the CLI
// flags internal/config exposes.
type Config struct {
	ChunkFrames     int
	RefillMaxFrames int
	BufferSeconds   float64
}

func DefaultConfig() Config {
	return Config{ChunkFrames: 1024, RefillMaxFrames: 2048, BufferSeconds: 2.0}
}

// Session is one running decode/resample/output pipeline for one media
// item, per spec.md §3.
type Session struct {
	cancelled atomic.Bool
	paused    atomic.Bool

	decodeQueue   *sampleq.Queue
	resampleQueue *sampleq.Queue
	outStage      *output.Stage
	stream        *portaudio.Stream

	srcSpec        decode.Spec
	deviceRateHz   int
	deviceChannels int
	resampling     bool

	durationMs *int64
	info       decode.SourceInfo
}

// SourceInfo returns the probed codec/container metadata.
func (s *Session) SourceInfo() decode.SourceInfo { return s.info }

// DurationMs returns the decoder's best-effort duration estimate.
func (s *Session) DurationMs() *int64 { return s.durationMs }

// SourceSpec returns the decoded stream's native rate/channels.
func (s *Session) SourceSpec() decode.Spec { return s.srcSpec }

// DeviceRateHz returns the rate the output device was opened at.
func (s *Session) DeviceRateHz() int { return s.deviceRateHz }

// Resampling reports whether a sinc resample stage sits in the pipeline.
func (s *Session) Resampling() bool { return s.resampling }

// OutputStage exposes the realtime stage for counters/buffer gauges.
func (s *Session) OutputStage() *output.Stage { return s.outStage }

// SetPaused pauses/resumes output without tearing the session down.
func (s *Session) SetPaused(paused bool) {
	s.paused.Store(paused)
	s.outStage.SetPaused(paused)
}

// Paused reports the session's current pause state.
func (s *Session) Paused() bool { return s.paused.Load() }

// Cancel stops the session: it halts the output callback, closes both
// queues so the decode/resample workers exit promptly, and stops the
// device stream. It is safe to call more than once.
func (s *Session) Cancel() {
	if !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.outStage.SetPaused(true)
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			slog.Warn("pipeline: device stream stop failed", "error", err)
		}
		if err := s.stream.Close(); err != nil {
			slog.Warn("pipeline: device stream close failed", "error", err)
		}
	}
	s.decodeQueue.Close()
	if s.resampleQueue != nil {
		s.resampleQueue.Close()
	}
}

// Cancelled reports whether Cancel has run.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Play builds a fresh session decoding path through cfg's chunking and
// buffering knobs, selecting a device output configuration and assembling
// B -> (C?) -> D. seekMs, when non-nil, performs an accurate pre-seek in
// the decoder before any frames are pulled.
func Play(src decode.Source, path, extHint string, seekMs *int64, startPaused bool, cfg Config) (*Session, error) {
	decodeCancel := decode.NewCancel(nil)
	result, err := decode.Start(src, extHint, cfg.BufferSeconds, seekMs, decodeCancel)
	if err != nil {
		return nil, apperr.FatalSession(fmt.Sprintf("decode init for %q", path), err)
	}

	deviceRate := pickDeviceRate(result.Spec.RateHz)
	deviceChannels := 2

	session := &Session{
		decodeQueue:    result.Queue,
		srcSpec:        result.Spec,
		deviceRateHz:   deviceRate,
		deviceChannels: deviceChannels,
		durationMs:     result.DurationMs,
		info:           result.Info,
	}
	session.cancelled.Store(false)

	finalQueue := result.Queue
	if deviceRate != result.Spec.RateHz {
		session.resampling = true
		stage := resample.NewStage(result.Spec.RateHz, deviceRate, result.Spec.Channels, resample.Config{
			ChunkFrames:   cfg.ChunkFrames,
			BufferSeconds: clampBufferSeconds(cfg.BufferSeconds),
		})
		session.resampleQueue = stage.Run(result.Queue, resample.NewCancel(session.cancelled.Load))
		finalQueue = session.resampleQueue
	}

	refill := cfg.RefillMaxFrames
	if refill < 1 {
		refill = 2048
	}
	session.outStage = output.NewStage(finalQueue, result.Spec.Channels, deviceChannels, refill)
	session.outStage.SetPaused(startPaused)
	session.paused.Store(startPaused)

	framesPerBuffer := int(float64(deviceRate) * 0.02) // 20ms periods
	stream, err := portaudio.OpenDefaultStream(0, deviceChannels, float64(deviceRate), framesPerBuffer, session.outStage.FillFloat32)
	if err != nil {
		session.Cancel()
		return nil, apperr.FatalSession(fmt.Sprintf("open output device for %q", path), err)
	}
	session.stream = stream

	if err := stream.Start(); err != nil {
		session.Cancel()
		return nil, apperr.FatalSession(fmt.Sprintf("start output device for %q", path), err)
	}

	return session, nil
}

// pickDeviceRate chooses the highest candidate rate <= sourceRateHz when
// the source rate is known (non-zero); otherwise it chooses the highest
// candidate overall (spec.md §4.E).
func pickDeviceRate(sourceRateHz int) int {
	if sourceRateHz <= 0 {
		return candidateDeviceRates[0]
	}
	for _, r := range candidateDeviceRates {
		if r <= sourceRateHz {
			return r
		}
	}
	return candidateDeviceRates[len(candidateDeviceRates)-1]
}

func clampBufferSeconds(s float64) float64 {
	if s > maxBufferSeconds {
		return maxBufferSeconds
	}
	if s <= 0 {
		return 1
	}
	return s
}

// WaitForNaturalEnd blocks until the pipeline's final queue drains and
// closes on its own (decoder EOF) or ctx is done, whichever comes first,
// and reports true only for the natural end. Nothing in this module calls
// it; the local provider learns of a track's end from its status polling.
func (s *Session) WaitForNaturalEnd(ctx context.Context) bool {
	final := s.decodeQueue
	if s.resampleQueue != nil {
		final = s.resampleQueue
	}
	done := make(chan struct{})
	go func() {
		final.WaitUntilDoneAndEmptyOrCancel(s.cancelled.Load)
		close(done)
	}()
	select {
	case <-done:
		return !s.cancelled.Load()
	case <-ctx.Done():
		return false
	}
}

// PollStatus returns a snapshot of buffer/underrun state suitable for
// feeding status.RemoteReport from the local provider's polling loop.
func (s *Session) PollStatus() (bufferedFrames, bufferCapacityFrames int, underrunFrames, underrunEvents uint64, elapsedMs int64) {
	played, uf, ue := s.outStage.Counters.Snapshot()
	bufferedFrames = s.outStage.BufferedFrames()
	bufferCapacityFrames = s.outStage.BufferCapacityFrames()
	underrunFrames = uf
	underrunEvents = ue
	if s.deviceRateHz > 0 {
		elapsedMs = int64(played) * 1000 / int64(s.deviceRateHz)
	}
	return
}
