// Package output implements the realtime output pipeline stage (spec.md
// §4.D): a device callback that pulls from the post-resample queue,
// applies channel mapping and sample-format conversion, and writes to the
// device buffer without ever blocking on I/O.
package output

import (
	"sync/atomic"

	"github.com/komorebi-audio/hub/internal/sampleq"
)

// Format identifies a device sample representation.
type Format int

const (
	FormatFloat32 Format = iota
	FormatInt16
	FormatInt32
	FormatUint16
)

// Counters are the session-lifetime, monotonic statistics the status
// reducer (component F) reads for display and underrun accounting. All
// fields use relaxed atomic stores per spec.md §4.D/§9 — they are read by
// other goroutines for display only, never used for synchronization.
type Counters struct {
	played         atomic.Uint64
	underrunFrames atomic.Uint64
	underrunEvents atomic.Uint64
}

func (c *Counters) Snapshot() (played, underrunFrames, underrunEvents uint64) {
	return c.played.Load(), c.underrunFrames.Load(), c.underrunEvents.Load()
}

// Stage is the output callback driver: it owns no device handle itself
// (that is pipeline.Session's job, via portaudio) but implements the pure
// pull/mix/convert logic a realtime callback invokes every buffer period.
type Stage struct {
	src             *sampleq.Queue
	srcChannels     int
	deviceChannels  int
	refillMaxFrames int

	paused   atomic.Bool
	Counters Counters
}

// NewStage builds an output Stage reading from src (the final queue in the
// pipeline, post-resample if resampling was needed) and writing
// deviceChannels of audio per buffer.
func NewStage(src *sampleq.Queue, srcChannels, deviceChannels, refillMaxFrames int) *Stage {
	if refillMaxFrames < 1 {
		refillMaxFrames = 1
	}
	return &Stage{
		src:             src,
		srcChannels:     srcChannels,
		deviceChannels:  deviceChannels,
		refillMaxFrames: refillMaxFrames,
	}
}

// SetPaused flips the pause flag consulted by every callback invocation.
// While paused the callback writes silence and does not drain the queue —
// pause must not skip buffered content (spec.md §4.D).
func (s *Stage) SetPaused(paused bool) {
	s.paused.Store(paused)
}

func (s *Stage) Paused() bool {
	return s.paused.Load()
}

// BufferedFrames reports the source queue's current depth, used for the
// status store's buffered_frames gauge.
func (s *Stage) BufferedFrames() int {
	return s.src.BufferedFrames()
}

// BufferCapacityFrames reports the source queue's capacity, used for the
// status store's buffer_capacity_frames gauge.
func (s *Stage) BufferCapacityFrames() int {
	return s.src.MaxFrames()
}

// pullInterleaved is the shared refill logic every typed Fill* method
// calls: non-blocking pop of up to framesWanted frames (capped by
// refillMaxFrames), with underrun accounting when starved, skipped
// entirely while paused.
func (s *Stage) pullInterleaved(framesWanted int) (data []float32, frames int) {
	if s.paused.Load() {
		return nil, 0
	}

	want := framesWanted
	if want > s.refillMaxFrames {
		want = s.refillMaxFrames
	}

	got, ok := s.src.Pop(sampleq.NonBlocking(want))
	gotFrames := len(got) / s.srcChannels
	if !ok || gotFrames < framesWanted {
		starved := framesWanted - gotFrames
		if starved > 0 {
			s.Counters.underrunFrames.Add(uint64(starved))
			s.Counters.underrunEvents.Add(1)
		}
	}
	return got, gotFrames
}

// FillFloat32 refills a per-channel (non-interleaved) float32 device
// buffer, the shape the gordonklaus/portaudio Go binding's realtime
// callback uses (func(out [][]float32)), matching
// Alexander-D-Karpov-amp's cmd/audio/test.go callback pattern.
func (s *Stage) FillFloat32(out [][]float32) {
	if len(out) == 0 {
		return
	}
	framesWanted := len(out[0])
	data, gotFrames := s.pullInterleaved(framesWanted)

	mapped := mapChannels(data, s.srcChannels, s.deviceChannels, gotFrames)
	for f := 0; f < framesWanted; f++ {
		for c := 0; c < len(out); c++ {
			if f < gotFrames {
				out[c][f] = mapped[f*s.deviceChannels+clampChannel(c, s.deviceChannels)]
			} else {
				out[c][f] = 0
			}
		}
	}
	s.Counters.played.Add(uint64(gotFrames))
}

// FillInt16 refills a per-channel int16 device buffer.
func (s *Stage) FillInt16(out [][]int16) {
	if len(out) == 0 {
		return
	}
	framesWanted := len(out[0])
	data, gotFrames := s.pullInterleaved(framesWanted)
	mapped := mapChannels(data, s.srcChannels, s.deviceChannels, gotFrames)
	for f := 0; f < framesWanted; f++ {
		for c := 0; c < len(out); c++ {
			if f < gotFrames {
				out[c][f] = FloatToInt16(mapped[f*s.deviceChannels+clampChannel(c, s.deviceChannels)])
			} else {
				out[c][f] = 0
			}
		}
	}
	s.Counters.played.Add(uint64(gotFrames))
}

// FillInt32 refills a per-channel int32 device buffer.
func (s *Stage) FillInt32(out [][]int32) {
	if len(out) == 0 {
		return
	}
	framesWanted := len(out[0])
	data, gotFrames := s.pullInterleaved(framesWanted)
	mapped := mapChannels(data, s.srcChannels, s.deviceChannels, gotFrames)
	for f := 0; f < framesWanted; f++ {
		for c := 0; c < len(out); c++ {
			if f < gotFrames {
				out[c][f] = FloatToInt32(mapped[f*s.deviceChannels+clampChannel(c, s.deviceChannels)])
			} else {
				out[c][f] = 0
			}
		}
	}
	s.Counters.played.Add(uint64(gotFrames))
}

// FillUint16 refills a per-channel uint16 device buffer.
func (s *Stage) FillUint16(out [][]uint16) {
	if len(out) == 0 {
		return
	}
	framesWanted := len(out[0])
	data, gotFrames := s.pullInterleaved(framesWanted)
	mapped := mapChannels(data, s.srcChannels, s.deviceChannels, gotFrames)
	for f := 0; f < framesWanted; f++ {
		for c := 0; c < len(out); c++ {
			if f < gotFrames {
				out[c][f] = FloatToUint16(mapped[f*s.deviceChannels+clampChannel(c, s.deviceChannels)])
			} else {
				out[c][f] = 0
			}
		}
	}
	s.Counters.played.Add(uint64(gotFrames))
}

func clampChannel(c, n int) int {
	if n <= 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// mapChannels converts frames frames of srcChannels-interleaved audio into
// dstChannels-interleaved audio. Mono<->stereo is handled explicitly
// (duplicate/average); other layouts clamp to the nearest available source
// channel (spec.md §4.D).
func mapChannels(src []float32, srcChannels, dstChannels, frames int) []float32 {
	out := make([]float32, frames*dstChannels)
	if frames == 0 || srcChannels == 0 {
		return out
	}

	switch {
	case srcChannels == dstChannels:
		copy(out, src[:frames*srcChannels])
	case srcChannels == 1 && dstChannels == 2:
		for f := 0; f < frames; f++ {
			v := src[f]
			out[f*2] = v
			out[f*2+1] = v
		}
	case srcChannels == 2 && dstChannels == 1:
		for f := 0; f < frames; f++ {
			out[f] = (src[f*2] + src[f*2+1]) / 2
		}
	default:
		for f := 0; f < frames; f++ {
			for c := 0; c < dstChannels; c++ {
				srcC := c
				if srcC >= srcChannels {
					srcC = srcChannels - 1
				}
				out[f*dstChannels+c] = src[f*srcChannels+srcC]
			}
		}
	}
	return out
}

// FloatToInt16 converts a [-1, 1] float32 sample to signed 16-bit PCM.
func FloatToInt16(f float32) int16 {
	f = clampUnit(f)
	return int16(f * 32767)
}

// FloatToInt32 converts a [-1, 1] float32 sample to signed 32-bit PCM.
func FloatToInt32(f float32) int32 {
	f = clampUnit(f)
	return int32(float64(f) * 2147483647)
}

// FloatToUint16 converts a [-1, 1] float32 sample to unsigned 16-bit PCM
// (offset-binary: 0 maps to 32768).
func FloatToUint16(f float32) uint16 {
	f = clampUnit(f)
	return uint16((f * 32767) + 32768)
}

func clampUnit(f float32) float32 {
	if f > 1 {
		return 1
	}
	if f < -1 {
		return -1
	}
	return f
}
