// Package resample implements the asynchronous sinc resampler pipeline
// stage (spec.md §4.C): a fixed-length windowed-sinc kernel, Blackman-Harris
// windowed, with cubic interpolation between table entries for sub-tap
// precision. No example repo in the retrieval pack ships this exact DSP
// algorithm, so the kernel math below is hand-written against the spec's
// stated parameters rather than grounded on a third-party library.
package resample

import (
	"math"

	"github.com/komorebi-audio/hub/internal/sampleq"
)

const (
	// KernelLength is the sinc kernel's length in taps, per spec.md §4.C:
	// convolve sums KernelLength/2 taps on each side of center, while the
	// precomputed table and its window extend KernelLength taps each side.
	KernelLength = 128
	// Oversampling is the table resolution per unit kernel tap.
	Oversampling = 256
)

// Config tunes the resample stage's chunking and destination buffering.
type Config struct {
	ChunkFrames   int
	BufferSeconds float64
}

// DefaultConfig matches spec.md §4.C's stated defaults.
func DefaultConfig() Config {
	return Config{ChunkFrames: 1024, BufferSeconds: 2.0}
}

// Cancel mirrors decode.Cancel: a predicate checked between chunks so the
// worker observes cancellation within one chunk period.
type Cancel struct {
	flag func() bool
}

func NewCancel(flag func() bool) Cancel { return Cancel{flag: flag} }

func (c Cancel) cancelled() bool {
	if c.flag == nil {
		return false
	}
	return c.flag()
}

// kernel is a precomputed, windowed-sinc half-kernel table. Table[i]
// samples the function at tap offset i/Oversampling, for i in
// [0, KernelLength*Oversampling]; the kernel is symmetric, so only the
// non-negative half is stored.
type kernel struct {
	table []float64
}

var sharedKernel = buildKernel()

func buildKernel() *kernel {
	n := KernelLength*Oversampling + 1
	table := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(Oversampling)
		table[i] = sinc(x) * blackmanHarris(x, KernelLength)
	}
	return &kernel{table: table}
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackmanHarris evaluates the Blackman-Harris window at offset x from
// center, over a window spanning +/-halfWidth.
func blackmanHarris(x, halfWidth float64) float64 {
	if math.Abs(x) > halfWidth {
		return 0
	}
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	// Map x in [-halfWidth, halfWidth] to u in [0, 1].
	u := (x + halfWidth) / (2 * halfWidth)
	w := a0 - a1*math.Cos(2*math.Pi*u) + a2*math.Cos(4*math.Pi*u) - a3*math.Cos(6*math.Pi*u)
	return w
}

// at returns the kernel value at an arbitrary non-negative real tap offset,
// interpolating cubically between the four nearest table entries (spec.md
// §4.C: "cubic interpolation").
func (k *kernel) at(offset float64) float64 {
	if offset < 0 {
		offset = -offset
	}
	if offset >= KernelLength {
		return 0
	}
	pos := offset * Oversampling
	i1 := int(pos)
	frac := pos - float64(i1)

	get := func(idx int) float64 {
		if idx < 0 || idx >= len(k.table) {
			return 0
		}
		return k.table[idx]
	}

	p0 := get(i1 - 1)
	p1 := get(i1)
	p2 := get(i1 + 1)
	p3 := get(i1 + 2)
	return cubicInterpolate(p0, p1, p2, p3, frac)
}

// cubicInterpolate performs Catmull-Rom style cubic interpolation between
// p1 and p2, using p0 and p3 as neighbors, at fractional position t.
func cubicInterpolate(p0, p1, p2, p3, t float64) float64 {
	a0 := p3 - p2 - p0 + p1
	a1 := p0 - p1 - a0
	a2 := p2 - p0
	a3 := p1
	return a0*t*t*t + a1*t*t + a2*t + a3
}

// Stage is an interleaved-stereo (or mono) sinc resampler between two
// queues of a fixed channel count.
type Stage struct {
	channels  int
	ratio     float64 // dstRate / srcRate
	dstRateHz int
	cfg       Config
	k         *kernel

	// history holds trailing samples (per channel) from the previous
	// chunk so the kernel can look backward across chunk boundaries.
	history [][]float64
	// srcPos is not advanced: processChunk places each chunk's output
	// positions relative to that chunk's first new input frame.
	srcPos float64
}

// NewStage builds a resample Stage for the given source/destination rates
// and channel count.
func NewStage(srcRateHz, dstRateHz, channels int, cfg Config) *Stage {
	if channels < 1 {
		channels = 1
	}
	history := make([][]float64, channels)
	for c := range history {
		history[c] = make([]float64, 0, KernelLength*2)
	}
	return &Stage{
		channels:  channels,
		ratio:     float64(dstRateHz) / float64(srcRateHz),
		dstRateHz: dstRateHz,
		cfg:       cfg,
		k:         sharedKernel,
		history:   history,
	}
}

// Run pulls exact-size chunks from src and writes resampled audio to a
// newly created destination queue, closing it once src closes and the tail
// has been processed. It blocks until done; callers run it in a goroutine.
func (s *Stage) Run(src *sampleq.Queue, cancel Cancel) *sampleq.Queue {
	capFrames := int(float64(s.dstRateHz) * s.cfg.BufferSeconds)
	if capFrames < s.cfg.ChunkFrames*4 {
		capFrames = s.cfg.ChunkFrames * 4
	}
	dst := sampleq.New(s.channels, capFrames)

	go s.run(src, dst, cancel)
	return dst
}

func (s *Stage) run(src, dst *sampleq.Queue, cancel Cancel) {
	defer dst.Close()

	chunkFrames := s.cfg.ChunkFrames
	if chunkFrames < 1 {
		chunkFrames = 1024
	}

	for {
		if cancel.cancelled() {
			return
		}

		samples, ok := src.Pop(sampleq.BlockingExact(chunkFrames))
		if !ok {
			// Tail phase: drain whatever partial chunk remains.
			tail, tailOK := src.Pop(sampleq.NonBlocking(chunkFrames))
			if tailOK && len(tail) > 0 {
				s.processChunk(tail, true, dst)
			}
			return
		}
		s.processChunk(samples, false, dst)
	}
}

// processChunk deinterleaves samples, resamples each channel, and pushes
// the interleaved result to dst. partial indicates this is the tail chunk
// (spec.md §4.C's "partial_len" phase), which only affects how many input
// frames are available for the final kernel lookups — the algorithm itself
// is identical.
func (s *Stage) processChunk(samples []float32, partial bool, dst *sampleq.Queue) {
	_ = partial
	frames := len(samples) / s.channels
	if frames == 0 {
		return
	}

	perChannel := make([][]float64, s.channels)
	for c := 0; c < s.channels; c++ {
		perChannel[c] = make([]float64, len(s.history[c])+frames)
		copy(perChannel[c], s.history[c])
		for i := 0; i < frames; i++ {
			perChannel[c][len(s.history[c])+i] = float64(samples[i*s.channels+c])
		}
	}
	histLen := len(s.history[0])

	outFrames := int(float64(frames) * s.ratio)
	out := make([]float32, 0, outFrames*s.channels)

	for o := 0; o < outFrames; o++ {
		// Position in the newly-appended region, relative to perChannel
		// index space (which starts with the carried-over history).
		srcPos := float64(histLen) + float64(o)/s.ratio

		for c := 0; c < s.channels; c++ {
			out = append(out, float32(s.convolve(perChannel[c], srcPos)))
		}
	}
	dst.PushInterleavedBlocking(out)

	// Carry the tail of this chunk (up to KernelLength frames) forward as
	// history for the next chunk's kernel support.
	for c := 0; c < s.channels; c++ {
		keep := KernelLength
		full := perChannel[c]
		if len(full) <= keep {
			s.history[c] = append(s.history[c][:0], full...)
		} else {
			s.history[c] = append(s.history[c][:0], full[len(full)-keep:]...)
		}
	}
}

// convolve evaluates the windowed-sinc kernel centered at a fractional
// source position against the available samples.
func (s *Stage) convolve(samples []float64, pos float64) float64 {
	center := int(math.Floor(pos))
	frac := pos - float64(center)

	var sum float64
	for tap := -KernelLength / 2; tap <= KernelLength/2; tap++ {
		idx := center + tap
		if idx < 0 || idx >= len(samples) {
			continue
		}
		offset := float64(tap) - frac
		weight := s.k.at(offset)
		sum += samples[idx] * weight
	}
	return sum
}
