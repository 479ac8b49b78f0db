package resample

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/sampleq"
)

func TestKernelPeaksAtZero(t *testing.T) {
	k := buildKernel()
	require.InDelta(t, 1.0, k.at(0), 1e-9)
	require.Less(t, k.at(1.0), 1.0)
}

func TestKernelZeroBeyondHalfWidth(t *testing.T) {
	k := buildKernel()
	require.Equal(t, 0.0, k.at(KernelLength))
	require.Equal(t, 0.0, k.at(KernelLength+10))
}

func TestUpsampleDoublesFrameCountApproximately(t *testing.T) {
	const srcRate, dstRate, channels = 22050, 44100, 1
	src := sampleq.New(channels, 1<<20)

	frames := 4000
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * float64(i) / 50))
	}
	src.PushInterleavedBlocking(samples)
	src.Close()

	cfg := Config{ChunkFrames: 512, BufferSeconds: 2}
	stage := NewStage(srcRate, dstRate, channels, cfg)
	dst := stage.Run(src, NewCancel(nil))

	var total int
	for {
		got, ok := dst.Pop(sampleq.BlockingUpTo(4096))
		total += len(got)
		if !ok {
			break
		}
	}
	require.InDelta(t, frames*2, total, float64(frames)*2*0.05)
}

func TestSameRateIsNearIdentityLength(t *testing.T) {
	const rate, channels = 44100, 1
	src := sampleq.New(channels, 1<<20)

	frames := 2000
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(i % 7)
	}
	src.PushInterleavedBlocking(samples)
	src.Close()

	cfg := Config{ChunkFrames: 256, BufferSeconds: 2}
	stage := NewStage(rate, rate, channels, cfg)
	dst := stage.Run(src, NewCancel(nil))

	var total int
	for {
		got, ok := dst.Pop(sampleq.BlockingUpTo(1024))
		total += len(got)
		if !ok {
			break
		}
		if len(got) == 0 {
			break
		}
	}
	require.InDelta(t, frames, total, float64(frames)*0.05)
}

func TestCancelStopsResampleWorker(t *testing.T) {
	src := sampleq.New(1, 1<<20)
	samples := make([]float32, 1_000_000)
	src.PushInterleavedBlocking(samples)

	var cancelled bool
	cfg := Config{ChunkFrames: 256, BufferSeconds: 2}
	stage := NewStage(44100, 44100, 1, cfg)
	dst := stage.Run(src, NewCancel(func() bool { return cancelled }))

	// Drain concurrently so the producer never blocks on a full
	// destination queue while we wait for cancellation to take effect.
	drained := make(chan struct{})
	go func() {
		for {
			_, ok := dst.Pop(sampleq.BlockingUpTo(4096))
			if !ok {
				close(drained)
				return
			}
		}
	}()

	cancelled = true
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("resample worker never stopped after cancellation")
	}
	require.True(t, dst.Closed())
}
