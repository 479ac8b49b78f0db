package decode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/sampleq"
)

// fakeStreamer is a minimal beep.StreamSeekCloser over an in-memory frame
// slice, used to exercise decodeWorker without needing real container bytes.
type fakeStreamer struct {
	frames [][2]float64
	pos    int
	err    error
	closed bool
}

func (f *fakeStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	remaining := len(f.frames) - f.pos
	if remaining <= 0 {
		return 0, false
	}
	n = copy(samples, f.frames[f.pos:])
	f.pos += n
	return n, true
}

func (f *fakeStreamer) Err() error { return f.err }
func (f *fakeStreamer) Len() int   { return len(f.frames) }
func (f *fakeStreamer) Position() int { return f.pos }
func (f *fakeStreamer) Seek(p int) error { f.pos = p; return nil }
func (f *fakeStreamer) Close() error { f.closed = true; return nil }

func TestDecodeWorkerPushesAllFramesThenCloses(t *testing.T) {
	frames := make([][2]float64, 100)
	for i := range frames {
		frames[i] = [2]float64{float64(i), -float64(i)}
	}
	fs := &fakeStreamer{frames: frames}
	q := sampleq.New(2, 4096)

	done := make(chan struct{})
	go func() {
		decodeWorker(fs, q, NewCancel(nil))
		close(done)
	}()

	<-done
	require.True(t, fs.closed)
	require.True(t, q.Closed())

	got, ok := q.Pop(sampleq.NonBlocking(100))
	require.True(t, ok)
	require.Len(t, got, 200)
	require.Equal(t, float32(0), got[0])
	require.Equal(t, float32(-99), got[199])
}

func TestDecodeWorkerRespectsCancel(t *testing.T) {
	frames := make([][2]float64, 1_000_000)
	fs := &fakeStreamer{frames: frames}
	q := sampleq.New(2, 8192)

	var cancelled bool
	done := make(chan struct{})
	go func() {
		decodeWorker(fs, q, NewCancel(func() bool { return cancelled }))
		close(done)
	}()

	cancelled = true
	<-done
	require.True(t, q.Closed())
}

func TestCapacityFramesFloorsAtOne(t *testing.T) {
	require.Equal(t, 1, capacityFrames(44100, 2, 0))
	require.Equal(t, 44100, capacityFrames(44100, 2, 1))
}
