// Package decode implements the probe-and-decode pipeline stage: it turns a
// seekable media source into a stream of interleaved float32 samples on a
// sampleq.Queue.
package decode

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/komorebi-audio/hub/internal/sampleq"
)

// pullFrames is how many frames the decoder worker pulls from the beep
// streamer per iteration. Small enough to respect cancellation promptly,
// large enough to avoid excessive lock churn on the destination queue.
const pullFrames = 512

// Source is the narrow interface the decode stage needs from a media file:
// random access plus Close. Library/file-serving
// concerns (§1 scope) live outside this package; callers adapt an *os.File
// or an HTTP range source to this interface.
type Source interface {
	io.ReadSeeker
	io.Closer
}

// Spec describes the decoded stream's format, mirroring spec.md §3's
// (rate_hz, channels) pair.
type Spec struct {
	RateHz   int
	Channels int
}

// SourceInfo carries best-effort container/codec metadata.
type SourceInfo struct {
	Codec     string
	BitDepth  int // 0 when unknown (e.g. lossy codecs report none)
	Container string
}

// Result is returned by Start once probing succeeds and the decoder worker
// has been spawned.
type Result struct {
	Spec       Spec
	Queue      *sampleq.Queue
	DurationMs *int64
	Info       SourceInfo
}

// Cancel, when non-nil, stops the decoder worker promptly: it closes the
// underlying beep stream and the destination queue so a blocked consumer
// unblocks with end-of-stream.
type Cancel struct {
	flag func() bool
}

// NewCancel wraps an atomic-backed predicate into a Cancel.
func NewCancel(flag func() bool) Cancel { return Cancel{flag: flag} }

func (c Cancel) cancelled() bool {
	if c.flag == nil {
		return false
	}
	return c.flag()
}

// Start probes the container by extension hint, optionally seeks (accurate,
// sample-exact seek through the underlying decoder), and spawns the decoder
// worker goroutine. bufferSeconds sizes the destination queue's capacity.
func Start(src Source, extHint string, bufferSeconds float64, seekMs *int64, cancel Cancel) (*Result, error) {
	streamer, format, codec, err := openByExtension(src, extHint)
	if err != nil {
		return nil, fmt.Errorf("decode: probe failed: %w", err)
	}

	if seekMs != nil {
		pos := format.SampleRate.N(msToDuration(*seekMs))
		if err := streamer.Seek(pos); err != nil {
			slog.Warn("decode: accurate seek failed, continuing from start",
				"seek_ms", *seekMs, "error", err)
		}
	}

	rate := int(format.SampleRate)
	channels := 2 // beep's internal representation is always stereo frames
	capFrames := capacityFrames(rate, channels, bufferSeconds)
	q := sampleq.New(channels, capFrames)

	var durationMs *int64
	if n := streamer.Len(); n > 0 && rate > 0 {
		ms := int64(n) * 1000 / int64(rate)
		durationMs = &ms
	}

	info := SourceInfo{
		Codec:     codec,
		Container: strings.TrimPrefix(strings.ToLower(extHint), "."),
	}
	if format.Precision > 0 {
		info.BitDepth = format.Precision * 8
	}

	go decodeWorker(streamer, q, cancel)

	return &Result{
		Spec:       Spec{RateHz: rate, Channels: channels},
		Queue:      q,
		DurationMs: durationMs,
		Info:       info,
	}, nil
}

func decodeWorker(streamer beep.StreamSeekCloser, q *sampleq.Queue, cancel Cancel) {
	defer streamer.Close()
	defer q.Close()

	buf := make([][2]float64, pullFrames)
	interleaved := make([]float32, 0, pullFrames*2)

	for {
		if cancel.cancelled() || q.Closed() {
			return
		}

		n, ok := streamer.Stream(buf)
		if n > 0 {
			interleaved = interleaved[:0]
			for i := 0; i < n; i++ {
				interleaved = append(interleaved, float32(buf[i][0]), float32(buf[i][1]))
			}
			q.PushInterleavedBlocking(interleaved)
		}
		if !ok {
			// beep reports per-packet decode errors via Err(); these are
			// transient per spec §7 and are logged, not propagated — the
			// worker simply stops pulling once the streamer is exhausted.
			if err := streamer.Err(); err != nil {
				slog.Warn("decode: stream ended with error", "error", err)
			}
			return
		}
	}
}

func openByExtension(src Source, extHint string) (beep.StreamSeekCloser, beep.Format, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(extHint, "."))

	switch ext {
	case "mp3":
		s, f, err := mp3.Decode(src)
		return s, f, "mp3", err
	case "wav":
		s, f, err := wav.Decode(src)
		return s, f, "wav", err
	case "flac":
		s, f, err := flac.Decode(src)
		return s, f, "flac", err
	case "ogg":
		s, f, err := vorbis.Decode(src)
		return s, f, "vorbis", err
	default:
		return nil, beep.Format{}, "", fmt.Errorf("decode: unsupported extension %q", extHint)
	}
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func capacityFrames(rateHz, channels int, bufferSeconds float64) int {
	frames := int(float64(rateHz) * bufferSeconds)
	if frames < 1 {
		frames = 1
	}
	_ = channels
	return frames
}
