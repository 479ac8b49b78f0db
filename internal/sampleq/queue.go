// Package sampleq implements the bounded interleaved-sample FIFO that sits
// between every pair of pipeline stages (decode -> resample -> output).
package sampleq

import (
	"sync"
)

// PopStrategy selects how Pop behaves when the queue does not currently
// hold enough samples to satisfy the caller outright.
type PopStrategy struct {
	// Exact, when true, means Pop must return exactly Frames frames or
	// report end-of-stream; it never returns a short read.
	Exact bool
	// Blocking, when true, means Pop waits for more data (or close)
	// rather than returning immediately with whatever is available.
	Blocking bool
	// Frames is the frame count requested. For NonBlocking and
	// BlockingUpTo it is a maximum; for BlockingExact it is exact.
	Frames int
}

// NonBlocking returns up to maxFrames frames without waiting.
func NonBlocking(maxFrames int) PopStrategy {
	return PopStrategy{Exact: false, Blocking: false, Frames: maxFrames}
}

// BlockingExact waits until exactly frames frames are available or the
// queue closes with fewer remaining, in which case Pop returns false.
func BlockingExact(frames int) PopStrategy {
	return PopStrategy{Exact: true, Blocking: true, Frames: frames}
}

// BlockingUpTo waits for at least one frame (or close) then returns up to
// maxFrames frames.
func BlockingUpTo(maxFrames int) PopStrategy {
	return PopStrategy{Exact: false, Blocking: true, Frames: maxFrames}
}

// Queue is a bounded FIFO of interleaved float32 samples shared between
// exactly one producer and one consumer. Capacity is expressed in frames
// (channels * frames = samples); pushes of a partial frame are rejected.
//
// Queue is safe for concurrent use by one producer goroutine and one
// consumer goroutine, plus any number of goroutines calling Close or the
// Wait* methods.
type Queue struct {
	mu     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	doneCond *sync.Cond

	channels   int
	maxSamples int // capacity in samples (frames * channels)

	buf    []float32
	closed bool
}

// New creates a Queue for the given channel count and frame capacity.
// Callers compute the frame capacity as rateHz*bufferSeconds (floored, at
// least one frame); New itself just takes the resolved frame count and
// holds that many frames times channels samples.
func New(channels int, capacityFrames int) *Queue {
	if channels < 1 {
		channels = 1
	}
	if capacityFrames < 1 {
		capacityFrames = 1
	}
	q := &Queue{
		channels:   channels,
		maxSamples: capacityFrames * channels,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	q.doneCond = sync.NewCond(&q.mu)
	return q
}

// MaxFrames returns the queue's capacity in frames.
func (q *Queue) MaxFrames() int {
	return q.maxSamples / q.channels
}

// Channels returns the immutable channel count.
func (q *Queue) Channels() int {
	return q.channels
}

// PushInterleavedBlocking appends an interleaved sample slice, blocking
// while adding the full slice would exceed capacity and the queue remains
// open. len(samples) must be a multiple of Channels(). After Close, this
// is a no-op.
func (q *Queue) PushInterleavedBlocking(samples []float32) {
	if len(samples) == 0 || len(samples)%q.channels != 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.buf)+len(samples) > q.maxSamples {
		q.notFull.Wait()
	}
	if q.closed {
		return
	}
	q.buf = append(q.buf, samples...)
	q.notEmpty.Broadcast()
}

// Pop removes and returns samples per strategy. ok is false only when the
// queue has reached end-of-stream: closed, and (for BlockingExact) fewer
// than the requested frames remain. A NonBlocking pop on an open-but-empty
// queue returns an empty, ok=true slice; BlockingUpTo waits instead.
func (q *Queue) Pop(strategy PopStrategy) (samples []float32, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wantSamples := strategy.Frames * q.channels

	if strategy.Blocking {
		for {
			available := len(q.buf)
			if strategy.Exact {
				if available >= wantSamples {
					break
				}
				if q.closed {
					q.signalDoneIfDrained()
					return nil, false
				}
			} else {
				if available > 0 || q.closed {
					break
				}
			}
			q.notEmpty.Wait()
		}
	}

	available := len(q.buf)
	if available == 0 {
		if q.closed {
			q.signalDoneIfDrained()
			return nil, false
		}
		return []float32{}, true
	}

	if strategy.Exact && available < wantSamples {
		return nil, false
	}

	n := available
	if wantSamples > 0 && n > wantSamples {
		n = wantSamples
	}

	out := make([]float32, n)
	copy(out, q.buf[:n])
	q.buf = q.buf[n:]
	q.notFull.Broadcast()
	q.signalDoneIfDrained()
	return out, true
}

// Close marks the queue closed. Subsequent pushes are no-ops; pops drain
// whatever remains and then report end-of-stream. Close is idempotent and
// wakes every waiter.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.doneCond.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// BufferedFrames reports how many frames currently sit in the queue.
func (q *Queue) BufferedFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) / q.channels
}

// WaitUntilDoneAndEmpty blocks until the queue is closed and drained.
func (q *Queue) WaitUntilDoneAndEmpty() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !(q.closed && len(q.buf) == 0) {
		q.doneCond.Wait()
	}
}

// WaitUntilDoneAndEmptyOrCancel blocks until the queue is closed and
// drained, or cancel reports true. It polls cancel on every wake so a
// separate Close() call is still required to guarantee a final wake; a
// typical caller pairs this with the cancel flag closing the queue itself.
func (q *Queue) WaitUntilDoneAndEmptyOrCancel(cancel func() bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !(q.closed && len(q.buf) == 0) && !cancel() {
		q.doneCond.Wait()
	}
}

// signalDoneIfDrained wakes Wait* callers when the closed+empty condition
// becomes true from a Pop call. It must be called with q.mu held.
func (q *Queue) signalDoneIfDrained() {
	if q.closed && len(q.buf) == 0 {
		q.doneCond.Broadcast()
	}
}
