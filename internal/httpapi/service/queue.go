package service

import (
	"context"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
	"github.com/komorebi-audio/hub/internal/transport"
)

// PlaybackService orchestrates the transport dispatch + queue navigation
// surface of spec.md §6: POST /play, /pause, /stop, /seek, and the queue
// next/previous/play_from endpoints, which also need a transport dispatch.
type PlaybackService struct {
	dispatcher *ActiveDispatcher
	queue      *playqueue.Queue
	store      *status.Store
}

func NewPlaybackService(dispatcher *ActiveDispatcher, queue *playqueue.Queue, store *status.Store) *PlaybackService {
	return &PlaybackService{dispatcher: dispatcher, queue: queue, store: store}
}

func (s *PlaybackService) Play(ctx context.Context, path string, startPaused bool) error {
	return s.dispatcher.Play(ctx, transport.PlayRequest{Path: path, StartPaused: startPaused})
}

func (s *PlaybackService) PauseToggle(ctx context.Context) error {
	return s.dispatcher.PauseToggle(ctx)
}

func (s *PlaybackService) Stop(ctx context.Context) error {
	return s.dispatcher.Stop(ctx)
}

func (s *PlaybackService) Seek(ctx context.Context, ms int64) error {
	return s.dispatcher.Seek(ctx, ms)
}

func (s *PlaybackService) currentlyPlaying() string {
	return s.store.Snapshot().NowPlaying
}

// Next dispatches the head of the pending queue (manual skip).
func (s *PlaybackService) Next(ctx context.Context) (string, bool, error) {
	return s.queue.Next(ctx, s.dispatcher, s.currentlyPlaying())
}

// Previous dispatches the most recent distinct history entry.
func (s *PlaybackService) Previous(ctx context.Context) (string, bool, error) {
	return s.queue.Previous(ctx, s.dispatcher, s.currentlyPlaying())
}

// PlayFrom removes path from the pending queue (if present) and plays it
// immediately; path need not have been queued. History bookkeeping is left
// to Next/Previous/auto-advance, which are the only transitions the queue
// service records.
func (s *PlaybackService) PlayFrom(ctx context.Context, path string) error {
	s.queue.Remove(path)
	if err := s.Play(ctx, path, false); err != nil {
		return apperr.Unavailable("play_from dispatch failed", err)
	}
	return nil
}

// QueueService wraps the pending-queue CRUD surface.
type QueueService struct {
	queue *playqueue.Queue
}

func NewQueueService(queue *playqueue.Queue) *QueueService {
	return &QueueService{queue: queue}
}

func (s *QueueService) List() []string { return s.queue.List() }

func (s *QueueService) Add(paths []string) int { return s.queue.Add(paths, playqueue.AddAppend) }

func (s *QueueService) AddNext(paths []string) int { return s.queue.Add(paths, playqueue.AddNext) }

func (s *QueueService) Remove(path string) bool { return s.queue.Remove(path) }

func (s *QueueService) Clear() { s.queue.Clear() }
