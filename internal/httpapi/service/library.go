package service

import (
	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/library"
)

// LibraryService wraps the directory-listing library plus its rescanner
// collaborator, publishing LibraryChanged after a successful rescan.
type LibraryService struct {
	lib       *library.Library
	rescanner library.Rescanner
	bus       *eventbus.Bus
}

func NewLibraryService(lib *library.Library, rescanner library.Rescanner, bus *eventbus.Bus) *LibraryService {
	return &LibraryService{lib: lib, rescanner: rescanner, bus: bus}
}

func (s *LibraryService) List(dir string) ([]library.Entry, error) {
	return s.lib.List(dir)
}

func (s *LibraryService) Rescan() error {
	if err := s.rescanner.Rescan(); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Kind: eventbus.KindLibraryChanged})
	}
	return nil
}

func (s *LibraryService) ResolveStreamPath(path string) (string, error) {
	return s.lib.ResolvePath(path)
}
