package service

import (
	"context"

	"github.com/komorebi-audio/hub/internal/outputs"
)

// OutputsService wraps the output provider registry for the
// providers/outputs surface of spec.md §6.
type OutputsService struct {
	registry *outputs.Registry
}

func NewOutputsService(registry *outputs.Registry) *OutputsService {
	return &OutputsService{registry: registry}
}

func (s *OutputsService) Providers() []string {
	return s.registry.ListProviders()
}

func (s *OutputsService) OutputsForProvider(providerID string) ([]outputs.Output, bool) {
	return s.registry.OutputsForProvider(providerID)
}

func (s *OutputsService) ListAll() []outputs.Output {
	return s.registry.ListOutputs()
}

func (s *OutputsService) ActiveID() string {
	sel, ok := s.registry.Active()
	if !ok {
		return ""
	}
	return sel.OutputID
}

func (s *OutputsService) Select(ctx context.Context, id string) error {
	return s.registry.Select(ctx, id)
}

func (s *OutputsService) StatusForOutput(id string) (outputs.Status, error) {
	return s.registry.StatusForOutput(id)
}
