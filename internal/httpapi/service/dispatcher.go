// Package service holds the business-logic layer internal/httpapi/handler
// calls into, mirroring the split between arung-agamani-denpa-radio's
// internal/radio/handler and internal/radio/service packages.
package service

import (
	"context"
	"net/url"

	"github.com/komorebi-audio/hub/internal/apperr"
	"github.com/komorebi-audio/hub/internal/bridgeout"
	"github.com/komorebi-audio/hub/internal/browserout"
	"github.com/komorebi-audio/hub/internal/localout"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/transport"
)

// ActiveDispatcher implements transport.Transport by routing every command
// to whichever output kind currently owns the active selection (spec.md
// §4.H/§4.I), generalizing the per-output Transport each provider exposes
// into the single transport the HTTP handlers and playqueue's auto-advance
// path address uniformly.
type ActiveDispatcher struct {
	registry      *outputs.Registry
	local         *localout.Provider
	bridges       *bridgeout.Manager
	browser       *browserout.Manager
	publicBaseURL string
}

func NewActiveDispatcher(registry *outputs.Registry, local *localout.Provider, bridges *bridgeout.Manager, browser *browserout.Manager, publicBaseURL string) *ActiveDispatcher {
	return &ActiveDispatcher{registry: registry, local: local, bridges: bridges, browser: browser, publicBaseURL: publicBaseURL}
}

func (d *ActiveDispatcher) active() (outputs.ActiveSelection, error) {
	sel, ok := d.registry.Active()
	if !ok {
		return outputs.ActiveSelection{}, apperr.Unavailable("no active output selected", nil)
	}
	return sel, nil
}

func (d *ActiveDispatcher) Play(ctx context.Context, req transport.PlayRequest) error {
	sel, err := d.active()
	if err != nil {
		return err
	}
	switch sel.ProviderID {
	case "local":
		return d.local.Play(ctx, req)
	case "bridge":
		tr, err := d.bridges.TransportForOutput(sel.OutputID)
		if err != nil {
			return err
		}
		return tr.Play(ctx, req)
	case "browser":
		return d.browser.Play(sel.OutputID, d.streamURLFor(req.Path), req.Path, req.StartPaused, req.SeekMs)
	default:
		return apperr.Unavailable("unknown active provider: "+sel.ProviderID, nil)
	}
}

func (d *ActiveDispatcher) PauseToggle(ctx context.Context) error {
	sel, err := d.active()
	if err != nil {
		return err
	}
	switch sel.ProviderID {
	case "local":
		return d.local.PauseToggle(ctx)
	case "bridge":
		tr, err := d.bridges.TransportForOutput(sel.OutputID)
		if err != nil {
			return err
		}
		return tr.PauseToggle(ctx)
	case "browser":
		return d.browser.PauseToggle(sel.OutputID)
	default:
		return apperr.Unavailable("unknown active provider: "+sel.ProviderID, nil)
	}
}

func (d *ActiveDispatcher) Stop(ctx context.Context) error {
	sel, err := d.active()
	if err != nil {
		return err
	}
	switch sel.ProviderID {
	case "local":
		return d.local.Stop(ctx)
	case "bridge":
		tr, err := d.bridges.TransportForOutput(sel.OutputID)
		if err != nil {
			return err
		}
		return tr.Stop(ctx)
	case "browser":
		return d.browser.Stop(sel.OutputID)
	default:
		return apperr.Unavailable("unknown active provider: "+sel.ProviderID, nil)
	}
}

func (d *ActiveDispatcher) Seek(ctx context.Context, ms int64) error {
	sel, err := d.active()
	if err != nil {
		return err
	}
	switch sel.ProviderID {
	case "local":
		return d.local.Seek(ctx, ms)
	case "bridge":
		tr, err := d.bridges.TransportForOutput(sel.OutputID)
		if err != nil {
			return err
		}
		return tr.Seek(ctx, ms)
	case "browser":
		return d.browser.Seek(sel.OutputID, ms)
	default:
		return apperr.Unavailable("unknown active provider: "+sel.ProviderID, nil)
	}
}

// streamURLFor composes the /stream?path= URL a browser tab fetches, the
// same composition internal/bridge.Client.PlayPath performs for bridge
// outputs.
func (d *ActiveDispatcher) streamURLFor(path string) string {
	return d.publicBaseURL + "/stream?path=" + url.QueryEscape(path)
}
