package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/sync/errgroup"

	"github.com/komorebi-audio/hub/internal/bridge"
	"github.com/komorebi-audio/hub/internal/bridgeout"
	"github.com/komorebi-audio/hub/internal/browserout"
	"github.com/komorebi-audio/hub/internal/config"
	"github.com/komorebi-audio/hub/internal/discovery"
	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/httpapi"
	"github.com/komorebi-audio/hub/internal/httpapi/service"
	"github.com/komorebi-audio/hub/internal/library"
	"github.com/komorebi-audio/hub/internal/localout"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/pipeline"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
)

// bridgeSyncInterval is how often the discovered-plus-configured bridge set
// is reconciled into the bridge output provider's live connections.
const bridgeSyncInterval = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	if err := portaudio.Initialize(); err != nil {
		slog.Error("failed to initialize portaudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	bus := eventbus.New()

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(service.NewLogTapHandler(base, bus))
	slog.SetDefault(logger)

	slog.Info("starting audio hub",
		"bind", cfg.BindAddr,
		"music_dir", cfg.MusicDir,
		"station_name", cfg.StationName,
	)

	store := status.New(bus)
	registry := outputs.NewRegistry(bus)
	queue := playqueue.New(bus, store)
	queue.SetSwitchGraceActive(registry.SwitchGraceActive)

	lib, err := library.New(cfg.MusicDir)
	if err != nil {
		slog.Error("failed to open media library", "error", err)
		os.Exit(1)
	}

	local := localout.New(cfg.MusicDir, pipeline.Config{
		ChunkFrames:     cfg.ChunkFrames,
		RefillMaxFrames: cfg.RefillMaxFrames,
		BufferSeconds:   cfg.BufferSeconds,
	}, store, queue, registry)
	registry.Register(local)

	bridges := bridgeout.NewManager(cfg.PublicBaseURL, registry, store, queue)
	registry.Register(bridges)

	browsers := browserout.NewManager(registry)
	registry.Register(browsers)

	dispatcher := service.NewActiveDispatcher(registry, local, bridges, browsers, cfg.PublicBaseURL)
	wireBrowserObservers(browsers, store, queue, registry, dispatcher)

	discoveryRegistry := discovery.NewRegistry(bus)
	loadConfiguredBridges(discoveryRegistry, cfg.BridgesFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The three discovery-side loops share nothing but ctx; errgroup just
	// gives them a single place to report an unexpected exit.
	var background errgroup.Group
	background.Go(func() error {
		if err := discoveryRegistry.Browse(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("discovery: browse stopped", "error", err)
		}
		return nil
	})
	background.Go(func() error {
		discoveryRegistry.WatchHealth(ctx, func(address string) interface {
			Health(ctx context.Context) error
		} {
			return bridge.New("http://"+address, cfg.PublicBaseURL)
		})
		return nil
	})
	background.Go(func() error {
		runBridgeSync(ctx, discoveryRegistry, bridges)
		return nil
	})

	streamSvc := service.NewStreamService(lib.ResolvePath)
	librarySvc := service.NewLibraryService(lib, library.NopRescanner{}, bus)

	svc := service.New(dispatcher, queue, store, registry, librarySvc, streamSvc, browsers, bus)
	router := httpapi.NewRouter(svc, cfg.WebDir)

	httpServer := &http.Server{
		Addr:           cfg.BindAddr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		slog.Error("http server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	bridges.Close()
	local.Close()
	background.Wait()
	slog.Info("audio hub stopped")
}

// runBridgeSync reconciles discovered-plus-configured bridges into the
// bridge output provider's live connection set on an interval.
func runBridgeSync(ctx context.Context, discoveryRegistry *discovery.Registry, bridges *bridgeout.Manager) {
	ticker := time.NewTicker(bridgeSyncInterval)
	defer ticker.Stop()
	for {
		bridges.Sync(discoveryRegistry.All())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// configuredBridge is the bridges.json entry shape for statically
// configured (non-mDNS) renderers.
type configuredBridge struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

func loadConfiguredBridges(discoveryRegistry *discovery.Registry, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read bridges file", "path", path, "error", err)
		}
		return
	}
	var entries []configuredBridge
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("failed to parse bridges file", "path", path, "error", err)
		return
	}
	for _, e := range entries {
		discoveryRegistry.AddConfigured(e.ID, e.Name, e.Address)
	}
}

// wireBrowserObservers feeds a browser tab's self-reported status into the
// shared status store and auto-advance evaluation, mirroring what
// bridgeout.Manager.applyStatus and localout.Provider.tick already do for
// their output kinds. dispatcher already knows how to address whichever
// output is currently active, browser included, so it doubles as the
// auto-advance transport here.
func wireBrowserObservers(browsers *browserout.Manager, store *status.Store, queue *playqueue.Queue, registry *outputs.Registry, dispatcher *service.ActiveDispatcher) {
	browsers.SetObservers(
		func(sessionID string, st browserout.ClientStatusData) {
			nowPlaying := st.NowPlaying
			report := status.RemoteReport{
				NowPlaying: &nowPlaying,
				ElapsedMs:  st.ElapsedMs,
				DurationMs: st.DurationMs,
			}
			prevNowPlaying := store.Snapshot().NowPlaying
			inputs := store.ApplyRemoteAndInputs(report, st.DurationMs)

			sel, ok := registry.Active()
			if !ok || sel.ProviderID != "browser" || sel.OutputID != "browser:"+sessionID {
				return
			}
			queue.EvaluateAutoAdvance(context.Background(), dispatcher, inputs, prevNowPlaying)
		},
		func(sessionID string) {
			slog.Info("browser session ended", "session", sessionID)
		},
	)
}
