// Package runtime assembles the dictation runtime: telemetry, the bus, the
// transcript journal, the recognition source, the translator, the engine and
// the host bridge, plus the health endpoints in front of them.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxlabs/vox-core/internal/bus"
	"github.com/voxlabs/vox-core/internal/config"
	"github.com/voxlabs/vox-core/internal/engine"
	"github.com/voxlabs/vox-core/internal/host"
	"github.com/voxlabs/vox-core/internal/journal"
	"github.com/voxlabs/vox-core/internal/natsserver"
	"github.com/voxlabs/vox-core/internal/recognition"
	"github.com/voxlabs/vox-core/internal/settings"
	"github.com/voxlabs/vox-core/internal/translate"
)

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup

	engine *engine.Engine
	bridge *host.Bridge
	bus    *bus.Client
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Embedded {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		defer embedded.Shutdown()
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()
	r.bus = busClient

	journalStore, err := journal.Open(ctx, r.cfg.Journal, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer journalStore.Close()

	store := settings.FromConfig(r.cfg, r.logger)
	overridePath := filepath.Join(filepath.Dir(r.cfg.Journal.Path), "settings-override.json")
	if err := settings.ApplyFileOverrides(store, overridePath); err != nil {
		r.logger.Warn("ignoring settings override", slog.String("error", err.Error()))
	}
	store.SetSaver(settings.FileSaver(overridePath, r.logger))

	opener, err := r.buildOpener(busClient)
	if err != nil {
		return err
	}

	translator := translate.NewGeminiClient(r.cfg.Translation.Endpoint, r.cfg.Translation.Timeout())

	bridge := host.NewBridge(ctx, busClient, r.logger)
	r.bridge = bridge

	notifier := engine.MultiNotifier{bridge, newJournalNotifier(journalStore, r.logger)}
	eng := engine.New(ctx, r.cfg.Dictation, store, opener, translator, notifier, r.logger)
	r.engine = eng
	bridge.AttachEngine(eng)

	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer eng.Close()

	if err := bridge.Start(); err != nil {
		return fmt.Errorf("failed to start host bridge: %w", err)
	}
	defer bridge.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("recognition_source", r.cfg.Dictation.Source),
		slog.Bool("translation", r.cfg.Translation.Enabled))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildOpener(busClient *bus.Client) (recognition.Opener, error) {
	switch r.cfg.Dictation.Source {
	case "bus":
		return recognition.NewBusOpener(busClient.Conn(), r.logger), nil
	case "exec":
		return recognition.NewExecOpener(r.cfg.Dictation.Command, r.logger)
	case "mock":
		return recognition.NewScriptedOpener(), nil
	default:
		return nil, fmt.Errorf("unknown recognition source %q", r.cfg.Dictation.Source)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.engine != nil && r.bridge != nil && r.bus != nil &&
		r.engine.Healthy() && r.bridge.Healthy() && r.bus.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unhealthy"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
