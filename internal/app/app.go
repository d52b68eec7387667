// Package app wires all Aikata subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP sidecar (and optionally the MCP control
// surface) until the context is cancelled, and Shutdown tears everything
// down in reverse order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithLoader, WithRenderer). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aikata-app/aikata/internal/character"
	"github.com/aikata-app/aikata/internal/config"
	"github.com/aikata-app/aikata/internal/control"
	"github.com/aikata-app/aikata/internal/engine"
	"github.com/aikata-app/aikata/internal/health"
	"github.com/aikata-app/aikata/internal/observe"
	"github.com/aikata-app/aikata/internal/renderer"
	"github.com/aikata-app/aikata/internal/renderer/vts"
)

// shutdownTimeout bounds how long Shutdown waits for the HTTP server.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store    character.Store
	loader   renderer.ModelLoader
	rend     renderer.AnimationRenderer
	eng      *engine.Engine
	metrics  *observe.Metrics
	httpSrv  *http.Server
	controls *control.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a character store instead of creating one from config.
func WithStore(s character.Store) Option {
	return func(a *App) { a.store = s }
}

// WithLoader injects a model loader instead of dialing the renderer bridge.
func WithLoader(l renderer.ModelLoader) Option {
	return func(a *App) { a.loader = l }
}

// WithRenderer injects an animation renderer instead of the renderer bridge.
func WithRenderer(r renderer.AnimationRenderer) Option {
	return func(a *App) { a.rend = r }
}

// New creates an App by wiring all subsystems together: telemetry
// providers, character store (with roster import), renderer bridge, the
// state engine, and the MCP control surface.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	if err := a.initRenderer(ctx); err != nil {
		return nil, fmt.Errorf("app: init renderer: %w", err)
	}

	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	var controlOpts []control.Option
	if t := cfg.Characters.FuzzyThreshold; t > 0 {
		controlOpts = append(controlOpts, control.WithFuzzyThreshold(t))
	}
	a.controls = control.NewServer(a.eng, controlOpts...)

	return a, nil
}

// Engine exposes the state engine, mainly for tests and embedding callers.
func (a *App) Engine() *engine.Engine {
	return a.eng
}

// initTelemetry sets up the OTel providers and the metrics instruments.
func (a *App) initTelemetry(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(ctx)
	})

	a.metrics = observe.DefaultMetrics()
	return nil
}

// initStore sets up the character store (Postgres when a DSN is configured,
// in-memory otherwise) and imports the startup roster.
func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		if dsn := a.cfg.Storage.PostgresDSN; dsn != "" {
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			a.closers = append(a.closers, func() error {
				pool.Close()
				return nil
			})

			pg := character.NewPostgresStore(pool)
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate character schema: %w", err)
			}
			a.store = pg
			slog.Info("using postgres character store")
		} else {
			a.store = character.NewMemStore()
			slog.Info("using in-memory character store")
		}
	}

	if path := a.cfg.Characters.RosterPath; path != "" {
		roster, err := character.LoadRosterFile(path)
		if err != nil {
			return fmt.Errorf("load roster %q: %w", path, err)
		}
		n, err := character.ImportRoster(ctx, a.store, roster)
		if err != nil {
			return fmt.Errorf("import roster %q: %w", path, err)
		}
		slog.Info("imported character roster", "path", path, "count", n)
	}

	return nil
}

// initRenderer dials the renderer bridge when an endpoint is configured.
// Without one the engine runs headless: loads succeed instantly and
// animation intents are logged and dropped.
func (a *App) initRenderer(ctx context.Context) error {
	if a.loader != nil {
		return nil
	}

	endpoint := a.cfg.Renderer.Endpoint
	if endpoint == "" {
		a.loader = renderer.NopLoader{}
		slog.Info("no renderer endpoint configured, running headless")
		return nil
	}

	var opts []vts.Option
	if name := a.cfg.Renderer.APIName; name != "" {
		opts = append(opts, vts.WithAPIName(name))
	}
	client, err := vts.Dial(ctx, endpoint, opts...)
	if err != nil {
		return fmt.Errorf("dial renderer %q: %w", endpoint, err)
	}
	a.closers = append(a.closers, client.Close)

	a.loader = client
	if a.rend == nil {
		a.rend = client
	}
	slog.Info("renderer bridge connected", "endpoint", endpoint)
	return nil
}

// initEngine builds the state engine from the wired collaborators.
func (a *App) initEngine() error {
	eng, err := engine.New(engine.Config{
		Store:                  a.store,
		Loader:                 a.loader,
		Renderer:               a.rend,
		Metrics:                a.metrics,
		InteractionLogCapacity: a.cfg.Engine.InteractionLogCapacity,
		EmotionHistoryCapacity: a.cfg.Engine.EmotionHistoryCapacity,
	})
	if err != nil {
		return err
	}
	a.eng = eng
	a.closers = append(a.closers, eng.Close)
	return nil
}

// Run serves the health/metrics sidecar and, when enabled, the MCP control
// surface on stdio. It blocks until ctx is cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	checkers := []health.Checker{health.StoreCheck(a.store)}
	if client, ok := a.loader.(*vts.Client); ok {
		checkers = append(checkers, health.RendererCheck(func(ctx context.Context) error {
			return client.Stop(ctx, "")
		}))
	}
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http sidecar listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("app: http server: %w", err)
		}
	}()

	if a.cfg.MCP.Enabled {
		go func() {
			if err := a.controls.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("app: mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and closes all subsystems in reverse
// creation order. Safe to call multiple times.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
