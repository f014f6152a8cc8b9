package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pizzeria/internal/domain/menu"
	"github.com/xenking/pizzeria/internal/domain/order"
	"github.com/xenking/pizzeria/internal/handler"
	"github.com/xenking/pizzeria/internal/menufile"
	"github.com/xenking/pizzeria/internal/storage/memory"
	"github.com/xenking/pizzeria/internal/storage/postgres"
	"github.com/xenking/pizzeria/pkg/health"
	"github.com/xenking/pizzeria/pkg/httpmiddleware"
)

const serviceName = "pizzeria"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	svc, closeStorage, err := build(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer closeStorage()

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.health.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		<-gctx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		svc.health.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

type service struct {
	handler http.Handler
	health  *health.Health
}

type storage struct {
	menu   menu.Repository
	orders order.Store
	writer menufile.Writer
}

// build opens storage, loads the menu fixture and assembles the HTTP stack.
// The returned func releases storage.
func build(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (_ *service, _ func(), rerr error) {
	hs := health.New()
	hs.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, release, err := openStorage(ctx, cfg, hs)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if rerr != nil {
			release()
		}
	}()

	if cfg.MenuFile != "" {
		f, err := menufile.Load(cfg.MenuFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, "load menu file")
		}
		stats, err := f.Apply(ctx, st.writer)
		if err != nil {
			return nil, nil, errors.Wrap(err, "apply menu file")
		}
		lg.Info("Menu loaded",
			zap.String("file", cfg.MenuFile),
			zap.Int("toppings", stats.Toppings),
			zap.Int("sizes", stats.Sizes),
			zap.Int("pizzas", stats.Pizzas),
		)
	}

	window, err := cfg.Order.Window()
	if err != nil {
		return nil, nil, errors.Wrap(err, "order window")
	}
	orders, err := order.NewService(st.orders, cfg.Order.Address,
		order.WithWindow(window),
		order.WithTracerProvider(tp),
		order.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "order service")
	}

	api := handler.New(st.menu, orders)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", hs.LiveEndpoint)
	mux.HandleFunc("GET /readyz", hs.ReadyEndpoint)
	mux.Handle("/api/", api)

	return &service{
		health: hs,
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, api.Route, tp, mp),
			httpmiddleware.LogRequests(api.Route),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				Methods: []string{http.MethodPost, http.MethodPatch},
			}),
		),
	}, release, nil
}

func openStorage(ctx context.Context, cfg *Config, hs *health.Health) (*storage, func(), error) {
	if cfg.Storage == StorageMemory {
		st := memory.New()
		return &storage{menu: st, orders: st, writer: st}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	hs.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))

	menus := postgres.NewMenuRepository(pool)
	return &storage{
		menu:   menus,
		orders: postgres.NewOrderStore(pool),
		writer: menus,
	}, pool.Close, nil
}
