package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/mrp-planner/pkg/infrastructure/closer"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/config"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
	"github.com/vsinha/mrp-planner/pkg/interfaces/http/health"
)

type app struct {
	di     *di
	server *http.Server
}

func New(ctx context.Context) (*app, error) {
	a := &app{}

	if err := a.init(ctx); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) Run(ctx context.Context) error { return a.run(ctx) }

func (a *app) init(ctx context.Context) error {
	inits := []func(context.Context) error{
		a.initConfig,
		a.initLogger,
		a.initCloser,
		a.initDI,
		a.initTables,
		a.initServer,
	}

	for _, initFn := range inits {
		if err := initFn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) initConfig(_ context.Context) error {
	return config.Load()
}

func (a *app) initLogger(_ context.Context) error {
	return logger.Init(
		config.C().Logger.Level(),
		config.C().Logger.AsJSON(),
	)
}

func (a *app) initCloser(_ context.Context) error {
	closer.SetLogger(logger.L())
	return nil
}

func (a *app) initDI(_ context.Context) error {
	a.di = NewDI()
	return nil
}

func (a *app) initTables(ctx context.Context) error {
	if err := a.di.Migrator(ctx).Up(); err != nil {
		logger.Error(ctx, "failed to apply migrations", logger.ErrorF(err))
		return err
	}
	return nil
}

func (a *app) initServer(ctx context.Context) error {
	cfg := config.C()

	r := a.di.Router(ctx)
	r.Use(
		middleware.Recoverer,
		middleware.Logger,
	)
	a.di.RunHandler(ctx).Routes(r)

	r.HandleFunc("/health", health.HealthCheck)

	a.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout(),
	}
	return nil
}

func (a *app) run(ctx context.Context) error {
	defer gracefulShutdown()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info(egCtx,
			"mrp server listening",
			logger.String("address", config.C().Server.Address()),
		)
		err := a.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	if interval := config.C().Planning.StaleSweepInterval(); interval > 0 {
		ctrl := a.di.Controller(ctx)
		olderThan := config.C().Planning.StaleRunAfter()
		eg.Go(func() error {
			sweepStaleRuns(egCtx, ctrl, interval, olderThan)
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()

		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.C().Server.ShutdownTimeout())
		defer cancel()

		return a.server.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	return nil
}

type staleRunSweeper interface {
	FailStaleRuns(ctx context.Context, olderThan time.Duration) (int, error)
}

// sweepStaleRuns fails runs abandoned by a crashed instance until ctx is done
func sweepStaleRuns(ctx context.Context, sweeper staleRunSweeper, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.FailStaleRuns(ctx, olderThan)
			if err != nil {
				logger.Warn(ctx, "stale run sweep", logger.ErrorF(err))
				continue
			}
			if n > 0 {
				logger.Info(ctx, "failed stale runs", logger.Int("count", n))
			}
		}
	}
}

//nolint:contextcheck
func gracefulShutdown() {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		config.C().Server.ShutdownTimeout(),
	)
	defer cancel()

	err := closer.CloseAll(ctx)
	if err != nil {
		logger.Error(ctx, "error during server shutdown", logger.ErrorF(err))
		return
	}
	logger.Info(ctx, "server stopped")
}
