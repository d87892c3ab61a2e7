package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/debapps/WebAuthSecurity/internal/config"
	"github.com/debapps/WebAuthSecurity/internal/telemetry"
)

type App struct {
	httpServer *http.Server
	cleanup    func() error
	shutdownFn func(context.Context) error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel.Endpoint, cfg.OTel.ServiceName)
	if err != nil {
		return nil, err
	}

	handler, cleanup, err := setupHTTP(ctx, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		cleanup:    cleanup,
		shutdownFn: shutdownTracing,
	}, nil
}

// Run serves until Shutdown is called.
func (a *App) Run() error {
	err := a.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.cleanup != nil {
		if err := a.cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.shutdownFn != nil {
		if err := a.shutdownFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
