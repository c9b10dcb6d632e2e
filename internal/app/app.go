package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"storefront-auth/internal/config"
	"storefront-auth/internal/logger"
	"storefront-auth/internal/session"

	"golang.org/x/sync/errgroup"
)

type App struct {
	httpServer *http.Server
	sessions   *session.Manager
	cleanup    func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	manager, router := wire(cfg, infra, registry)

	server := &http.Server{
		Addr:    net.JoinHostPort(cfg.AppHost, cfg.AppPort),
		Handler: router,
	}

	return &App{
		httpServer: server,
		sessions:   manager,
		cleanup:    infra.Close,
	}, nil
}

// Run serves HTTP and restores the persisted session concurrently. Gated
// routes wait on the restore instead of denying while it runs.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		st := a.sessions.Initialize(gctx)
		logger.Info("session initialized", map[string]any{
			"state": st.Kind.String(),
		})
		return nil
	})

	g.Go(func() error {
		err := a.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.cleanup != nil {
		return a.cleanup()
	}
	return nil
}
