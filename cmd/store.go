package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
	// Registered backends
	_ "github.com/kozaktomas/facegraph/internal/database/postgres"
	_ "github.com/kozaktomas/facegraph/internal/database/sqlite"
)

// openBackend opens the configured store. Opening applies pending migrations.
func openBackend(ctx context.Context, cfg *config.Config) (database.Backend, error) {
	backend, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	logger.Debug().Str("driver", backend.Name()).Msg("store opened")
	return backend, nil
}

// newService builds the consolidation service on top of an open backend.
func newService(cfg *config.Config, backend database.Backend) *consolidation.Service {
	coord := backend.NewCoordinator(database.CoordinatorOptions{
		Timeout:    cfg.Consolidation.Timeout,
		MaxRetries: cfg.Consolidation.MaxRetries,
	})
	return consolidation.NewService(coord, consolidation.SweepScope(cfg.Consolidation.Sweep), logger)
}

// withService opens the store, runs fn and closes the store.
func withService(ctx context.Context, fn func(cfg *config.Config, backend database.Backend, svc *consolidation.Service) error) error {
	cfg := config.Load()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing store")
		}
	}()
	return fn(cfg, backend, newService(cfg, backend))
}
