package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/store/postgres"
	"github.com/gosuda/boardsync/internal/store/sqlite"
)

const (
	storeConnectAttempts = 3
	storeConnectDelay    = 2 * time.Second
)

// boardStore is what the commands need from either backend.
type boardStore interface {
	domain.StorageAdapter
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// openStore connects to the configured backend, retrying a few times since
// the database often starts alongside the server.
func openStore(ctx context.Context, cfg *config.Config) (boardStore, func(), error) {
	for attempt := 1; ; attempt++ {
		s, closeFn, err := dialStore(ctx, cfg)
		if err == nil {
			return s, closeFn, nil
		}
		if attempt == storeConnectAttempts {
			return nil, nil, fmt.Errorf("open %s store after %d attempts: %w", cfg.Storage.Driver, attempt, err)
		}

		log.Warn().Err(err).
			Str("driver", cfg.Storage.Driver).
			Int("attempt", attempt).
			Dur("retry_in", storeConnectDelay).
			Msg("store unavailable")

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(storeConnectDelay):
		}
	}
}

func dialStore(ctx context.Context, cfg *config.Config) (boardStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		s, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("close sqlite store")
			}
		}, nil

	default:
		if cfg.Database.MaxConns > math.MaxInt32 {
			return nil, nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		s, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
