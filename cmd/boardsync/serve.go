package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/realtime"
	"github.com/gosuda/boardsync/internal/server"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// The relay stays a nil interface unless Redis is configured.
	var relay realtime.Relay
	if cfg.Redis.Enabled() {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()
		relay = pubsub
	}

	engine := realtime.NewEngine(store, realtime.NewRoomRegistry(), realtime.NewPresenceTracker(), log.Logger)
	hub := realtime.NewHub(engine, relay, realtime.HubConfig{
		SendBuffer:     cfg.Realtime.SendBuffer,
		CursorRate:     rate.Limit(cfg.Realtime.CursorRate),
		CursorBurst:    cfg.Realtime.CursorBurst,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	}, log.Logger)

	if relay != nil {
		go func() {
			if err := hub.Run(ctx); err != nil {
				log.Error().Err(err).Msg("relay stopped")
			}
		}()
	}

	srv := server.New(ctx, cfg, store, hub, auth.NewJWTVerifier(cfg.JWT.Secret))

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("storage", cfg.Storage.Driver).
			Bool("relay", relay != nil).
			Msg("starting server")
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.Warn().Str("origin", o).Msg("ignoring malformed CORS origin")
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
