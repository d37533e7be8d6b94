package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/client"
	"github.com/gosuda/boardsync/internal/protocol"
)

// probeEvents are logged as they arrive.
var probeEvents = []string{
	protocol.EventBoardLoad,
	protocol.EventPresenceList,
	protocol.EventPresenceJoin,
	protocol.EventPresenceLeave,
	protocol.EventCursorUpdate,
	protocol.EventObjectCreated,
	protocol.EventObjectUpdated,
	protocol.EventObjectDeleted,
	protocol.EventError,
}

func newProbeCmd() *cobra.Command {
	var (
		wsURL, token, boardID, userID, name string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Join a board as a headless client and log every event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if boardID == "" {
				return errors.New("--board is required")
			}
			if token == "" {
				token = os.Getenv("BOARDSYNC_TOKEN")
			}
			return runProbe(cmd.Context(), wsURL, token, boardID, userID, name)
		},
	}
	cmd.Flags().StringVar(&wsURL, "url", "ws://localhost:8080/ws", "websocket endpoint")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (BOARDSYNC_TOKEN when empty)")
	cmd.Flags().StringVar(&boardID, "board", "", "board id to join")
	cmd.Flags().StringVar(&userID, "user", "", "own user id, used to skip own cursor echoes")
	cmd.Flags().StringVar(&name, "name", "probe", "display name")
	return cmd
}

func runProbe(ctx context.Context, wsURL, token, boardID, userID, name string) error {
	conn := client.NewConn(client.Options{URL: wsURL, Token: token, Logger: log.Logger})
	board := client.NewBoard(conn, boardID, userID, name)

	for _, event := range probeEvents {
		conn.On(event, func(data json.RawMessage) {
			log.Info().Str("event", event).RawJSON("data", data).Msg("received")
		})
	}
	conn.On(protocol.EventBoardLoad, func(json.RawMessage) {
		log.Info().
			Int("objects", board.Objects.Len()).
			Int("users", board.Users.Len()).
			Msg("board state")
	})
	conn.OnState(func(s client.State) {
		log.Info().Stringer("state", s).Msg("connection")
	})

	if err := board.Join(ctx); err != nil {
		return err
	}
	return conn.Run(ctx)
}
