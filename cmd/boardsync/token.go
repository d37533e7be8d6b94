package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/config"
)

func newTokenCmd() *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.JWT.TTL
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			tok, err := auth.IssueToken(cfg.JWT.Secret, userID, sessionID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the token identifies")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (random when empty)")
	cmd.Flags().Duration("ttl", 0, "token lifetime (BOARDSYNC_JWT_TTL when unset)")
	return cmd
}
