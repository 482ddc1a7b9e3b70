package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/middlewares"
	"github.com/spf13/cobra"
)

// withRedis connects to Redis only; sessions do not need the databases.
func withRedis(fn func(ctx context.Context, store *config.RedisStore) error) error {
	cfg := config.Load()
	logger := config.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	store, err := config.ConnectRedisWithRetry(ctx, cfg.RedisAddress, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func sessionCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Issue or revoke API session tokens for operators",
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for --operator-id / --operator-name",
		Long: `Issue a session token for the operator given by the global flags.
Send it in the "token" header of API requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.operatorID <= 0 || opts.operatorName == "" {
				return fmt.Errorf("--operator-id and --operator-name are required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			return withRedis(func(ctx context.Context, store *config.RedisStore) error {
				token := uuid.NewString()
				session := middlewares.OperatorSession{ID: opts.operatorID, Name: opts.operatorName, Username: opts.operatorName}
				if err := store.SetObject(ctx, middlewares.SessionKey(token), session, ttl); err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(map[string]any{"token": token, "expires_at": time.Now().Add(ttl).UTC()})
				}
				okColor.Printf("✓ Token for %s (expires in %s)\n", opts.operatorName, ttl)
				fmt.Println(token)
				return nil
			})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")

	revoke := &cobra.Command{
		Use:   "revoke <token>",
		Short: "Revoke a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRedis(func(ctx context.Context, store *config.RedisStore) error {
				if err := store.RemoveKey(ctx, middlewares.SessionKey(args[0])); err != nil {
					return err
				}
				okColor.Println("✓ Revoked")
				return nil
			})
		},
	}

	cmd.AddCommand(issue, revoke)
	return cmd
}
