package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/refresh-session-auth/internal/config"
	"github.com/sandeepkv93/refresh-session-auth/internal/di"
	"github.com/sandeepkv93/refresh-session-auth/internal/repository"
	"github.com/sandeepkv93/refresh-session-auth/internal/tools/ui"
)

const operationTimeout = 30 * time.Second

type options struct {
	envFile string
	ci      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Refresh-session authentication service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file read before the environment")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive output")
	cmd.AddCommand(newServeCommand(opts), newMigrateCommand(opts), newSessionsCommand(opts))
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if autoMigrate {
				if err := migrate(cfg, slog.Default()); err != nil {
					return err
				}
			}
			a, cleanup, err := di.InitializeApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "apply schema migrations before serving")
	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			_, err = runOperation(cmd, opts, "apply migrations", func(context.Context) ([]string, error) {
				if err := migrate(cfg, discardLogger()); err != nil {
					return nil, err
				}
				return []string{"driver=" + cfg.DatabaseDriver}, nil
			})
			return err
		},
	}
}

func migrate(cfg *config.Config, logger *slog.Logger) error {
	db, cleanup, err := di.InitializeDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := repository.Migrate(db); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", cfg.DatabaseDriver)
	return nil
}

func newSessionsCommand(opts *options) *cobra.Command {
	var userID uint
	cmd := &cobra.Command{Use: "sessions", Short: "Inspect and revoke refresh sessions"}
	cmd.PersistentFlags().UintVar(&userID, "user", 0, "user id")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List a user's active sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			svc, cleanup, err := di.InitializeSessionService(cfg, discardLogger())
			if err != nil {
				return err
			}
			defer cleanup()
			ctx, cancel := context.WithTimeout(cmd.Context(), operationTimeout)
			defer cancel()
			views, err := svc.ListActiveSessions(ctx, userID, "")
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					strconv.FormatUint(uint64(v.ID), 10),
					v.CreatedAt.Format(time.RFC3339),
					v.ExpiresAt.Format(time.RFC3339),
					v.IP,
					v.UserAgent,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"ID", "CREATED", "EXPIRES", "IP", "USER AGENT"}, rows))
			return err
		},
	})

	var sessionID uint
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a single session of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			svc, cleanup, err := di.InitializeSessionService(cfg, discardLogger())
			if err != nil {
				return err
			}
			defer cleanup()
			_, err = runOperation(cmd, opts, fmt.Sprintf("revoke session %d of user %d", sessionID, userID), func(ctx context.Context) ([]string, error) {
				changed, err := svc.RevokeSession(ctx, userID, sessionID)
				if err != nil {
					return nil, err
				}
				if !changed {
					return []string{"status=already_revoked"}, nil
				}
				return []string{"status=revoked"}, nil
			})
			return err
		},
	}
	revoke.Flags().UintVar(&sessionID, "session", 0, "session id")
	_ = revoke.MarkFlagRequired("session")
	cmd.AddCommand(revoke)

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke-user",
		Short: "Revoke every active session of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			svc, cleanup, err := di.InitializeSessionService(cfg, discardLogger())
			if err != nil {
				return err
			}
			defer cleanup()
			_, err = runOperation(cmd, opts, fmt.Sprintf("revoke sessions of user %d", userID), func(ctx context.Context) ([]string, error) {
				n, err := svc.RevokeAll(ctx, userID)
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("revoked=%d", n)}, nil
			})
			return err
		},
	})
	return cmd
}

// runOperation animates fn on a terminal, or prints a plain summary with --ci.
func runOperation(cmd *cobra.Command, opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(cmd.Context(), operationTimeout)
		defer cancel()
		return ui.RunPlain(ctx, cmd.OutOrStdout(), title, fn)
	}
	return ui.Run(title, func(ctx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, operationTimeout)
		defer cancel()
		return fn(ctx)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
