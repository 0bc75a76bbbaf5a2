package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/config"
	"pool-dispatch-service/internal/platform/db"
	"pool-dispatch-service/internal/platform/obs"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	seedPath string
)

var rootCmd = &cobra.Command{
	Use:           "dbtool",
	Short:         "Dispatch database maintenance",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			zerolog.Ctx(ctx).Info().Msg("initializing database schema")
			if err := repositories.InitSchema(ctx, conn); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Msg("schema ready")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and load dispatch data from a JSON seed file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			cfg := configFromContext(ctx)
			path := cfg.Seed.Path
			if seedPath != "" {
				path = seedPath
			}

			if err := repositories.InitSchema(ctx, conn); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Str("seed", path).Msg("seeding database")
			if err := repositories.SeedFromJSON(ctx, conn, path); err != nil {
				return err
			}
			zerolog.Ctx(ctx).Info().Msg("seeding complete")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file")
	seedCmd.Flags().StringVar(&seedPath, "file", "", "seed file (defaults to seed.path)")

	rootCmd.AddCommand(migrateCmd, seedCmd)
}

type configKey struct{}

func configFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

// withDB loads the configuration, opens the database and hands both to fn
// through the context.
func withDB(ctx context.Context, fn func(ctx context.Context, conn *sql.DB) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return errors.New("database.url is required (DISPATCH_DATABASE__URL)")
	}

	logger := obs.Component(obs.NewLogger(cfg.Logging.Level, cfg.Logging.Format), "dbtool")
	ctx = context.WithValue(logger.WithContext(ctx), configKey{}, cfg)

	conn, err := db.Open(ctx, cfg.Database.URL, db.Options{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, conn)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
