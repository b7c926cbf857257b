package main

import (
	"context"
	"fmt"
	"os"

	"dilli-gateway/internal/config"
	"dilli-gateway/internal/database"
	"dilli-gateway/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := migrateCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var fromSQLite string

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the schema, optionally importing a SQLite database",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			log := logger.Init(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
			defer logger.Sync()

			if err := run(cmd.Context(), cfg, fromSQLite, log); err != nil {
				log.Error("migration failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fromSQLite, "from-sqlite", "", "copy users and processed messages from this SQLite file into the configured database")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, fromSQLite string, log *zap.Logger) error {
	db, err := database.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	log.Info("schema up to date", zap.String("driver", cfg.DBDriver))

	if fromSQLite == "" {
		return nil
	}

	src, err := gorm.Open(sqlite.Open(fromSQLite), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open sqlite source: %w", err)
	}
	defer database.Close(src)
	log.Info("copying from sqlite", zap.String("path", fromSQLite))

	if _, err := database.CopyAll(ctx, src, db, log); err != nil {
		return err
	}
	if err := database.SyncSequences(db, "processed_messages"); err != nil {
		return err
	}
	log.Info("copy complete")
	return nil
}
