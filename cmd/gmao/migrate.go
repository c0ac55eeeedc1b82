package main

import (
	"fmt"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()

		db, err := initDatabase(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(entity.Models()...); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		zapLogger.Info("Database schema up to date", zap.Int("tables", len(entity.Models())))
		return nil
	},
}
