package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/database"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create schemas, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StoragePostgres)
			}

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			return runMigrations(a)
		},
	}
}

func runMigrations(a *app) error {
	if a.db == nil {
		a.log.Info("in-memory storage, skipping migrations")
		return nil
	}
	return database.Migrate(a.db, a.log)
}

func createAdminCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the primary admin account if it does not exist",
		Long: "Creates the primary \"admin\" staff account. The password is read " +
			"from ADMIN_PASSWORD and must be at least 12 characters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				return errors.New("ADMIN_PASSWORD is required")
			}

			cfg, log, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			st, created, err := a.staffSvc.EnsureAdmin(ctx, password, name)
			if err != nil {
				return err
			}
			if !created {
				log.Info("primary admin already exists", zap.String("staff_id", st.ID))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", st.Username, st.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrador", "display name of the admin account")
	return cmd
}
