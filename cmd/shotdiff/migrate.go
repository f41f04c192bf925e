package main

import (
	"database/sql"
	"fmt"

	"github.com/hairizuanbinnoorazman/shotdiff/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}
	cmd.AddCommand(newMigrateStepCmd("up", "Apply all pending migrations", "Migrations applied successfully", database.RunMigrations))
	cmd.AddCommand(newMigrateStepCmd("down", "Rollback the most recent migration", "Migration rolled back successfully", database.RollbackMigration))
	cmd.AddCommand(newMigrateVersionCmd())
	return cmd
}

func newMigrateStepCmd(use, short, done string, step func(*sql.DB, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			a.settings.Database.AutoMigrate = false

			db, closeDB, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database instance: %w", err)
			}
			if err := step(sqlDB, a.settings.Database.Driver); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}

			printMessage("%s", done)
			return nil
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			a.settings.Database.AutoMigrate = false

			db, closeDB, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database instance: %w", err)
			}
			version, dirty, err := database.Version(sqlDB, a.settings.Database.Driver)
			if err != nil {
				return err
			}

			if flagJSON {
				printJSON(map[string]interface{}{"version": version, "dirty": dirty})
				return nil
			}
			if dirty {
				printMessage("version %d (dirty)", version)
				return nil
			}
			printMessage("version %d", version)
			return nil
		},
	}
}
