package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the audit tables",
	Long:  "Applies the signature_audits DDL for the postgres and mysql audit drivers.",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd)
	backend, err := openAudit(ctx, cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to open audit driver %s: %w", cfg.Audit.Driver, err)
	}
	defer backend.Close()

	if backend.migrate == nil {
		return fmt.Errorf("audit driver %q has no schema to migrate", cfg.Audit.Driver)
	}
	if err := backend.migrate(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Migrated audit schema for %s\n", cfg.Audit.Driver)
	return err
}
