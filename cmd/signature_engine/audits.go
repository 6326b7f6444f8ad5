package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/pdf-signer/internal/observability"
)

var auditsCmd = &cobra.Command{
	Use:   "audits PDF_ID",
	Short: "List audit records for an uploaded document",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudits,
}

var auditsLimit int

func init() {
	auditsCmd.Flags().IntVarP(&auditsLimit, "limit", "n", 20, "Maximum records to show")
	rootCmd.AddCommand(auditsCmd)
}

func runAudits(cmd *cobra.Command, args []string) error {
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

	if backend.Lister == nil {
		return fmt.Errorf("audit driver %q cannot list records", cfg.Audit.Driver)
	}
	records, err := backend.Lister.List(ctx, args[0], auditsLimit)
	if err != nil {
		return fmt.Errorf("failed to list audits: %w", err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintAudits(args[0], records)
	return nil
}
