package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/pdf-signer/internal/digest"
	"github.com/jonathan/pdf-signer/internal/observability"
)

var digestCmd = &cobra.Command{
	Use:   "digest FILE...",
	Short: "Print document hashes",
	Long:  "Prints the hash of each file with the configured algorithm, in the same form recorded by the audit trail.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDigest,
}

var digestAlgorithm string

func init() {
	digestCmd.Flags().StringVarP(&digestAlgorithm, "algorithm", "a", "", "Hash algorithm (sha256, sha3-256, blake2b-256); defaults to HASH_ALGORITHM")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	name := digestAlgorithm
	if name == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name = cfg.Hash
	}

	hasher, err := digest.New(name)
	if err != nil {
		return fmt.Errorf("failed to create hasher: %w", err)
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		printer.PrintDigest(hasher.Digest(content), path)
	}
	return nil
}
