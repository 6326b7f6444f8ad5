package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/observability"
	"github.com/jonathan/pdf-signer/internal/schemas"
	"github.com/jonathan/pdf-signer/internal/signing"
)

var signBatchCmd = &cobra.Command{
	Use:   "sign-batch",
	Short: "Sign many PDFs from a YAML manifest",
	Long:  "Signs every job in a YAML manifest concurrently. Relative paths resolve against the manifest's directory. A failed job does not stop the others.",
	RunE:  runSignBatch,
}

var (
	signBatchManifest    string
	signBatchConcurrency int
)

func init() {
	signBatchCmd.Flags().StringVarP(&signBatchManifest, "manifest", "m", "", "Path to batch manifest YAML (required)")
	signBatchCmd.Flags().IntVarP(&signBatchConcurrency, "concurrency", "c", runtime.NumCPU(), "Maximum documents signed at once")
	_ = signBatchCmd.MarkFlagRequired("manifest")

	rootCmd.AddCommand(signBatchCmd)
}

// batchManifest lists independent signing jobs. A job without its own
// signature uses the manifest-level one.
type batchManifest struct {
	Signature string    `yaml:"signature"`
	Jobs      []signJob `yaml:"jobs"`
}

// loadManifest parses and schema-checks a manifest, resolving paths
// against its directory.
func loadManifest(path string) (*batchManifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := schemas.ValidateValue(schemas.BatchManifest, doc); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	var manifest batchManifest
	if err := yaml.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range manifest.Jobs {
		job := &manifest.Jobs[i]
		if job.Signature == "" {
			job.Signature = manifest.Signature
		}
		job.In = resolve(job.In)
		job.Out = resolve(job.Out)
		job.Fields = resolve(job.Fields)
		job.Signature = resolve(job.Signature)
	}
	return &manifest, nil
}

// runBatch signs every job with at most concurrency in flight. Outcomes keep
// manifest order.
func runBatch(ctx context.Context, engine *signing.Engine, sink audit.Sink, jobs []signJob, concurrency int) []observability.JobOutcome {
	outcomes := make([]observability.JobOutcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			outcome := observability.JobOutcome{Name: job.In, Out: job.Out}
			if err := gctx.Err(); err != nil {
				outcome.Err = err
				outcomes[i] = outcome
				return nil
			}

			result, err := job.run(engine)
			if err != nil {
				outcome.Err = err
				outcomes[i] = outcome
				return nil
			}
			outcome.Placed = result.Placed
			outcome.Skipped = len(result.Skipped)
			outcomes[i] = outcome

			rec := audit.NewRecord(filepath.Base(job.In), filepath.Base(job.Out), result.OriginalHash, result.SignedHash, map[string]any{
				"algorithm":     string(result.Algorithm),
				"placedFields":  result.Placed,
				"skippedFields": len(result.Skipped),
				"batch":         true,
			})
			if err := sink.Record(gctx, rec); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: audit record for %s failed: %v\n", job.Out, err)
			}
			return nil
		})
	}

	// Jobs report failures through their outcome.
	_ = g.Wait()
	return outcomes
}

var errBatchFailed = errors.New("one or more batch jobs failed")

func runSignBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	manifest, err := loadManifest(signBatchManifest)
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd)
	backend, err := openAudit(ctx, cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to open audit driver %s: %w", cfg.Audit.Driver, err)
	}
	defer backend.Close()

	outcomes := runBatch(ctx, engine, backend.Sink, manifest.Jobs, signBatchConcurrency)
	observability.NewPrinter(cmd.OutOrStdout()).PrintBatchSummary(outcomes)

	for _, o := range outcomes {
		if o.Err != nil {
			return errBatchFailed
		}
	}
	return nil
}
