package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/observability"
	"github.com/jonathan/pdf-signer/internal/schemas"
	"github.com/jonathan/pdf-signer/internal/sigimage"
	"github.com/jonathan/pdf-signer/internal/signing"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a local PDF file",
	Long:  "Burns the fields described by a JSON file into a PDF and writes the signed copy. The signature may be a PNG or JPEG file or a text file holding a data URL.",
	RunE:  runSign,
}

var (
	signInFile        string
	signFieldsFile    string
	signSignatureFile string
	signOutFile       string
	signJSON          bool
)

func init() {
	signCmd.Flags().StringVarP(&signInFile, "in", "i", "", "Path to source PDF (required)")
	signCmd.Flags().StringVarP(&signFieldsFile, "fields", "f", "", "Path to fields JSON array (required)")
	signCmd.Flags().StringVarP(&signSignatureFile, "signature", "s", "", "Path to signature image or data URL file")
	signCmd.Flags().StringVarP(&signOutFile, "out", "o", "", "Path to signed PDF output (required)")
	signCmd.Flags().BoolVar(&signJSON, "json", false, "Print the result as JSON")

	_ = signCmd.MarkFlagRequired("in")
	_ = signCmd.MarkFlagRequired("fields")
	_ = signCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(signCmd)
}

// signOutput is the --json shape of a signing run.
type signOutput struct {
	Out           string               `json:"out"`
	OriginalHash  string               `json:"originalHash"`
	SignedHash    string               `json:"signedHash"`
	Algorithm     string               `json:"algorithm"`
	PlacedFields  int                  `json:"placedFields"`
	SkippedFields []signing.Diagnostic `json:"skippedFields"`
}

func runSign(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd)
	backend, err := openAudit(ctx, cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to open audit driver %s: %w", cfg.Audit.Driver, err)
	}
	defer backend.Close()

	job := signJob{In: signInFile, Out: signOutFile, Fields: signFieldsFile, Signature: signSignatureFile}
	result, err := job.run(engine)
	if err != nil {
		return err
	}

	rec := audit.NewRecord(filepath.Base(job.In), filepath.Base(job.Out), result.OriginalHash, result.SignedHash, map[string]any{
		"algorithm":     string(result.Algorithm),
		"placedFields":  result.Placed,
		"skippedFields": len(result.Skipped),
	})
	if err := backend.Sink.Record(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit record failed: %v\n", err)
	}

	if signJSON {
		skipped := result.Skipped
		if skipped == nil {
			skipped = []signing.Diagnostic{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(signOutput{
			Out:           job.Out,
			OriginalHash:  result.OriginalHash,
			SignedHash:    result.SignedHash,
			Algorithm:     string(result.Algorithm),
			PlacedFields:  result.Placed,
			SkippedFields: skipped,
		})
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintSignResult(job.Out, result)
	return nil
}

// signJob is one file-to-file signing run.
type signJob struct {
	In        string `yaml:"in"`
	Out       string `yaml:"out"`
	Fields    string `yaml:"fields"`
	Signature string `yaml:"signature"`
}

func (j signJob) run(engine *signing.Engine) (*signing.Result, error) {
	source, err := os.ReadFile(j.In)
	if err != nil {
		return nil, fmt.Errorf("failed to read input PDF: %w", err)
	}

	raw, err := readFields(j.Fields)
	if err != nil {
		return nil, err
	}

	dataURL, err := readSignature(j.Signature)
	if err != nil {
		return nil, err
	}

	result, err := engine.SignRaw(source, dataURL, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", j.In, err)
	}

	if dir := filepath.Dir(j.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(j.Out, result.Bytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write output PDF: %w", err)
	}
	return result, nil
}

// readFields loads and schema-checks a JSON array of field entries.
func readFields(path string) ([]json.RawMessage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file: %w", err)
	}
	if err := schemas.Validate(schemas.Fields, content); err != nil {
		return nil, fmt.Errorf("invalid fields file %s: %w", path, err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields JSON: %w", err)
	}
	return raw, nil
}

// readSignature returns a data URL for path. A file that already holds a
// data URL is used as is; raw PNG or JPEG bytes are encoded. An empty path
// means no signature.
func readSignature(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read signature file: %w", err)
	}

	if trimmed := bytes.TrimSpace(content); bytes.HasPrefix(trimmed, []byte("data:")) {
		return string(trimmed), nil
	}

	format := sigimage.Sniff(content)
	if format == "" {
		return "", fmt.Errorf("signature file %s is neither PNG nor JPEG", path)
	}
	return fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(content)), nil
}
