package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/pdf-signer/internal/pdf/pdftest"
)

// fixtureDir writes a source PDF, a PNG signature and a fields file into a
// temp dir and returns the dir.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.pdf"), pdftest.A4(1), 0o644))

	img := image.NewNRGBA(image.Rect(0, 0, 40, 12))
	for x := 0; x < 40; x++ {
		img.Set(x, 6, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sig.png"), buf.Bytes(), 0o644))

	fields := `[
		{"pageIndex": 0, "xRel": 0.1, "yRel": 0.8, "wRel": 0.3, "hRel": 0.1, "type": "signature"},
		{"pageIndex": 0, "xRel": 0.1, "yRel": 0.7, "wRel": 0.3, "hRel": 0.05, "type": "date"},
		{"pageIndex": 3, "xRel": 0.1, "yRel": 0.7, "wRel": 0.3, "hRel": 0.05, "type": "text", "value": "x"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fields.json"), []byte(fields), 0o644))
	return dir
}

// isolateEnv clears settings that would change command behavior.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AUDIT_DRIVER", "HASH_ALGORITHM", "JWT_SECRET", "DATABASE_URL", "MYSQL_DSN", "REDIS_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("AUDIT_DRIVER", "none")
	configPath = ""
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}
