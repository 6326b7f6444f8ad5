package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/pdf-signer/internal/pdf/pdftest"
	"github.com/jonathan/pdf-signer/internal/signing"
)

func TestSignCommand_JSON(t *testing.T) {
	isolateEnv(t)
	dir := fixtureDir(t)
	out := filepath.Join(dir, "nested", "out.pdf")

	stdout, err := execute(t, "sign",
		"--in", filepath.Join(dir, "in.pdf"),
		"--fields", filepath.Join(dir, "fields.json"),
		"--signature", filepath.Join(dir, "sig.png"),
		"--out", out,
		"--json=true",
	)
	require.NoError(t, err, stdout)

	var resp signOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	assert.Equal(t, out, resp.Out)
	assert.Equal(t, "sha256", resp.Algorithm)
	assert.Equal(t, 2, resp.PlacedFields)
	require.Len(t, resp.SkippedFields, 1)
	assert.Equal(t, signing.KindInvalidPage, resp.SkippedFields[0].Reason)

	signed, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(signed, []byte("%PDF-")))
	assert.NotEqual(t, pdftest.A4(1), signed)
}

func TestSignCommand_Printer(t *testing.T) {
	isolateEnv(t)
	t.Setenv("HASH_ALGORITHM", "blake2b-256")
	dir := fixtureDir(t)

	stdout, err := execute(t, "sign",
		"--in", filepath.Join(dir, "in.pdf"),
		"--fields", filepath.Join(dir, "fields.json"),
		"--signature", filepath.Join(dir, "sig.png"),
		"--out", filepath.Join(dir, "out.pdf"),
		"--json=false",
	)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "SIGNED DOCUMENT")
	assert.Contains(t, stdout, "blake2b-256")
}

func TestSignJob_Errors(t *testing.T) {
	isolateEnv(t)
	dir := fixtureDir(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	engine, err := buildEngine(cfg)
	require.NoError(t, err)

	t.Run("missing input", func(t *testing.T) {
		_, err := signJob{In: filepath.Join(dir, "none.pdf"), Out: filepath.Join(dir, "o.pdf"), Fields: filepath.Join(dir, "fields.json")}.run(engine)
		assert.Error(t, err)
	})

	t.Run("signature field without image", func(t *testing.T) {
		_, err := signJob{In: filepath.Join(dir, "in.pdf"), Out: filepath.Join(dir, "o.pdf"), Fields: filepath.Join(dir, "fields.json")}.run(engine)
		require.Error(t, err)
		assert.Equal(t, signing.KindInvalidSignatureImage, signing.KindOf(err))
		assert.NoFileExists(t, filepath.Join(dir, "o.pdf"))
	})

	t.Run("corrupt input", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.pdf")
		require.NoError(t, os.WriteFile(bad, []byte("%PDF-1.7\ngarbage"), 0o644))
		_, err := signJob{In: bad, Out: filepath.Join(dir, "o.pdf"), Fields: filepath.Join(dir, "fields.json"), Signature: filepath.Join(dir, "sig.png")}.run(engine)
		require.Error(t, err)
		assert.Equal(t, signing.KindCorruptDocument, signing.KindOf(err))
	})
}

func TestReadFields(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err := readFields(empty)
	assert.Error(t, err)

	object := filepath.Join(dir, "object.json")
	require.NoError(t, os.WriteFile(object, []byte(`{"type":"text"}`), 0o644))
	_, err = readFields(object)
	assert.Error(t, err)

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"type":"text"},{"type":"bogus"}]`), 0o644))
	raw, err := readFields(good)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestReadSignature(t *testing.T) {
	dir := fixtureDir(t)

	url, err := readSignature("")
	require.NoError(t, err)
	assert.Empty(t, url)

	url, err = readSignature(filepath.Join(dir, "sig.png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	text := filepath.Join(dir, "sig.txt")
	require.NoError(t, os.WriteFile(text, []byte(url+"\n"), 0o644))
	fromText, err := readSignature(text)
	require.NoError(t, err)
	assert.Equal(t, url, fromText)

	_, err = readSignature(filepath.Join(dir, "fields.json"))
	assert.Error(t, err)
}
