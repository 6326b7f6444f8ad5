package db

import (
	"testing"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DB must be usable wherever an audit sink or lister is expected.
var (
	_ audit.Sink   = (*DB)(nil)
	_ audit.Lister = (*DB)(nil)
)

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS signature_audits")
	assert.Contains(t, Schema, "(pdf_id, created_at DESC)")
}

func TestMarshalMetadata(t *testing.T) {
	b, err := marshalMetadata(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = marshalMetadata(map[string]any{"placedFields": 2, "algorithm": "sha256"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"placedFields": 2, "algorithm": "sha256"}`, string(b))

	_, err = marshalMetadata(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
