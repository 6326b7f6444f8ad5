package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/digest"
	"github.com/jonathan/pdf-signer/internal/signing"
)

func TestPrintSignResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &signing.Result{
		OriginalHash: strings.Repeat("a", 64),
		SignedHash:   strings.Repeat("b", 64),
		Algorithm:    digest.SHA256,
		Placed:       3,
		Skipped: []signing.Diagnostic{
			{Index: 1, Reason: signing.KindInvalidPage, Message: "page 4 out of range"},
			{Index: -1, Reason: signing.KindInvalidSignatureImage},
		},
	}

	p.PrintSignResult("out.pdf", result)
	output := buf.String()

	assert.Contains(t, output, "SIGNED DOCUMENT")
	assert.Contains(t, output, "out.pdf")
	assert.Contains(t, output, "sha256")
	assert.Contains(t, output, "aaaaaaaaaaaaaaaa...")
	assert.Contains(t, output, "Placed:    3")
	assert.Contains(t, output, "#1 invalid_page")
	assert.Contains(t, output, "asset invalid_signature_image")
}

func TestPrintSignResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSignResult("x.pdf", nil)
	assert.Empty(t, buf.String())
}

func TestPrintBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBatchSummary([]JobOutcome{
		{Name: "a", Out: "a-signed.pdf", Placed: 2},
		{Name: "b", Err: errors.New("corrupt")},
	})
	output := buf.String()

	assert.Contains(t, output, "BATCH SUMMARY")
	assert.Contains(t, output, "ok: 1  failed: 1")
	assert.Contains(t, output, "✗ b")
	assert.Contains(t, output, "corrupt")
	assert.Contains(t, output, "✓ a-signed.pdf placed=2 skipped=0")
}

func TestPrintDigest(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintDigest("abc", "doc.pdf")
	assert.Equal(t, "abc  doc.pdf\n", buf.String())
}

func TestPrintAudits(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintAudits("a.pdf", nil)
	assert.Contains(t, buf.String(), "NO AUDIT RECORDS FOR a.pdf")

	buf.Reset()
	p.PrintAudits("a.pdf", []audit.Record{{
		SignedPdfID:  "a-signed-1.pdf",
		OriginalHash: "1111",
		SignedHash:   "2222",
		CreatedAt:    time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC),
	}})
	output := buf.String()
	assert.Contains(t, output, "AUDIT TRAIL a.pdf")
	assert.Contains(t, output, "2024-03-07 10:00:00  a-signed-1.pdf")
	assert.Contains(t, output, "1111 -> 2222")
}

func TestPrintBox_LongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSignResult(strings.Repeat("very-long-output-path/", 10)+"x.pdf", &signing.Result{})
	output := buf.String()

	assert.True(t, strings.Contains(output, "┌"))
	assert.True(t, strings.Contains(output, "└"))
	assert.True(t, strings.Contains(output, "..."))
}
