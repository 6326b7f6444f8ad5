package signing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/pdf/pdftest"
	"github.com/jonathan/pdf-signer/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	records []audit.Record
	err     error
}

func (s *recordingSink) Record(_ context.Context, r audit.Record) error {
	s.records = append(s.records, r)
	return s.err
}

func newTestService(t *testing.T, sink audit.Sink) *Service {
	t.Helper()
	uploads, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	signed, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	svc := NewService(NewEngine(), uploads, signed, sink)
	svc.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestService_UploadRejectsNonPDF(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Upload(context.Background(), []byte("GIF89a"))
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestService_SignStored(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, sink)
	ctx := context.Background()

	id, err := svc.Upload(ctx, pdftest.A4(1))
	require.NoError(t, err)
	assert.True(t, storage.ValidID(id))

	doc, err := svc.SignStored(ctx, SignRequest{
		PdfID: id,
		Fields: rawFields(t, `[
			{"pageIndex": 0, "xRel": 0.1, "yRel": 0.8, "wRel": 0.4, "hRel": 0.05, "type": "text", "value": "Jane Doe"},
			{"pageIndex": 0, "xRel": 0.1, "yRel": 0.8, "wRel": -1, "hRel": 0.05, "type": "text", "value": "x"}
		]`),
	})
	require.NoError(t, err)
	assert.Equal(t, storage.SignedID(id, 1700000000000), doc.ID)
	assert.Equal(t, id, doc.SourceID)
	assert.Equal(t, 1, doc.Placed)
	assert.Len(t, doc.Skipped, 1)

	stored, err := svc.Signed.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Bytes, stored)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, id, rec.PdfID)
	assert.Equal(t, doc.ID, rec.SignedPdfID)
	assert.Equal(t, doc.OriginalHash, rec.OriginalHash)
	assert.Equal(t, doc.SignedHash, rec.SignedHash)
	assert.Equal(t, "sha256", rec.Metadata["algorithm"])
	assert.Equal(t, 1, rec.Metadata["placedFields"])
}

func TestService_AuditFailureDoesNotFailSigning(t *testing.T) {
	sink := &recordingSink{err: errors.New("connection refused")}
	svc := newTestService(t, sink)
	ctx := context.Background()

	id, err := svc.Upload(ctx, pdftest.A4(1))
	require.NoError(t, err)

	doc, err := svc.SignStored(ctx, SignRequest{PdfID: id, Fields: rawFields(t, `[
		{"xRel": 0.1, "yRel": 0.1, "wRel": 0.2, "hRel": 0.05, "type": "date"}
	]`)})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.SignedHash)
	assert.Len(t, sink.records, 1)
}

func TestService_SignStoredErrors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.SignStored(ctx, SignRequest{PdfID: "missing.pdf"})
	assert.Equal(t, KindDocumentNotFound, KindOf(err))

	_, err = svc.SignStored(ctx, SignRequest{PdfID: "../../etc/passwd.pdf"})
	assert.Equal(t, KindDocumentNotFound, KindOf(err))

	id, err := svc.Upload(ctx, []byte("%PDF-1.4 truncated garbage"))
	require.NoError(t, err)
	_, err = svc.SignStored(ctx, SignRequest{PdfID: id})
	assert.Equal(t, KindCorruptDocument, KindOf(err))
}
