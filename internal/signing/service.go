package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/storage"
)

// ErrNotPDF is returned by Upload for bytes without a PDF header.
var ErrNotPDF = errors.New("file is not a PDF")

var pdfMagic = []byte("%PDF-")

// SignRequest identifies a stored document and the fields to burn into it.
type SignRequest struct {
	PdfID   string
	DataURL string
	Fields  []json.RawMessage
}

// SignedDocument is the stored output of SignStored.
type SignedDocument struct {
	ID       string
	SourceID string
	*Result
}

// Service runs the engine against stored documents.
type Service struct {
	Engine  *Engine
	Uploads storage.Store
	Signed  storage.Store
	Audit   audit.Sink
	Now     func() time.Time
}

// NewService wires an engine to its collaborators. A nil sink disables
// auditing.
func NewService(engine *Engine, uploads, signed storage.Store, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		Engine:  engine,
		Uploads: uploads,
		Signed:  signed,
		Audit:   sink,
		Now:     time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Upload stores a new source document and returns its id.
func (s *Service) Upload(ctx context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", ErrNotPDF
	}
	id, err := s.Uploads.Save(ctx, storage.NewUploadID(), data)
	if err != nil {
		return "", newError(KindStorageFailed, "failed to store upload", err)
	}
	log.Printf("[upload] stored %s (%d bytes)", id, len(data))
	return id, nil
}

// SignStored signs the uploaded document req.PdfID and stores the result.
func (s *Service) SignStored(ctx context.Context, req SignRequest) (*SignedDocument, error) {
	source, err := s.Uploads.Load(ctx, req.PdfID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
			return nil, newError(KindDocumentNotFound, "PDF not found", err)
		}
		return nil, newError(KindStorageFailed, "failed to load document", err)
	}

	result, err := s.Engine.SignRaw(source, req.DataURL, req.Fields)
	if err != nil {
		log.Printf("[sign] %s failed: %v", req.PdfID, err)
		return nil, err
	}

	signedID := storage.SignedID(req.PdfID, s.now().UnixMilli())
	if _, err := s.Signed.Save(ctx, signedID, result.Bytes); err != nil {
		return nil, newError(KindStorageFailed, "failed to store signed document", err)
	}
	log.Printf("[sign] %s -> %s placed=%d skipped=%d", req.PdfID, signedID, result.Placed, len(result.Skipped))

	s.recordAudit(ctx, req.PdfID, signedID, result)

	return &SignedDocument{ID: signedID, SourceID: req.PdfID, Result: result}, nil
}

// recordAudit never fails the request.
func (s *Service) recordAudit(ctx context.Context, pdfID, signedID string, result *Result) {
	if s.Audit == nil {
		return
	}
	rec := audit.NewRecord(pdfID, signedID, result.OriginalHash, result.SignedHash, map[string]any{
		"algorithm":     string(result.Algorithm),
		"placedFields":  result.Placed,
		"skippedFields": len(result.Skipped),
	})
	if err := s.Audit.Record(ctx, rec); err != nil {
		log.Printf("[audit] %s: %v", KindAuditWriteFailed, fmt.Errorf("failed to record %s: %w", signedID, err))
	}
}
