// Package audit records the hash pair produced by each signing operation.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps List results when the caller passes no limit.
const DefaultListLimit = 100

// ErrListUnsupported is returned by sinks that cannot read records back.
var ErrListUnsupported = errors.New("audit sink does not support listing")

// Record is one signing event.
type Record struct {
	ID           string         `json:"id"`
	PdfID        string         `json:"pdfId"`
	SignedPdfID  string         `json:"signedPdfId"`
	OriginalHash string         `json:"originalHash"`
	SignedHash   string         `json:"signedHash"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewRecord fills ID and CreatedAt.
func NewRecord(pdfID, signedPdfID, originalHash, signedHash string, metadata map[string]any) Record {
	return Record{
		ID:           uuid.New().String(),
		PdfID:        pdfID,
		SignedPdfID:  signedPdfID,
		OriginalHash: originalHash,
		SignedHash:   signedHash,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// Sink persists records.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// Lister reads records for a document, newest first.
type Lister interface {
	List(ctx context.Context, pdfID string, limit int) ([]Record, error)
}

// WriteError wraps a sink failure.
type WriteError struct {
	Sink  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit write to %s failed: %v", e.Sink, e.Cause)
}

func (e *WriteError) Unwrap() error {
	return e.Cause
}

// LogSink writes records to the standard logger.
type LogSink struct{}

func (LogSink) Record(_ context.Context, r Record) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return &WriteError{Sink: "log", Cause: err}
	}
	log.Printf("[audit] pdf=%s signed=%s original=%s result=%s meta=%s",
		r.PdfID, r.SignedPdfID, r.OriginalHash, r.SignedHash, meta)
	return nil
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) Record(context.Context, Record) error { return nil }

// MultiSink fans a record out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List uses the first sink that can list.
func (m MultiSink) List(ctx context.Context, pdfID string, limit int) ([]Record, error) {
	for _, s := range m {
		if l, ok := s.(Lister); ok {
			return l.List(ctx, pdfID, limit)
		}
	}
	return nil, ErrListUnsupported
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
