// Package db provides PostgreSQL storage for signature audit records.
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/pdf-signer/internal/audit"
)

// Schema creates the audit table and its lookup index.
const Schema = `
CREATE TABLE IF NOT EXISTS signature_audits (
	id             UUID PRIMARY KEY,
	pdf_id         TEXT NOT NULL,
	signed_pdf_id  TEXT NOT NULL,
	original_hash  TEXT NOT NULL,
	signed_hash    TEXT NOT NULL,
	metadata       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_signature_audits_pdf_created
	ON signature_audits (pdf_id, created_at DESC);
`

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate applies Schema.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate signature_audits: %w", err)
	}
	return nil
}

// Record inserts one audit record.
func (db *DB) Record(ctx context.Context, r audit.Record) error {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("failed to parse audit id %q: %w", r.ID, err)
	}
	meta, err := marshalMetadata(r.Metadata)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO signature_audits (id, pdf_id, signed_pdf_id, original_hash, signed_hash, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, r.PdfID, r.SignedPdfID, r.OriginalHash, r.SignedHash, meta, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// List returns the newest records for pdfID, up to limit.
func (db *DB) List(ctx context.Context, pdfID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = audit.DefaultListLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, pdf_id, signed_pdf_id, original_hash, signed_hash, metadata, created_at
		 FROM signature_audits
		 WHERE pdf_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		pdfID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}
	return records, nil
}

// GetAudit retrieves one record by id. A missing record returns nil.
func (db *DB) GetAudit(ctx context.Context, id uuid.UUID) (*audit.Record, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, pdf_id, signed_pdf_id, original_hash, signed_hash, metadata, created_at
		 FROM signature_audits WHERE id = $1`,
		id,
	)
	r, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanRecord(row pgx.Row) (*audit.Record, error) {
	var (
		r    audit.Record
		id   uuid.UUID
		meta []byte
	)
	err := row.Scan(&id, &r.PdfID, &r.SignedPdfID, &r.OriginalHash, &r.SignedHash, &meta, &r.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}
	r.ID = id.String()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}
	}
	return &r, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit metadata: %w", err)
	}
	return b, nil
}
