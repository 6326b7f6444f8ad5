package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLSchema creates the audit table.
const MySQLSchema = `CREATE TABLE IF NOT EXISTS signature_audits (
	id             CHAR(36)     NOT NULL PRIMARY KEY,
	pdf_id         VARCHAR(255) NOT NULL,
	signed_pdf_id  VARCHAR(255) NOT NULL,
	original_hash  VARCHAR(128) NOT NULL,
	signed_hash    VARCHAR(128) NOT NULL,
	metadata       JSON         NULL,
	created_at     DATETIME(3)  NOT NULL,
	INDEX idx_signature_audits_pdf (pdf_id, created_at DESC)
)`

// MySQLSink stores records through database/sql.
type MySQLSink struct {
	db *sql.DB
}

// OpenMySQL connects with dsn and verifies the connection. Time columns are
// always parsed into time.Time.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLSink, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}
	log.Println("[audit] mysql sink initialized")
	return &MySQLSink{db: db}, nil
}

// NewMySQLSink wraps an existing handle.
func NewMySQLSink(db *sql.DB) *MySQLSink {
	return &MySQLSink{db: db}
}

// Migrate creates the audit table when missing.
func (s *MySQLSink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, MySQLSchema); err != nil {
		return fmt.Errorf("failed to migrate mysql audit table: %w", err)
	}
	return nil
}

func (s *MySQLSink) Record(ctx context.Context, r Record) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return &WriteError{Sink: "mysql", Cause: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO signature_audits (id, pdf_id, signed_pdf_id, original_hash, signed_hash, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PdfID, r.SignedPdfID, r.OriginalHash, r.SignedHash, meta, r.CreatedAt,
	)
	if err != nil {
		return &WriteError{Sink: "mysql", Cause: err}
	}
	return nil
}

func (s *MySQLSink) List(ctx context.Context, pdfID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pdf_id, signed_pdf_id, original_hash, signed_hash, metadata, created_at
		 FROM signature_audits WHERE pdf_id = ? ORDER BY created_at DESC LIMIT ?`,
		pdfID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var meta []byte
		if err := rows.Scan(&r.ID, &r.PdfID, &r.SignedPdfID, &r.OriginalHash, &r.SignedHash, &meta, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Metadata)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return records, nil
}

// Close releases the connection pool.
func (s *MySQLSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
