package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/config"
	"github.com/jonathan/pdf-signer/internal/db"
	"github.com/jonathan/pdf-signer/internal/digest"
	"github.com/jonathan/pdf-signer/internal/render"
	"github.com/jonathan/pdf-signer/internal/sigimage"
	"github.com/jonathan/pdf-signer/internal/signing"
	"github.com/jonathan/pdf-signer/internal/storage"
)

// loadConfig reads --config, the environment and defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// buildEngine applies the render, hash and image settings to a new engine.
func buildEngine(cfg *config.Config) (*signing.Engine, error) {
	hasher, err := digest.New(cfg.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to create hasher: %w", err)
	}

	opts := render.DefaultOptions()
	opts.TextInset = cfg.Render.TextInset
	opts.FontSize = cfg.Render.FontSize
	opts.ClampUpscale = cfg.Render.ClampUpscale
	opts.PNGFallback = cfg.Render.PNGFallback

	engine := signing.NewEngine()
	engine.Hasher = hasher
	engine.Decoder = &sigimage.Decoder{
		MaxBytes:  cfg.Limits.SignatureMaxBytes,
		MaxPixels: cfg.Limits.SignatureMaxPixels,
	}
	engine.Load = signing.PDFLoaderWith(cfg.Limits.SignatureMaxPixels)
	engine.Options = opts
	return engine, nil
}

// openStores creates the uploads and signed directories.
func openStores(cfg *config.Config) (uploads, signed *storage.FileStore, err error) {
	uploads, err = storage.NewFileStore(cfg.Storage.UploadsDir)
	if err != nil {
		return nil, nil, err
	}
	signed, err = storage.NewFileStore(cfg.Storage.SignedDir)
	if err != nil {
		return nil, nil, err
	}
	return uploads, signed, nil
}

// auditBackend is the sink selected by AUDIT_DRIVER. Lister is nil when the
// driver cannot read records back.
type auditBackend struct {
	Sink   audit.Sink
	Lister audit.Lister
	close  func()
	// migrate applies the driver's DDL, when it has one.
	migrate func(ctx context.Context) error
}

func (b *auditBackend) Close() {
	if b.close != nil {
		b.close()
	}
}

// openAudit connects the configured audit driver.
func openAudit(ctx context.Context, cfg config.AuditConfig) (*auditBackend, error) {
	switch cfg.Driver {
	case "", "log":
		return &auditBackend{Sink: audit.LogSink{}}, nil
	case "none":
		return &auditBackend{Sink: audit.NopSink{}}, nil
	case "postgres":
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &auditBackend{
			Sink:    audit.MultiSink{audit.LogSink{}, database},
			Lister:  database,
			close:   database.Close,
			migrate: database.Migrate,
		}, nil
	case "mysql":
		sink, err := audit.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return &auditBackend{
			Sink:    audit.MultiSink{audit.LogSink{}, sink},
			Lister:  sink,
			close:   func() { _ = sink.Close() },
			migrate: sink.Migrate,
		}, nil
	case "redis":
		sink, err := audit.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return &auditBackend{
			Sink:   audit.MultiSink{audit.LogSink{}, sink},
			Lister: sink,
			close:  func() { _ = sink.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// newService wires the engine, stores and audit sink from cfg. The caller
// closes the returned backend.
func newService(ctx context.Context, cfg *config.Config) (*signing.Service, *auditBackend, error) {
	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	uploads, signed, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}
	backend, err := openAudit(ctx, cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit driver %s: %w", cfg.Audit.Driver, err)
	}
	log.Printf("[server] audit driver: %s", cfg.Audit.Driver)
	return signing.NewService(engine, uploads, signed, backend.Sink), backend, nil
}
