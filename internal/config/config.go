// Package config provides configuration loading and validation for the
// server and the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Values come from defaults, then
// an optional YAML file, then environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Limits    LimitsConfig    `yaml:"limits"`
	Render    RenderConfig    `yaml:"render"`
	Hash      string          `yaml:"hash_algorithm" validate:"oneof=sha256 sha3-256 blake2b-256"`
	Audit     AuditConfig     `yaml:"audit"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port          int           `yaml:"port" validate:"min=1,max=65535"`
	ClientOrigins []string      `yaml:"client_origins" validate:"dive,url"`
	ReadTimeout   time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout  time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" validate:"gte=0"`
}

// StorageConfig names the document directories.
type StorageConfig struct {
	UploadsDir string `yaml:"uploads_dir" validate:"required"`
	SignedDir  string `yaml:"signed_dir" validate:"required"`
}

// LimitsConfig bounds request sizes in bytes and signature rasters in pixels.
type LimitsConfig struct {
	MaxUploadBytes     int64 `yaml:"max_upload_bytes" validate:"min=1"`
	MaxJSONBytes       int64 `yaml:"max_json_bytes" validate:"min=1"`
	SignatureMaxBytes  int   `yaml:"signature_max_bytes" validate:"min=1"`
	SignatureMaxPixels int   `yaml:"signature_max_pixels" validate:"min=1"`
}

// RenderConfig tunes field drawing.
type RenderConfig struct {
	TextInset    float64 `yaml:"text_inset" validate:"gte=0"`
	FontSize     float64 `yaml:"font_size" validate:"gt=0"`
	ClampUpscale bool    `yaml:"clamp_upscale"`
	PNGFallback  bool    `yaml:"png_fallback"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Driver      string `yaml:"driver" validate:"oneof=log postgres mysql redis none"`
	DatabaseURL string `yaml:"database_url" validate:"required_if=Driver postgres"`
	MySQLDSN    string `yaml:"mysql_dsn" validate:"required_if=Driver mysql"`
	RedisURL    string `yaml:"redis_url" validate:"required_if=Driver redis"`
}

// AuthConfig enables bearer auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	JWTExpirationHours int    `yaml:"jwt_expiration_hours" validate:"gte=0"`
}

// RateLimitConfig feeds the token bucket limiter.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DefaultLimit    int           `yaml:"default_limit" validate:"gte=0"`
	DefaultWindow   time.Duration `yaml:"default_window" validate:"required_with=DefaultLimit"`
	UploadLimit     int           `yaml:"upload_limit" validate:"gte=0"`
	SignLimit       int           `yaml:"sign_limit" validate:"gte=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
	Whitelist       []string      `yaml:"whitelist" validate:"dive,ip"`
	Blacklist       []string      `yaml:"blacklist" validate:"dive,ip"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          5000,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			ShutdownGrace: 30 * time.Second,
		},
		Storage: StorageConfig{
			UploadsDir: "uploads",
			SignedDir:  "signed",
		},
		Limits: LimitsConfig{
			MaxUploadBytes:     20 << 20,
			MaxJSONBytes:       20 << 20,
			SignatureMaxBytes:  2 << 20,
			SignatureMaxPixels: 4096 * 4096,
		},
		Render: RenderConfig{
			TextInset:    4,
			FontSize:     10,
			ClampUpscale: true,
			PNGFallback:  true,
		},
		Hash: "sha256",
		Audit: AuditConfig{
			Driver: "log",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			DefaultLimit:    1000,
			DefaultWindow:   time.Minute,
			UploadLimit:     30,
			SignLimit:       60,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path when
// path is non-empty, and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.ClientOrigins = getEnvList("CLIENT_ORIGIN", c.Server.ClientOrigins)

	c.Storage.UploadsDir = getEnvString("UPLOADS_DIR", c.Storage.UploadsDir)
	c.Storage.SignedDir = getEnvString("SIGNED_DIR", c.Storage.SignedDir)

	c.Limits.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", c.Limits.MaxUploadBytes)
	c.Limits.MaxJSONBytes = getEnvInt64("MAX_JSON_BYTES", c.Limits.MaxJSONBytes)
	c.Limits.SignatureMaxBytes = getEnvInt("SIGNATURE_MAX_BYTES", c.Limits.SignatureMaxBytes)
	c.Limits.SignatureMaxPixels = getEnvInt("SIGNATURE_MAX_PIXELS", c.Limits.SignatureMaxPixels)

	c.Render.TextInset = getEnvFloat("RENDER_TEXT_INSET", c.Render.TextInset)
	c.Render.FontSize = getEnvFloat("RENDER_FONT_SIZE", c.Render.FontSize)
	c.Render.ClampUpscale = getEnvBool("RENDER_CLAMP_UPSCALE", c.Render.ClampUpscale)
	c.Render.PNGFallback = getEnvBool("RENDER_PNG_FALLBACK", c.Render.PNGFallback)

	c.Hash = strings.ToLower(getEnvString("HASH_ALGORITHM", c.Hash))

	c.Audit.Driver = strings.ToLower(getEnvString("AUDIT_DRIVER", c.Audit.Driver))
	c.Audit.DatabaseURL = getEnvString("DATABASE_URL", c.Audit.DatabaseURL)
	c.Audit.MySQLDSN = getEnvString("MYSQL_DSN", c.Audit.MySQLDSN)
	c.Audit.RedisURL = getEnvString("REDIS_URL", c.Audit.RedisURL)

	c.Auth.JWTSecret = getEnvString("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTExpirationHours = getEnvInt("JWT_EXPIRATION_HOURS", c.Auth.JWTExpirationHours)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.DefaultLimit = getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", c.RateLimit.DefaultLimit)
	c.RateLimit.DefaultWindow = getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", c.RateLimit.DefaultWindow)
	c.RateLimit.UploadLimit = getEnvInt("RATE_LIMIT_UPLOAD_LIMIT", c.RateLimit.UploadLimit)
	c.RateLimit.SignLimit = getEnvInt("RATE_LIMIT_SIGN_LIMIT", c.RateLimit.SignLimit)
	c.RateLimit.CleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", c.RateLimit.CleanupInterval)
	c.RateLimit.Whitelist = getEnvList("RATE_LIMIT_WHITELIST", c.RateLimit.Whitelist)
	c.RateLimit.Blacklist = getEnvList("RATE_LIMIT_BLACKLIST", c.RateLimit.Blacklist)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if _, jwtErr := c.Auth.JWT(); jwtErr != nil {
			return fmt.Errorf("config error: %w", jwtErr)
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config error: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("'%s' failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}
