// Package server provides the HTTP API for uploading and signing documents.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/config"
	"github.com/jonathan/pdf-signer/internal/server/middleware"
	"github.com/jonathan/pdf-signer/internal/server/ratelimit"
	"github.com/jonathan/pdf-signer/internal/signing"
	"github.com/jonathan/pdf-signer/internal/storage"
)

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	service        *signing.Service
	audits         audit.Lister
	rateLimiter    *ratelimit.Limiter
	jwtService     *JWTService
	allowedOrigins map[string]bool
	maxUploadBytes int64
	maxJSONBytes   int64
	shutdownGrace  time.Duration
}

// Config holds server configuration
type Config struct {
	Port           int
	ClientOrigins  []string
	MaxUploadBytes int64
	MaxJSONBytes   int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ShutdownGrace  time.Duration
	RateLimit      *ratelimit.Config
	// JWT enables bearer auth on /api routes when non-nil.
	JWT *config.JWTConfig
}

// ConfigFrom maps loaded settings onto the server configuration.
func ConfigFrom(cfg *config.Config) (Config, error) {
	jwtCfg, err := cfg.Auth.JWT()
	if err != nil {
		return Config{}, fmt.Errorf("failed to create JWT config: %w", err)
	}
	return Config{
		Port:           cfg.Server.Port,
		ClientOrigins:  cfg.Server.ClientOrigins,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		MaxJSONBytes:   cfg.Limits.MaxJSONBytes,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ShutdownGrace:  cfg.Server.ShutdownGrace,
		RateLimit:      ratelimit.FromSettings(cfg.RateLimit),
		JWT:            jwtCfg,
	}, nil
}

// New creates a new server instance. lister may be nil, in which case the
// audit listing endpoint answers 501.
func New(cfg Config, service *signing.Service, lister audit.Lister) *Server {
	s := &Server{
		service:        service,
		audits:         lister,
		allowedOrigins: make(map[string]bool, len(cfg.ClientOrigins)),
		maxUploadBytes: cfg.MaxUploadBytes,
		maxJSONBytes:   cfg.MaxJSONBytes,
		shutdownGrace:  cfg.ShutdownGrace,
	}
	for _, origin := range cfg.ClientOrigins {
		s.allowedOrigins[origin] = true
	}
	log.Printf("[server] allowed origins: %v", cfg.ClientOrigins)

	s.rateLimiter = ratelimit.NewLimiter(cfg.RateLimit)

	protect := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
		auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
		protect = func(h http.HandlerFunc) http.Handler { return auth(h) }
		log.Printf("[server] bearer auth enabled for /api routes")
	}

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/upload-pdf", protect(s.handleUpload))
	mux.Handle("POST /api/sign-pdf", protect(s.handleSign))
	mux.Handle("GET /api/audits/{pdfId}", protect(s.handleListAudits))

	// Stored documents
	mux.HandleFunc("GET /pdf/{id}", s.handleDocument(service.Uploads))
	mux.HandleFunc("GET /signed/{id}", s.handleDocument(service.Signed))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("[server] listening on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("[server] shutting down")

		grace := s.shutdownGrace
		if grace <= 0 {
			grace = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()
	log.Println("[server] stopped")
	return err
}

// withCORS enforces the origin allowlist. Requests without an Origin header
// pass; an empty allowlist admits every origin.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.allowedOrigins) > 0 && !s.allowedOrigins[origin] {
				log.Printf("[server] CORS rejected origin %q", origin)
				s.jsonResponse(w, http.StatusForbidden, map[string]string{"error": "Not allowed by CORS"})
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[server] %s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// handleRoot returns the service banner
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Signature Engine API Running"})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message, reason string) {
	s.jsonResponse(w, status, map[string]string{"error": message, "reason": reason})
}

// failure writes err using its mapped status and reason. Server faults are
// logged and reported generically.
func (s *Server) failure(w http.ResponseWriter, err error, fallback string) {
	status := HTTPStatus(err)
	message := publicMessage(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] %s: %v", fallback, err)
		message = fallback
	}
	s.errorResponse(w, status, message, reasonFor(err))
}

// publicMessage prefers the top-level message of typed errors over the
// full wrapped chain.
func publicMessage(err error) string {
	var (
		signErr       *signing.Error
		validationErr *ErrValidation
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &signErr) && signErr.Kind == signing.KindDocumentNotFound:
		return "Original PDF not found"
	case errors.As(err, &signErr) && signErr.Cause != nil:
		return fmt.Sprintf("%s: %v", signErr.Message, signErr.Cause)
	case errors.As(err, &signErr):
		return signErr.Message
	case errors.Is(err, storage.ErrNotFound):
		return "Not found"
	}
	return err.Error()
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "Rate limit exceeded. Please try again later.",
		"reason":    "rate_limit_exceeded",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] limit exceeded: limit=%d remaining=%d retry_after=%v",
		info.Limit, info.Remaining, info.RetryAfter)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
