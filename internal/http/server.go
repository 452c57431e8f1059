// Package http is the JSON API over the conversion and reconciliation
// services: entity CRUD, contributions, summaries, invitations and the
// live-rates widget data.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/invites"
	"fintrack/internal/ledger"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

type Server struct {
	http.Server

	entities      *services.EntityService
	contributions *services.ContributionService
	ledger        *ledger.Service
	invites       *invites.Service
	rates         *rates.Cached
	inviteTTL     time.Duration

	rateLimiter *rateLimiter

	// summaries are cheap to compute but hot on dashboards; rate widget
	// responses save an upstream fetch per client.
	summaryCache *cache.LRU[summaryResponse]
	ratesCache   *cache.LRU[ratesResponse]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

type Deps struct {
	Entities      *services.EntityService
	Contributions *services.ContributionService
	Ledger        *ledger.Service
	Invites       *invites.Service
	Rates         *rates.Cached
	InviteTTL     time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		entities:         deps.Entities,
		contributions:    deps.Contributions,
		ledger:           deps.Ledger,
		invites:          deps.Invites,
		rates:            deps.Rates,
		inviteTTL:        deps.InviteTTL,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRU[summaryResponse](200, time.Minute),
		ratesCache:       cache.NewLRU[ratesResponse](10, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /entities", s.withCommon(s.handleCreateEntity))
	mux.HandleFunc("GET /entities", s.withCommon(s.handleListEntities))
	mux.HandleFunc("GET /entities/{id}", s.withCommon(s.handleGetEntity))
	mux.HandleFunc("DELETE /entities/{id}", s.withCommon(s.handleDeleteEntity))
	mux.HandleFunc("PATCH /entities/{id}/target", s.withCommon(s.handleUpdateTarget))

	mux.HandleFunc("POST /entities/{id}/contributions", s.withCommon(s.handleContribute))
	mux.HandleFunc("GET /entities/{id}/contributions", s.withCommon(s.handleListContributions))
	mux.HandleFunc("POST /entities/{id}/transfer-leftover", s.withCommon(s.handleTransferLeftover))
	mux.HandleFunc("GET /entities/{id}/summary", s.withCommon(s.handleSummary))
	mux.HandleFunc("GET /entities/{id}/breakdown", s.withCommon(s.handleBreakdown))

	mux.HandleFunc("POST /invitations", s.withCommon(s.handleCreateInvitation))
	mux.HandleFunc("POST /invitations/join", s.withCommon(s.handleJoin))

	mux.HandleFunc("GET /rates", s.withCommon(s.handleRates))

	return s
}

// withCommon adds security headers, request ids, rate limiting and request
// logging.
func (s *Server) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Mutating requests are rate limited per client.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.summaryCache.CleanExpired() + s.ratesCache.CleanExpired()
			if removed > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", removed)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
