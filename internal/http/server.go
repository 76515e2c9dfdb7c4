// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"finledger/internal/cache"
	"finledger/internal/calendar"
	"finledger/internal/config"
	"finledger/internal/identity"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/query"
	"finledger/internal/remote"
)

type Server struct {
	http.Server

	manager  *ledger.Manager
	store    remote.Store
	resolver *identity.TokenResolver
	fallback identity.ID
	logger   *log.Logger

	rateLimiter *rateLimiter

	// Derived-view responses keyed by (owner, revision, params): a new
	// snapshot bumps the revision, so stale entries simply stop matching.
	queryCache    *cache.LRU[query.View]
	calendarCache *cache.LRU[map[string]calendar.DayFlags]

	stopSweeps   []func()
	shutdownOnce sync.Once
	started      time.Time
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(cfg *config.Config, store remote.Store, manager *ledger.Manager, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    ":" + cfg.Port,
			Handler: mux,
		},
		manager:       manager,
		store:         store,
		fallback:      identity.ID(cfg.DefaultIdentity),
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(),
		queryCache:    cache.NewLRU[query.View](cfg.CacheSize, cfg.CacheTTL),
		calendarCache: cache.NewLRU[map[string]calendar.DayFlags](cfg.CacheSize, cfg.CacheTTL),
		started:       time.Now(),
	}
	if cfg.JWTSecret != "" {
		s.resolver = identity.NewTokenResolver(cfg.JWTSecret)
	}

	s.stopSweeps = append(s.stopSweeps,
		s.queryCache.Sweep(10*time.Minute),
		s.calendarCache.Sweep(10*time.Minute),
	)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/ledger", s.api(s.handleLedger))
	mux.HandleFunc("GET /api/summary", s.api(s.handleSummary))
	mux.HandleFunc("GET /api/analytics", s.api(s.handleAnalytics))
	mux.HandleFunc("GET /api/transactions", s.api(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.api(s.handleAddTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.api(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.api(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/calendar", s.api(s.handleCalendar))

	return s
}

// api wraps a session handler with request id, rate limiting and identity
// resolution.
func (s *Server) api(next func(w http.ResponseWriter, r *http.Request, session *ledger.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		w.Header().Set("X-Request-ID", requestID)

		if !s.rateLimiter.allow(clientIP(r)) {
			s.logger.Warn("Rate limit exceeded", log.FieldRequestID, requestID, "client", clientIP(r))
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		id, err := s.resolveIdentity(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "no identity")
			return
		}

		session := s.manager.Session(id)
		if session == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}

		next(w, r, session)
	}
}

func (s *Server) resolveIdentity(r *http.Request) (identity.ID, error) {
	if s.resolver != nil {
		return s.resolver.Resolve(r)
	}
	return s.fallback, nil
}

// Shutdown stops the cache sweepers and the rate limiter before shutting the
// HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		for _, stop := range s.stopSweeps {
			stop()
		}
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimiter is a simple per-client in-memory limiter: up to 60 requests
// per minute, counters reset after a minute of silence.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
