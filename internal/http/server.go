// Package http serves predictions and stored prediction documents as JSON.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"budgetsense/internal/cache"
	"budgetsense/internal/core"
	"budgetsense/internal/log"
	"budgetsense/internal/middleware/ratelimit"
	"budgetsense/internal/middleware/security"
	"budgetsense/internal/middleware/trace"
	"budgetsense/internal/services"
	"budgetsense/internal/store"
)

const (
	// DefaultMaxBodyBytes caps the /predict request body.
	DefaultMaxBodyBytes = 1 << 20

	snapshotKey = "all"
)

// Predictor runs the prediction pipeline.
type Predictor interface {
	PredictOne(ctx context.Context, raw map[string]any) (core.Prediction, error)
	PredictBatch(ctx context.Context, items []map[string]any) []services.Result
}

// Probe is one readiness dependency check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config tunes the server; zero values select defaults.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	SnapshotCacheTTL   time.Duration
	MaxBodyBytes       int64
}

type Server struct {
	http.Server
	predictor Predictor
	reader    store.PredictionReader
	probes    []Probe
	logger    *log.Logger

	maxBodyBytes int64

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	snapshots    *cache.LRUCache[map[string]core.Prediction]
	cacheManager *cache.Manager

	// snapshotGen counts invalidations; a read only caches its result if
	// no save happened while it ran.
	snapshotMu  sync.Mutex
	snapshotGen uint64

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. reader may be nil when no store is
// configured; /get-all-data then answers 500.
func NewServer(cfg Config, predictor Predictor, reader store.PredictionReader, probes ...Probe) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.SnapshotCacheTTL <= 0 {
		cfg.SnapshotCacheTTL = 30 * time.Second
	}

	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})

	detector := security.NewDetector()
	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		predictor:        predictor,
		reader:           reader,
		probes:           probes,
		logger:           logger,
		maxBodyBytes:     cfg.MaxBodyBytes,
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		snapshots:        cache.NewLRUCache[map[string]core.Prediction](1, cfg.SnapshotCacheTTL),
		cacheManager:     cache.NewManager(),
		appMetrics:       newAppMetrics(),
	}

	s.cacheManager.Register(s.snapshots)
	s.cacheManager.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/get-all-data", s.handleGetAll)
	mux.HandleFunc("/predictions", s.handleGetAll)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, retry later").Write(w)
	})

	// Outermost first: trace, security, rate limit, request-scoped logger.
	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = limit(handler)
	handler = detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateSnapshot drops the cached /get-all-data body after a write.
func (s *Server) invalidateSnapshot() {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	s.snapshotGen++
	s.snapshots.Delete(snapshotKey)
}

func (s *Server) snapshotGeneration() uint64 {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.snapshotGen
}

// cacheSnapshot stores docs unless a save invalidated the cache after gen
// was taken.
func (s *Server) cacheSnapshot(gen uint64, docs map[string]core.Prediction) bool {
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	if gen != s.snapshotGen {
		return false
	}
	s.snapshots.Set(snapshotKey, docs)
	return true
}
