package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"budgetsense/internal/core"
	"budgetsense/internal/log"
)

// IndexMessage is returned by GET /.
const IndexMessage = "Ministry Budget Allocation Predictor is running."

type appMetrics struct {
	uptime time.Time

	predictions      atomic.Int64
	batchRequests    atomic.Int64
	malformed        atomic.Int64
	modelUnavailable atomic.Int64
	failures         atomic.Int64
	snapshotReads    atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

func (m *appMetrics) recordError(err error) {
	switch statusForError(err) {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		m.malformed.Add(1)
	case http.StatusServiceUnavailable:
		m.modelUnavailable.Add(1)
	default:
		m.failures.Add(1)
	}
}

// batchItemError takes the place of a failed record in a batch response.
type batchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("not found").Write(w)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"message": IndexMessage}).Write(w)
}

// handlePredict serves one JSON object or an array of them. Each array
// element succeeds or fails on its own; the batch answers 200 unless every
// element failed, in which case the first failure decides the status.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}
	ctx := r.Context()

	body, err := ParsePredictBody(w, r, s.maxBodyBytes)
	if err != nil {
		s.writeError(ctx, w, err, log.OpParse)
		return
	}

	if !body.Batch {
		p, err := s.predictor.PredictOne(ctx, body.Items[0])
		if err != nil {
			s.writeError(ctx, w, err, log.OpPredict)
			return
		}
		s.recordPrediction(p)
		NewJSONResponse().Body(p).Write(w)
		return
	}

	if len(body.Items) == 0 {
		s.appMetrics.malformed.Add(1)
		BadRequestError("malformed request: batch must contain at least one record").Write(w)
		return
	}
	s.appMetrics.batchRequests.Add(1)

	results := s.predictor.PredictBatch(ctx, body.Items)
	out := make([]any, len(results))
	var firstErr error
	served := 0
	for i, res := range results {
		if res.Err != nil {
			s.appMetrics.recordError(res.Err)
			out[i] = batchItemError{Index: i, Error: publicMessage(res.Err)}
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		s.recordPrediction(*res.Prediction)
		out[i] = res.Prediction
		served++
	}

	status := http.StatusOK
	if served == 0 {
		status = statusForError(firstErr)
	}

	s.logger.InfoContext(ctx, "Batch prediction served",
		log.FieldBatchSize, len(results),
		"served", served,
		log.FieldOperation, log.OpPredict)

	NewJSONResponse().Status(status).Body(out).Write(w)
}

func (s *Server) recordPrediction(p core.Prediction) {
	s.appMetrics.predictions.Add(1)
	if p.ID != "" {
		s.invalidateSnapshot()
	}
}

// handleGetAll returns every stored prediction document keyed by ID.
func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	ctx := r.Context()

	docs, err := s.snapshot(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read predictions",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldOperation, log.OpList)
		InternalServerError("failed to read stored predictions").Write(w)
		return
	}

	s.appMetrics.snapshotReads.Add(1)
	NewJSONResponse().Body(docs).Write(w)
}

func (s *Server) snapshot(ctx context.Context) (map[string]core.Prediction, error) {
	if docs, ok := s.snapshots.Get(snapshotKey); ok {
		return docs, nil
	}
	if s.reader == nil {
		return nil, fmt.Errorf("no prediction store configured")
	}

	gen := s.snapshotGeneration()
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	docs, err := s.reader.All(cctx)
	if err != nil {
		return nil, fmt.Errorf("read all predictions: %w", err)
	}
	if docs == nil {
		docs = map[string]core.Prediction{}
	}

	if s.cacheSnapshot(gen, docs) {
		s.logger.DebugContext(ctx, "Prediction snapshot cached", log.FieldRows, len(docs))
	}
	return docs, nil
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	s.appMetrics.recordError(err)
	status := statusForError(err)

	errorType := log.ErrorTypeValidation
	switch status {
	case http.StatusServiceUnavailable:
		errorType = log.ErrorTypeUnavailable
	case http.StatusInternalServerError:
		errorType = log.ErrorTypeInternal
	}

	logFn := s.logger.WarnContext
	if status >= 500 {
		logFn = s.logger.ErrorContext
	}
	logFn(ctx, "Prediction request failed",
		log.FieldError, err,
		log.FieldErrorType, errorType,
		log.FieldStatusCode, status,
		log.FieldOperation, op)

	ErrorResponse(status, publicMessage(err)).Write(w)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every probe and reports 503 if any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any, len(s.probes)+1)

	for _, p := range s.probes {
		if err := p.Check(ctx); err != nil {
			checks[p.Name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[p.Name] = "ok"
	}

	checks["cache"] = map[string]any{
		"entries": s.snapshots.Size(),
		"status":  "ok",
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	cacheStats := s.snapshots.Stats()
	m := s.appMetrics

	type metric struct {
		name, help, kind string
		value            any
	}
	out := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_requests_in_flight", "Requests currently being served", "gauge", traceMetrics.InFlight},
		{"http_client_errors_total", "Responses with a 4xx status", "counter", traceMetrics.ClientErrors},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"predictions_total", "Predictions served", "counter", m.predictions.Load()},
		{"prediction_batches_total", "Batch prediction requests", "counter", m.batchRequests.Load()},
		{"prediction_malformed_total", "Rejected malformed records", "counter", m.malformed.Load()},
		{"prediction_model_unavailable_total", "Records failed because the model was unavailable", "counter", m.modelUnavailable.Load()},
		{"prediction_failures_total", "Records failed for other reasons", "counter", m.failures.Load()},
		{"snapshot_reads_total", "Stored prediction listings served", "counter", m.snapshotReads.Load()},
		{"cache_hits_total", "Snapshot cache hits", "counter", cacheStats.Hits},
		{"cache_misses_total", "Snapshot cache misses", "counter", cacheStats.Misses},
		{"cache_entries", "Current snapshot cache entries", "gauge", s.snapshots.Size()},
		{"rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Requests matching probe patterns", "counter", securityMetrics.SuspiciousRequests},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(m.uptime).Seconds())},
	}

	w.WriteHeader(http.StatusOK)
	for _, mt := range out {
		fmt.Fprintf(w, "# HELP %s %s\n", mt.name, mt.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", mt.name, mt.kind)
		fmt.Fprintf(w, "%s %v\n\n", mt.name, mt.value)
	}
}
