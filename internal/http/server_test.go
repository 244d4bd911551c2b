package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"budgetsense/internal/core"
	"budgetsense/internal/model"
	"budgetsense/internal/reasoner"
	"budgetsense/internal/services"
	"budgetsense/internal/store/memory"
)

type fakeOracle struct {
	value float64
	err   error
}

func (f fakeOracle) Predict(context.Context, core.FeatureRecord) (float64, error) {
	return f.value, f.err
}

type failingReader struct{}

func (failingReader) All(context.Context) (map[string]core.Prediction, error) {
	return nil, errors.New("connection refused")
}

const scenario = `{"Ministry":"Health","Priority_Level":"High","Projects_Count":50,"Region_Impact":"Urban",
	"Dev_Index":0.2,"Prev_Budget (Cr)":900,"GDP_Impact (%)":0.5,"Expected_Budget":1000}`

func newTestServer(t *testing.T, oracle model.Oracle, cfg Config, probes ...Probe) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New()
	svc := services.NewPredictionService(oracle, model.NewEncoders(core.DefaultTables()), mem)
	srv := NewServer(cfg, svc, mem, probes...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, mem
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, fakeOracle{value: 1}, Config{})

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if got := decodeBody[map[string]string](t, rr)["message"]; got != IndexMessage {
		t.Fatalf("message = %q", got)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing middleware headers: %v", rr.Header())
	}

	for path, want := range map[string]int{"/healthz": 200, "/readyz": 200, "/nope": 404} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != want {
			t.Fatalf("%s status=%d, want %d", path, rr.Code, want)
		}
	}
	if rr := do(t, srv, http.MethodPost, "/", "{}"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST / status=%d", rr.Code)
	}
}

func TestPredictScenarioAndListing(t *testing.T) {
	srv, mem := newTestServer(t, fakeOracle{value: 800}, Config{})

	// Prime the snapshot cache with the empty store.
	if got := decodeBody[map[string]core.Prediction](t, do(t, srv, http.MethodGet, "/get-all-data", "")); len(got) != 0 {
		t.Fatalf("expected empty listing, got %v", got)
	}

	rr := do(t, srv, http.MethodPost, "/predict", scenario)
	if rr.Code != http.StatusOK {
		t.Fatalf("predict status=%d body=%s", rr.Code, rr.Body.String())
	}
	p := decodeBody[core.Prediction](t, rr)
	want := []string{reasoner.MsgHighPriorityUnderrun, reasoner.MsgLowDevIndex, reasoner.MsgLowGDPImpact, reasoner.MsgManyProjects}
	if strings.Join(p.Reasoning, "|") != strings.Join(want, "|") {
		t.Fatalf("reasoning = %q", p.Reasoning)
	}
	if p.ID == "" || p.PredictedBudget != 800 || p.ExpectedBudget == nil || *p.ExpectedBudget != 1000 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if mem.Len() != 1 {
		t.Fatalf("stored %d", mem.Len())
	}

	for _, path := range []string{"/get-all-data", "/predictions"} {
		docs := decodeBody[map[string]core.Prediction](t, do(t, srv, http.MethodGet, path, ""))
		if _, ok := docs[p.ID]; !ok || len(docs) != 1 {
			t.Fatalf("%s = %v, want the new prediction", path, docs)
		}
	}
}

func TestPredictWithoutExpected(t *testing.T) {
	srv, _ := newTestServer(t, fakeOracle{value: 1234.567}, Config{})
	body := strings.Replace(scenario, `,"Expected_Budget":1000`, "", 1)

	rr := do(t, srv, http.MethodPost, "/predict", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	raw := decodeBody[map[string]any](t, rr)
	if raw["predicted_budget"] != 1234.57 {
		t.Fatalf("predicted_budget = %v", raw["predicted_budget"])
	}
	if _, ok := raw["reasoning"]; ok {
		t.Fatal("reasoning must be absent without an expected budget")
	}
	if _, ok := raw["expected_budget"]; ok {
		t.Fatal("expected_budget must be absent when not supplied")
	}
}

func TestPredictErrors(t *testing.T) {
	cases := []struct {
		name    string
		oracle  model.Oracle
		method  string
		body    string
		status  int
		message string
	}{
		{"wrong method", fakeOracle{value: 1}, http.MethodGet, "", http.StatusMethodNotAllowed, "method not allowed"},
		{"invalid json", fakeOracle{value: 1}, http.MethodPost, `{"Ministry":`, http.StatusBadRequest, "malformed request"},
		{"missing field", fakeOracle{value: 1}, http.MethodPost, `{"Ministry":"Health"}`, http.StatusBadRequest, "Priority_Level"},
		{"empty batch", fakeOracle{value: 1}, http.MethodPost, `[]`, http.StatusBadRequest, "at least one record"},
		{"model unavailable", model.Unavailable{}, http.MethodPost, scenario, http.StatusServiceUnavailable, "prediction model unavailable"},
		{"oracle failure", fakeOracle{err: errors.New("nan output")}, http.MethodPost, scenario, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tc.oracle, Config{})
			rr := do(t, srv, tc.method, "/predict", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status=%d, want %d (%s)", rr.Code, tc.status, rr.Body.String())
			}
			if msg := decodeBody[map[string]string](t, rr)["error"]; !strings.Contains(msg, tc.message) {
				t.Fatalf("error = %q, want it to contain %q", msg, tc.message)
			}
		})
	}
}

func TestPredictBodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, fakeOracle{value: 1}, Config{MaxBodyBytes: 64})
	rr := do(t, srv, http.MethodPost, "/predict", scenario)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestPredictBatch(t *testing.T) {
	srv, mem := newTestServer(t, fakeOracle{value: 800}, Config{})

	rr := do(t, srv, http.MethodPost, "/predict", `[`+scenario+`, {"Ministry":"Health"}, 3]`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	items := decodeBody[[]map[string]any](t, rr)
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0]["predicted_budget"] != 800.0 || items[0]["id"] == nil {
		t.Fatalf("first item = %v", items[0])
	}
	for i := 1; i < 3; i++ {
		if items[i]["error"] == nil || items[i]["index"] != float64(i) {
			t.Fatalf("item %d = %v, want an error entry", i, items[i])
		}
	}
	if mem.Len() != 1 {
		t.Fatalf("stored %d", mem.Len())
	}

	rr = do(t, srv, http.MethodPost, "/predict", `[{"Ministry":"Health"}, 1]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("all-failed batch status=%d", rr.Code)
	}
}

func TestGetAllDataStoreFailure(t *testing.T) {
	svc := services.NewPredictionService(fakeOracle{value: 1}, model.NewEncoders(core.DefaultTables()), nil)
	srv := NewServer(Config{}, svc, failingReader{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodGet, "/get-all-data", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if msg := decodeBody[map[string]string](t, rr)["error"]; strings.Contains(msg, "connection refused") {
		t.Fatalf("internal error leaked: %q", msg)
	}
	if rr := do(t, srv, http.MethodDelete, "/get-all-data", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE status=%d", rr.Code)
	}
}

func TestReadyProbes(t *testing.T) {
	down := Probe{Name: "model", Check: model.Unavailable{}.Ready}
	up := Probe{Name: "store", Check: func(context.Context) error { return nil }}
	srv, _ := newTestServer(t, fakeOracle{value: 1}, Config{}, up, down)

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decodeBody[map[string]any](t, rr)
	checks := body["checks"].(map[string]any)
	if body["status"] != "not_ready" || checks["store"] != "ok" || !strings.HasPrefix(checks["model"].(string), "failed") {
		t.Fatalf("body = %v", body)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, fakeOracle{value: 1}, Config{RateLimitPerMinute: 1})

	if rr := do(t, srv, http.MethodPost, "/predict", scenario); rr.Code != http.StatusOK {
		t.Fatalf("first POST status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/predict", scenario)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second POST status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/get-all-data", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET must not be limited, status=%d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, fakeOracle{value: 800}, Config{})
	do(t, srv, http.MethodPost, "/predict", scenario)
	do(t, srv, http.MethodPost, "/predict", `{"Ministry":"Health"}`)

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("status=%d content-type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	for _, line := range []string{"predictions_total 1", "prediction_malformed_total 1", "# TYPE http_requests_total counter"} {
		if !strings.Contains(rr.Body.String(), line) {
			t.Errorf("metrics missing %q", line)
		}
	}
}

// gatedReader blocks All until release is closed and counts calls.
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedReader) All(context.Context) (map[string]core.Prediction, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.release
	}
	return map[string]core.Prediction{}, nil
}

func TestSnapshotNotCachedAcrossConcurrentSave(t *testing.T) {
	reader := &gatedReader{started: make(chan struct{}), release: make(chan struct{})}
	svc := services.NewPredictionService(fakeOracle{value: 1}, model.NewEncoders(core.DefaultTables()), nil)
	srv := NewServer(Config{}, svc, reader)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, srv, http.MethodGet, "/get-all-data", "") }()

	<-reader.started
	// A save lands while the listing is still reading.
	srv.recordPrediction(core.Prediction{ID: "new"})
	close(reader.release)

	if rr := <-done; rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	do(t, srv, http.MethodGet, "/get-all-data", "")
	if got := reader.calls.Load(); got != 2 {
		t.Fatalf("store read %d times, want 2: the stale listing must not be cached", got)
	}

	// Without a concurrent save the next read is cached.
	do(t, srv, http.MethodGet, "/get-all-data", "")
	if got := reader.calls.Load(); got != 2 {
		t.Fatalf("store read %d times, want the cached listing", got)
	}
}
