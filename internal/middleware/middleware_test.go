package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

var clinicians = map[string]analysis.Clinician{
	"key-a": {ID: "dr-a", Specialty: "cardiology"},
	"key-b": {ID: "dr-b"},
}

func echoClinician(w http.ResponseWriter, r *http.Request) {
	c, ok := ClinicianFromContext(r.Context())
	if !ok {
		http.Error(w, "no clinician", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(c.ID))
}

func TestClinicianAuth(t *testing.T) {
	h := ClinicianAuth(clinicians)(http.HandlerFunc(echoClinician))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"bearer key", "Bearer key-a", http.StatusOK, "dr-a"},
		{"bare key", "key-b", http.StatusOK, "dr-b"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
		{"unknown key", "Bearer key-z", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/jobs/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestLogging_IncludesClinician(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(log)(ClinicianAuth(clinicians)(http.HandlerFunc(echoClinician)))

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/1", nil)
	req.Header.Set("Authorization", "Bearer key-a")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dr-a", line["clinician"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, "/v1/cases/1", line["path"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 1)
	h := ClinicianAuth(clinicians)(rl.Middleware(http.HandlerFunc(echoClinician)))

	call := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("key-a").Code)
	assert.Equal(t, http.StatusOK, call("key-a").Code)
	limited := call("key-a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	// buckets are per clinician
	assert.Equal(t, http.StatusOK, call("key-b").Code)
}

func TestRateLimiterCleanupStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRateLimiter(1, 1).Cleanup(ctx)
		close(done)
	}()
	cancel()
	<-done
}

func TestValidators(t *testing.T) {
	id, err := ParseCaseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := ParseCaseID(bad)
		assert.Error(t, err, bad)
	}

	assert.NoError(t, ValidateHandle("42"))
	assert.NoError(t, ValidateHandle("job-7f3a:b_1.x"))
	assert.Error(t, ValidateHandle(""))
	assert.Error(t, ValidateHandle("../etc"))
	assert.Error(t, ValidateHandle("a b"))

	assert.Equal(t, "fever\tcough\nday 3", SanitizeString("  fever\tcough\x00\nday 3\x07 "))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 5, ValidateLimit(5))
	assert.Equal(t, 1, ValidatePage(-1))
	assert.Equal(t, 3, ValidatePage(3))
}

func TestMetricsFollowJobs(t *testing.T) {
	m := NewMetrics()
	m.JobChanged(analysis.Job{Status: analysis.StatusQueued})
	m.JobChanged(analysis.Job{Status: analysis.StatusQueued})
	m.JobChanged(analysis.Job{Status: analysis.StatusProcessing})
	m.JobChanged(analysis.Job{Status: analysis.StatusCompleted})
	m.JobChanged(analysis.Job{Status: analysis.StatusQueued})
	m.JobChanged(analysis.Job{Status: analysis.StatusCancelled})
	m.PollFailed(analysis.Job{}, errors.New("timeout"))
	m.ReanalysisDone(nil)
	m.ReanalysisDone(errors.New("x"))

	assert.Equal(t, uint64(3), m.JobsTotal.Load())
	assert.Equal(t, int64(1), m.JobsRunning.Load())
	assert.Equal(t, uint64(1), m.JobsCompleted.Load())
	assert.Equal(t, uint64(1), m.JobsCancelled.Load())
	assert.Equal(t, uint64(1), m.PollErrors.Load())
	assert.Equal(t, uint64(2), m.Reanalyses.Load())
	assert.Equal(t, uint64(1), m.ReanalysesFail.Load())

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, float64(1), snap["jobs_running"])
}

type checkFunc func(context.Context) error

func (f checkFunc) Check(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"database": ok, "analysis_service": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Checks["analysis_service"].Status)
	assert.Equal(t, "connection refused", body.Checks["analysis_service"].Message)
}

func TestServiceHealthChecker(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()
	assert.NoError(t, (&ServiceHealthChecker{BaseURL: up.URL}).Check(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	assert.Error(t, (&ServiceHealthChecker{BaseURL: broken.URL}).Check(context.Background()))
}

func TestReadinessHandler(t *testing.T) {
	accepting := true
	h := ReadinessHandler(func() bool { return accepting }, func() int { return 4 })

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tracked_jobs":4`)

	accepting = false
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutting_down")
}
