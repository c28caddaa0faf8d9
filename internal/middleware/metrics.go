package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

// Metrics counts requests and analysis jobs. It also observes the
// orchestrator, so job counters follow state changes directly.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	JobsTotal      atomic.Uint64
	JobsRunning    atomic.Int64
	JobsCompleted  atomic.Uint64
	JobsFailed     atomic.Uint64
	JobsCancelled  atomic.Uint64
	PollErrors     atomic.Uint64
	Reanalyses     atomic.Uint64
	ReanalysesFail atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// JobChanged is called once on registration and once per later transition.
func (m *Metrics) JobChanged(job analysis.Job) {
	switch job.Status {
	case analysis.StatusQueued:
		m.JobsTotal.Add(1)
		m.JobsRunning.Add(1)
	case analysis.StatusCompleted:
		m.JobsRunning.Add(-1)
		m.JobsCompleted.Add(1)
	case analysis.StatusFailed:
		m.JobsRunning.Add(-1)
		m.JobsFailed.Add(1)
	case analysis.StatusCancelled:
		m.JobsRunning.Add(-1)
		m.JobsCancelled.Add(1)
	}
}

func (m *Metrics) PollFailed(analysis.Job, error) {
	m.PollErrors.Add(1)
}

// ReanalysisDone counts one synchronous reanalysis.
func (m *Metrics) ReanalysisDone(err error) {
	m.Reanalyses.Add(1)
	if err != nil {
		m.ReanalysesFail.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"jobs_total":           m.JobsTotal.Load(),
		"jobs_running":         m.JobsRunning.Load(),
		"jobs_completed":       m.JobsCompleted.Load(),
		"jobs_failed":          m.JobsFailed.Load(),
		"jobs_cancelled":       m.JobsCancelled.Load(),
		"poll_errors":          m.PollErrors.Load(),
		"reanalyses_total":     m.Reanalyses.Load(),
		"reanalyses_failed":    m.ReanalysesFail.Load(),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
