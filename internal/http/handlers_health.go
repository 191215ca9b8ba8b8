package http

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleReady runs every readiness check; any failure yields 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Checks: map[string]string{"templates": "not loaded"}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := readyResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	names := make([]string, 0, len(s.readiness))
	for name := range s.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.readiness[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// AnalysisMetrics counts analysis calls across all sessions.
type AnalysisMetrics struct {
	succeeded  int64
	failed     int64
	totalMicro int64
}

func NewAnalysisMetrics() *AnalysisMetrics {
	return &AnalysisMetrics{}
}

// Observe matches store.ResultObserver.
func (m *AnalysisMetrics) Observe(err error, elapsed time.Duration) {
	if err != nil {
		atomic.AddInt64(&m.failed, 1)
	} else {
		atomic.AddInt64(&m.succeeded, 1)
	}
	atomic.AddInt64(&m.totalMicro, elapsed.Microseconds())
}

type analysisSnapshot struct {
	Succeeded         int64 `json:"succeeded"`
	Failed            int64 `json:"failed"`
	AverageDurationMs int64 `json:"average_duration_ms"`
}

func (m *AnalysisMetrics) snapshot() analysisSnapshot {
	ok := atomic.LoadInt64(&m.succeeded)
	failed := atomic.LoadInt64(&m.failed)
	out := analysisSnapshot{Succeeded: ok, Failed: failed}
	if n := ok + failed; n > 0 {
		out.AverageDurationMs = atomic.LoadInt64(&m.totalMicro) / n / 1000
	}
	return out
}

type metricsResponse struct {
	Requests struct {
		Total             int64 `json:"total"`
		ServerErrors      int64 `json:"server_errors"`
		AverageResponseUs int64 `json:"average_response_us"`
	} `json:"requests"`
	RateLimit struct {
		Hits    int64 `json:"hits"`
		Clients int64 `json:"clients"`
	} `json:"rate_limit"`
	Security struct {
		SuspiciousRequests int64 `json:"suspicious_requests"`
	} `json:"security"`
	Sessions struct {
		Active int `json:"active"`
	} `json:"sessions"`
	Analysis analysisSnapshot `json:"analysis"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var resp metricsResponse

	tm := s.tracer.GetMetrics()
	resp.Requests.Total = tm.TotalRequests
	resp.Requests.ServerErrors = tm.ServerErrors
	resp.Requests.AverageResponseUs = tm.AverageResponseTime

	rm := s.limiter.GetMetrics()
	resp.RateLimit.Hits = rm.TotalHits
	resp.RateLimit.Clients = rm.ClientCount

	resp.Security.SuspiciousRequests = s.detector.GetMetrics().SuspiciousRequests
	resp.Sessions.Active = s.registry.Len()
	resp.Analysis = s.analysis.snapshot()

	writeJSON(w, http.StatusOK, resp)
}
