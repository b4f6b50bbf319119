package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	applog "budgetform/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.recorder == nil:
		checks["recorder"] = "disabled"
	case s.pinger == nil:
		checks["recorder"] = "ok"
	default:
		if err := s.pinger.Ping(ctx); err != nil {
			checks["recorder"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["recorder"] = "ok"
		}
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.sessions.Size(),
		"status": "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	m := s.appMetrics

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("ledger_changes_total", "Category additions, updates and removals", "counter", m.ledgerChanges.Load())
	metric("summaries_total", "Summaries calculated", "counter", m.summaries.Load())
	metric("rows_recorded_total", "Summary rows handed to the recorder", "counter", m.rowsRecorded.Load())
	metric("record_failures_total", "Recorder append failures", "counter", m.recordFailures.Load())
	metric("rejected_inputs_total", "Submissions rejected by validation", "counter", m.rejectedInputs.Load())
	metric("sessions_created_total", "Sessions started", "counter", m.sessionsCreated.Load())
	metric("sessions_active", "Sessions currently held", "gauge", s.sessions.Size())
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(m.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	page, err := s.pageView(sess)
	if err != nil {
		s.structuredLogger.LogError(r.Context(), "Building page failed", err,
			applog.ComponentHTTP, applog.OpRender, applog.Fields{}.Session(sess.ID))
		InternalServerError("Could not load your budget").Write(w)
		return
	}
	s.render(w, r, NewReply(), "index.html", page)
}
