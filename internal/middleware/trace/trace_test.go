package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "budgetform/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	logger := applog.New(applog.Config{Output: buf, Format: "text"})
	return NewMiddleware(logger, func(*http.Request) string { return "203.0.113.9" })
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ledger/fixed/categories", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id %q should start with req_", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Error("response header should echo the request id")
	}
	out := buf.String()
	for _, want := range []string{"HTTP request completed", "status_code=422", "client_ip=203.0.113.9", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d", got)
	}
}

func TestMiddleware_PropagatesIncomingID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("expected propagated id, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "has space")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "has space" {
		t.Error("ids with spaces must be replaced")
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Errorf("status after implicit 200 = %d", rw.statusCode)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
