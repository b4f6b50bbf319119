package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"budgetform/internal/core"
	applog "budgetform/internal/log"
	"budgetform/internal/middleware/ratelimit"
	"budgetform/internal/recorder/memory"
	"budgetform/internal/session"
)

type failingRecorder struct{ err error }

func (f failingRecorder) Append(context.Context, core.Row) (string, error) { return "", f.err }
func (f failingRecorder) ListRows(context.Context, int) ([]core.RecordedRow, error) {
	return nil, f.err
}
func (f failingRecorder) Ping(context.Context) error { return f.err }

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard, Level: applog.ParseLevel("error")})
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	rec := memory.New()
	deps := Deps{
		Recorder:  rec,
		Pinger:    rec,
		Sessions:  session.NewStore(100, time.Hour, session.DefaultSeeds()),
		Logger:    quietLogger(),
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// client replays the session cookie across requests like a browser would.
type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
	htmx   bool
}

func newClient(t *testing.T, srv *Server) *client {
	return &client{t: t, srv: srv, htmx: true}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.htmx {
		req.Header.Set("HX-Request", "true")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rr
}

func (c *client) session() *session.Session {
	c.t.Helper()
	if c.cookie == nil {
		c.t.Fatal("no session cookie issued")
	}
	sess, ok := c.srv.sessions.Get(c.cookie.Value)
	if !ok {
		c.t.Fatalf("session %s not found", c.cookie.Value)
	}
	return sess
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)

	rr := c.do(http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Monthly budget", "Housing", "Groceries", "Calculate summary", `name="fixed:Housing"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if c.cookie == nil || !session.ValidID(c.cookie.Value) {
		t.Fatalf("expected a session cookie, got %+v", c.cookie)
	}
	if !c.cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing on index")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request ID not echoed")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := c.do(http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr = c.do(http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "summaries_total 0") {
		t.Fatalf("metrics unexpected: %d %s", rr.Code, rr.Body.String())
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := newClient(t, srv).do(http.MethodGet, "/static/app.css", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestSessionIsKeptAcrossRequests(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)

	c.do(http.MethodGet, "/", nil)
	first := c.cookie.Value
	rr := c.do(http.MethodPost, "/ledger/fixed/categories", url.Values{"name": {"Rent"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("add status=%d body=%s", rr.Code, rr.Body.String())
	}
	if c.cookie.Value != first {
		t.Error("session cookie should not change for a live session")
	}

	// A stranger does not see Rent.
	other := newClient(t, srv).do(http.MethodGet, "/ledger/fixed", nil)
	if strings.Contains(other.Body.String(), "Rent") {
		t.Error("sessions leaked state")
	}
}

func TestLedgerOperations(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)

	rr := c.do(http.MethodPost, "/ledger/fixed/categories", url.Values{"name": {"Rent"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Rent") {
		t.Fatalf("add: %d %s", rr.Code, rr.Body.String())
	}
	if trig := rr.Header().Get("HX-Trigger"); !strings.Contains(trig, EventLedgerChanged) || !strings.Contains(trig, EventSummaryRefresh) {
		t.Errorf("add triggers = %q", trig)
	}

	t.Run("duplicate is rejected and ledger unchanged", func(t *testing.T) {
		before, _ := c.session().Entries(core.Fixed)
		rr := c.do(http.MethodPost, "/ledger/fixed/categories", url.Values{"name": {"Rent"}})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "already exists") {
			t.Errorf("warning missing: %s", rr.Body.String())
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), `"type":"warning"`) {
			t.Errorf("expected warning notification, got %q", rr.Header().Get("HX-Trigger"))
		}
		after, _ := c.session().Entries(core.Fixed)
		if len(after) != len(before) {
			t.Errorf("ledger changed on rejected add: %v -> %v", before, after)
		}
	})

	t.Run("blank name", func(t *testing.T) {
		rr := c.do(http.MethodPost, "/ledger/variable/categories", url.Values{"name": {"  "}})
		if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "required") {
			t.Fatalf("blank name: %d %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("set amount with JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/ledger/fixed/categories", strings.NewReader(`{"name":"Rent","amount":"1200.50"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("HX-Request", "true")
		req.AddCookie(c.cookie)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "$1,200.50") {
			t.Errorf("formatted amount missing: %s", rr.Body.String())
		}
	})

	t.Run("set amount from batch field name", func(t *testing.T) {
		rr := c.do(http.MethodPut, "/ledger/fixed/categories", url.Values{"name": {"Housing"}, "fixed:Housing": {"800"}})
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		if v, _ := amountOf(c.session(), core.Fixed, "Housing"); v != 800 {
			t.Errorf("Housing = %v, want 800", v)
		}
	})

	t.Run("negative amount keeps prior value", func(t *testing.T) {
		rr := c.do(http.MethodPut, "/ledger/fixed/categories", url.Values{"name": {"Rent"}, "amount": {"-5"}})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status=%d", rr.Code)
		}
		if v, _ := amountOf(c.session(), core.Fixed, "Rent"); v != 1200.5 {
			t.Errorf("Rent = %v, want 1200.5", v)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		rr := c.do(http.MethodPut, "/ledger/variable/categories", url.Values{"name": {"Missing"}, "amount": {"10"}})
		if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "does not exist") {
			t.Fatalf("unknown: %d %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("remove via DELETE and POST fallback", func(t *testing.T) {
		rr := c.do(http.MethodDelete, "/ledger/fixed/categories?name=Rent", nil)
		if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "Rent") {
			t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
		}
		rr = c.do(http.MethodDelete, "/ledger/fixed/categories?name=Rent", nil)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("second delete status=%d", rr.Code)
		}

		c.htmx = false
		defer func() { c.htmx = true }()
		rr = c.do(http.MethodPost, "/ledger/variable/categories/remove", url.Values{"name": {"Fun"}})
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("form fallback status=%d", rr.Code)
		}
		if _, ok := amountOf(c.session(), core.Variable, "Fun"); ok {
			t.Error("Fun should be gone")
		}
	})

	t.Run("unknown ledger", func(t *testing.T) {
		if rr := c.do(http.MethodGet, "/ledger/weekly", nil); rr.Code != http.StatusNotFound {
			t.Errorf("status=%d", rr.Code)
		}
		if rr := c.do(http.MethodPost, "/ledger/weekly/categories", url.Values{"name": {"X"}}); rr.Code != http.StatusNotFound {
			t.Errorf("status=%d", rr.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		if rr := c.do(http.MethodPatch, "/ledger/fixed/categories", nil); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("status=%d", rr.Code)
		}
	})
}

func amountOf(sess *session.Session, kind core.LedgerKind, name string) (float64, bool) {
	entries, _ := sess.Entries(kind)
	for _, e := range entries {
		if e.Name == name {
			return e.Amount, true
		}
	}
	return 0, false
}

func TestCalculateSummaryEndToEnd(t *testing.T) {
	rec := memory.New()
	srv := newTestServer(t, func(d *Deps) {
		d.Recorder = rec
		d.Pinger = rec
		d.Sessions = session.NewStore(10, time.Hour, session.Seeds{Fixed: []string{"Housing", "Utilities"}})
	})
	c := newClient(t, srv)
	c.do(http.MethodGet, "/", nil)

	rr := c.do(http.MethodPost, "/summary", url.Values{
		"fixed:Housing":   {"500"},
		"fixed:Utilities": {"100"},
		"income":          {"2000"},
		"savings":         {"100"},
		"investments":     {"100"},
		"future_limit":    {"700"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"$600.00", "$2,000.00", "30.0%", core.Under.Message(), "Summary saved (mem:1)", "on track"} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	trig := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventSummaryRecorded, EventLedgersApplied, `"type":"success"`} {
		if !strings.Contains(trig, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trig)
		}
	}

	if rec.Len() != 1 {
		t.Fatalf("recorded %d rows, want 1", rec.Len())
	}
	rows, _ := rec.ListRows(context.Background(), 1)
	want := core.Row{2000, 100, 100, 600, 0, 600, 700, -100}
	for i, v := range want {
		if rows[0].Row[i] != v {
			t.Errorf("%s = %v, want %v", core.ExportHeader[i], rows[0].Row[i], v)
		}
	}

	rr = c.do(http.MethodGet, "/rows", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "mem:1") {
		t.Errorf("rows: %d %s", rr.Code, rr.Body.String())
	}

	rr = c.do(http.MethodGet, "/metrics", nil)
	if !strings.Contains(rr.Body.String(), "rows_recorded_total 1") {
		t.Errorf("metrics did not count the recorded row:\n%s", rr.Body.String())
	}
}

func TestCalculateRecordsTheSummaryShown(t *testing.T) {
	rec := memory.New()
	srv := newTestServer(t, func(d *Deps) {
		d.Recorder = rec
		d.Pinger = rec
		d.Sessions = session.NewStore(10, time.Hour, session.Seeds{Fixed: []string{"Housing", "Utilities"}})
		d.RateLimit = ratelimit.Config{RequestsPerSecond: 1e6, Burst: 1e6}
	})
	c := newClient(t, srv)
	c.do(http.MethodGet, "/", nil)
	cookie := c.cookie

	// another tab keeps editing the same ledger
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			req := httptest.NewRequest(http.MethodPut, "/ledger/fixed/categories",
				strings.NewReader(url.Values{"name": {"Housing"}, "amount": {"1"}}.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("HX-Request", "true")
			req.AddCookie(cookie)
			srv.Handler.ServeHTTP(httptest.NewRecorder(), req)
		}
	}()

	const rounds = 25
	for i := 0; i < rounds; i++ {
		rr := c.do(http.MethodPost, "/summary", url.Values{
			"fixed:Housing":   {"500"},
			"fixed:Utilities": {"100"},
			"income":          {"2000"},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "$600.00") {
			t.Fatalf("round %d: summary shown without the submitted fixed total", i)
		}
	}
	close(stop)
	wg.Wait()

	rows, err := rec.ListRows(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != rounds {
		t.Fatalf("recorded %d rows, want %d", len(rows), rounds)
	}
	for _, r := range rows {
		if r.Row[3] != 600 {
			t.Errorf("%s recorded fixed total %v, want the 600 shown", r.Ref, r.Row[3])
		}
	}
}

func TestCalculateWithoutHTMXRendersPage(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)
	c.htmx = false

	rr := c.do(http.MethodPost, "/summary", url.Values{"income": {"1000"}, "fixed:Housing": {"400"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"<html", `id="calc-form"`, "Summary saved (mem:1)", "$400.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("full page missing %q", want)
		}
	}

	rr = c.do(http.MethodPost, "/totals", url.Values{"income": {"-1"}})
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), `id="calc-form"`) {
		t.Errorf("rejected totals without htmx: %d", rr.Code)
	}
}

func TestCalculateIsAtomic(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)
	c.do(http.MethodGet, "/", nil)

	rr := c.do(http.MethodPost, "/summary", url.Values{
		"fixed:Housing": {"500"},
		"fixed:Nope":    {"1"},
		"income":        {"2000"},
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if v, _ := amountOf(c.session(), core.Fixed, "Housing"); v != 0 {
		t.Errorf("Housing = %v, want 0 after rejected batch", v)
	}
	if got := c.session().Totals().Income; got != 0 {
		t.Errorf("income = %v, want 0 after rejected batch", got)
	}
}

func TestCalculateWithFailingRecorder(t *testing.T) {
	boom := failingRecorder{err: errors.New("sheets unavailable")}
	srv := newTestServer(t, func(d *Deps) {
		d.Recorder = boom
		d.Pinger = boom
	})
	c := newClient(t, srv)

	rr := c.do(http.MethodPost, "/summary", url.Values{"income": {"1000"}, "fixed:Housing": {"400"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("a recorder failure must not fail the summary, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "saving it failed") || !strings.Contains(body, "$400.00") {
		t.Errorf("unexpected body: %s", body)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"type":"warning"`) {
		t.Error("expected a warning notification")
	}

	if rr := c.do(http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status=%d, want 503", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/rows", nil); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "unavailable") {
		t.Errorf("rows: %d %s", rr.Code, rr.Body.String())
	}
}

func TestCalculateWithoutRecorder(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) {
		d.Recorder = nil
		d.Pinger = nil
	})
	rr := newClient(t, srv).do(http.MethodPost, "/summary", url.Values{"income": {"10"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Recording is disabled") {
		t.Fatalf("%d %s", rr.Code, rr.Body.String())
	}
}

func TestSetTotals(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)

	rr := c.do(http.MethodPost, "/totals", url.Values{"income": {"3000"}, "future_limit": {"1000"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "$3,000.00") {
		t.Fatalf("%d %s", rr.Code, rr.Body.String())
	}

	rr = c.do(http.MethodPost, "/totals", url.Values{"income": {"-1"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := c.session().Totals().Income; got != 3000 {
		t.Errorf("income = %v, want 3000 to be kept", got)
	}
}

func TestNameCollisionIsReported(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)

	// "Fun" is a default variable category.
	if rr := c.do(http.MethodPost, "/ledger/fixed/categories", url.Values{"name": {"Fun"}}); rr.Code != http.StatusOK {
		t.Fatalf("add status=%d", rr.Code)
	}
	rr := c.do(http.MethodGet, "/summary", nil)
	if !strings.Contains(rr.Body.String(), "appear in both ledgers") {
		t.Errorf("collision warning missing: %s", rr.Body.String())
	}
}

func TestReset(t *testing.T) {
	srv := newTestServer(t, nil)
	c := newClient(t, srv)
	c.do(http.MethodPost, "/ledger/fixed/categories", url.Values{"name": {"Boat"}})

	rr := c.do(http.MethodPost, "/reset", nil)
	if rr.Header().Get("HX-Refresh") != "true" {
		t.Errorf("expected HX-Refresh, got %v", rr.Header())
	}
	if _, ok := amountOf(c.session(), core.Fixed, "Boat"); ok {
		t.Error("reset should drop added categories")
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) {
		d.RateLimit = ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1}
	})
	c := newClient(t, srv)

	if rr := c.do(http.MethodPost, "/totals", url.Values{"income": {"1"}}); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := c.do(http.MethodPost, "/totals", url.Values{"income": {"2"}})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	// Reads are not limited.
	if rr := c.do(http.MethodGet, "/summary", nil); rr.Code != http.StatusOK {
		t.Errorf("GET /summary status=%d", rr.Code)
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	srv := newTestServer(t, nil)
	if rr := newClient(t, srv).do(http.MethodGet, "/.env", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if srv.securityDetector.GetMetrics().SuspiciousRequests != 1 {
		t.Error("probe not counted")
	}
}

func TestTemplateParseErrorPath(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) {
		d.Templates = fstest.MapFS{}
	})
	c := newClient(t, srv)

	if rr := c.do(http.MethodGet, "/", nil); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing templates, got %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from readyz, got %d", rr.Code)
	}
	if rr := c.do(http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz should stay up, got %d", rr.Code)
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(":0", Deps{}); err == nil {
		t.Error("expected an error without a session store")
	}
	_, err := NewServer(":0", Deps{
		Sessions: session.NewStore(1, time.Hour, session.Seeds{}),
		Tiers:    core.RatioTiers{Moderate: 90, High: 50},
		Logger:   quietLogger(),
	})
	if err == nil {
		t.Error("expected an error for unordered tiers")
	}
	_, err = NewServer(":0", Deps{
		Sessions:       session.NewStore(1, time.Hour, session.Seeds{}),
		TrustedProxies: []string{"not-an-ip"},
		Logger:         quietLogger(),
	})
	if err == nil {
		t.Error("expected an error for a bad trusted proxy")
	}
}
