package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budgetform/internal/core"
	applog "budgetform/internal/log"
	"budgetform/internal/middleware/ratelimit"
	"budgetform/internal/middleware/security"
	"budgetform/internal/middleware/trace"
	"budgetform/internal/recorder"
	"budgetform/internal/session"
	appweb "budgetform/web"
)

// Deps are the collaborators a Server needs. Recorder may be nil, in which
// case summaries are computed but never recorded.
type Deps struct {
	Recorder recorder.Recorder
	Pinger   recorder.Pinger
	Sessions *session.Store

	Tiers    core.RatioTiers
	Currency string

	Logger         *applog.Logger
	TrustedProxies []string
	RateLimit      ratelimit.Config
	CookieSecure   bool

	// Templates overrides the embedded template files.
	Templates fs.FS
}

type Server struct {
	http.Server
	templates    *template.Template
	recorder     recorder.Recorder
	pinger       recorder.Pinger
	sessions     *session.Store
	tiers        core.RatioTiers
	currency     string
	cookieSecure bool

	logger           *applog.Logger
	structuredLogger *applog.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime          time.Time
	ledgerChanges   atomic.Int64
	summaries       atomic.Int64
	rowsRecorded    atomic.Int64
	recordFailures  atomic.Int64
	rejectedInputs  atomic.Int64
	sessionsCreated atomic.Int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	tiers := deps.Tiers
	if tiers == (core.RatioTiers{}) {
		tiers = core.DefaultRatioTiers
	}
	if err := tiers.Validate(); err != nil {
		return nil, err
	}
	currency := deps.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}

	detector, err := security.NewDetector(deps.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		recorder:         deps.Recorder,
		pinger:           deps.Pinger,
		sessions:         deps.Sessions,
		tiers:            tiers,
		currency:         currency,
		cookieSecure:     deps.CookieSecure,
		logger:           logger,
		structuredLogger: applog.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	// Parse templates at startup. A failure leaves the server up so that
	// /healthz and /readyz can report it.
	templatesFS := deps.Templates
	if templatesFS == nil {
		templatesFS = appweb.TemplatesFS
	}
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /ledger/{kind}", s.handleLedger)
	mux.Handle("POST /ledger/{kind}/categories", s.limited(s.handleAddCategory))
	mux.Handle("PUT /ledger/{kind}/categories", s.limited(s.handleSetAmount))
	mux.Handle("DELETE /ledger/{kind}/categories", s.limited(s.handleRemoveCategory))
	mux.Handle("POST /ledger/{kind}/categories/remove", s.limited(s.handleRemoveCategory))

	mux.Handle("POST /totals", s.limited(s.handleSetTotals))
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.Handle("POST /summary", s.limited(s.handleCalculate))
	mux.Handle("POST /reset", s.limited(s.handleReset))
	mux.HandleFunc("GET /rows", s.handleRows)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestID)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s, nil
}

// limited applies the per-client rate limit to state-changing routes.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again shortly.").Write(w)
	}
	return s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, onLimit)(h)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
