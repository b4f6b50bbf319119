package http

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"budgetform/internal/core"
	applog "budgetform/internal/log"
	"budgetform/internal/session"
)

// SessionCookie carries the visitor's session ID.
const SessionCookie = "bf_session"

// maxCategoryName bounds user-chosen category names.
const maxCategoryName = 64

// currentSession resolves the visitor's session, starting a new one and
// setting the cookie when the request carries none or an expired one.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		s.appMetrics.sessionsCreated.Add(1)
		s.logger.DebugContext(r.Context(), "Session started",
			applog.FieldSessionID, sess.ID,
			"replaced", id != "")
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// categoryName cleans a submitted category name, returning a user-facing
// problem when it cannot be used.
func categoryName(raw string) (string, string) {
	name := sanitizeInput(raw)
	switch {
	case name == "":
		return "", "Category name is required."
	case len([]rune(name)) > maxCategoryName:
		return "", "Category name is too long."
	case strings.ContainsAny(name, "\r\n\t"):
		return "", "Category name must fit on one line."
	}
	return name, ""
}

// warningFor turns a domain error into the message shown to the user.
func warningFor(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateCategory):
		return "A category with that name already exists."
	case errors.Is(err, core.ErrUnknownCategory):
		return "That category does not exist (it may have been removed)."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amounts must be non-negative numbers."
	case errors.Is(err, core.ErrNameCollision):
		return "The same category name appears in both ledgers."
	case errors.Is(err, core.ErrInvalidLedger):
		return "Unknown ledger."
	default:
		return "The request could not be processed."
	}
}

// render executes a template into a buffer first so headers and status set
// on b are still writable when execution fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *Reply, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldOperation, applog.OpRender)
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structuredLogger.LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.Fields{}.Add("template", name))
		InternalServerError("Rendering failed").Write(w)
		return
	}
	b.HTML(buf.Bytes()).Write(w)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
