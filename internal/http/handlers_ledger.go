package http

import (
	"net/http"

	"budgetform/internal/core"
	applog "budgetform/internal/log"
	"budgetform/internal/session"
)

// handleLedger renders one ledger partial.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseLedgerKind(r)
	if err != nil {
		NotFoundError("Unknown ledger").Write(w)
		return
	}
	sess := s.currentSession(w, r)
	s.renderLedger(w, r, NewReply(), sess, kind, "")
}

// handleAddCategory appends a zero-valued category.
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseLedgerKind(r)
	if err != nil {
		NotFoundError("Unknown ledger").Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.currentSession(w, r)

	name, problem := categoryName(r.Form.Get(fieldName))
	if problem != "" {
		s.rejectLedger(w, r, sess, kind, problem, nil)
		return
	}
	if err := sess.AddCategory(kind, name); err != nil {
		s.rejectLedger(w, r, sess, kind, warningFor(err), err)
		return
	}

	s.ledgerChanged(w, r, sess, kind, applog.OpCreate, name, 0)
}

// handleSetAmount updates one category's amount. The amount comes from the
// amount field or, for inputs of the batch form, from "<kind>:<name>".
func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseLedgerKind(r)
	if err != nil {
		NotFoundError("Unknown ledger").Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	sess := s.currentSession(w, r)

	name := p.Get(fieldName)
	raw := p.Get(fieldAmount)
	if raw == "" {
		raw = p.Get(ledgerFieldName(kind, name))
	}
	amount, err := core.ParseOptionalAmountIn(raw, s.currency)
	if err == nil {
		err = sess.SetAmount(kind, name, amount)
	}
	if err != nil {
		s.rejectLedger(w, r, sess, kind, warningFor(err), err)
		return
	}

	s.ledgerChanged(w, r, sess, kind, applog.OpUpdate, name, amount)
}

// handleRemoveCategory deletes a category. DELETE carries the name in the
// query string; the POST fallback carries it in the body.
func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseLedgerKind(r)
	if err != nil {
		NotFoundError("Unknown ledger").Write(w)
		return
	}
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.currentSession(w, r)

	name := sanitizeInput(r.Form.Get(fieldName))
	if err := sess.RemoveCategory(kind, name); err != nil {
		s.rejectLedger(w, r, sess, kind, warningFor(err), err)
		return
	}

	s.ledgerChanged(w, r, sess, kind, applog.OpDelete, name, 0)
}

func (s *Server) ledgerChanged(w http.ResponseWriter, r *http.Request, sess *session.Session, kind core.LedgerKind, op, name string, amount float64) {
	s.appMetrics.ledgerChanges.Add(1)
	s.structuredLogger.LogLedgerChange(r.Context(), sess.ID, op, string(kind), name, amount)

	if !isHTMX(r) && r.Method == http.MethodPost {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b := NewReply().
		TriggerLedgerChanged(string(kind)).
		TriggerSummaryRefresh()
	s.renderLedger(w, r, b, sess, kind, "")
}

// rejectLedger answers 422 with the unchanged ledger and a warning.
func (s *Server) rejectLedger(w http.ResponseWriter, r *http.Request, sess *session.Session, kind core.LedgerKind, warning string, err error) {
	s.appMetrics.rejectedInputs.Add(1)
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Ledger change rejected",
		applog.FieldSessionID, sess.ID,
		applog.FieldLedger, string(kind),
		applog.FieldError, errString(err),
		"warning", warning)

	b := NewReply().
		Status(http.StatusUnprocessableEntity).
		TriggerWarningNotification(warning)
	s.renderLedger(w, r, b, sess, kind, warning)
}

func (s *Server) renderLedger(w http.ResponseWriter, r *http.Request, b *Reply, sess *session.Session, kind core.LedgerKind, warning string) {
	v, err := s.ledgerView(sess, kind)
	if err != nil {
		NotFoundError("Unknown ledger").Write(w)
		return
	}
	v.Warning = warning
	s.render(w, r, b, "ledger", v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
