package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"budgetform/internal/core"
	applog "budgetform/internal/log"
	"budgetform/internal/recorder"
	"budgetform/internal/session"
)

// recordTimeout bounds one recorder append; the sheets backend is a
// remote call with no retry.
const recordTimeout = 10 * time.Second

const (
	defaultRowsLimit = 10
	maxRowsLimit     = 100
)

// handleSummary renders the summary partial from the current state.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	s.render(w, r, NewReply(), "summary", s.summaryView(sess))
}

// handleSetTotals replaces income, savings, investments and the limit.
func (s *Server) handleSetTotals(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.currentSession(w, r)

	totals, err := ParseTotals(r.Form, s.currency)
	if err == nil {
		err = sess.SetTotals(totals)
	}
	if err != nil {
		s.rejectSummary(w, r, sess, err)
		return
	}
	s.renderSummary(w, r, NewReply(), sess, s.summaryView(sess))
}

// handleCalculate applies every submitted amount and total in one step,
// recomputes the summary and hands its export row to the recorder. The
// row recorded is the one shown. A recorder failure is reported as a
// notice; the summary is still shown.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.currentSession(w, r)

	var snap session.Snapshot
	batch, err := ParseBatch(r.Form, s.currency)
	if err == nil {
		snap, err = sess.ApplySnapshot(batch, s.tiers)
	}
	if err != nil {
		s.rejectSummary(w, r, sess, err)
		return
	}
	s.appMetrics.summaries.Add(1)

	view := s.snapshotView(snap)
	b := NewReply().TriggerLedgersApplied()

	notice, ref := s.record(r.Context(), sess.ID, snap.Summary)
	view.Notices = append(view.Notices, notice)
	switch notice.Type {
	case NotificationSuccess:
		b.TriggerSummaryRecorded(ref).TriggerSuccessNotification(notice.Message)
	case NotificationWarning:
		b.TriggerWarningNotification(notice.Message)
	}

	s.renderSummary(w, r, b, sess, view)
}

// record appends the export row of sum. The returned notice tells the user
// whether it was saved; ref is set on success.
func (s *Server) record(ctx context.Context, sessionID string, sum core.Summary) (notice noticeView, ref string) {
	if s.recorder == nil {
		return noticeView{Type: NotificationInfo, Message: "Summary calculated. Recording is disabled."}, ""
	}

	row := sum.ExportRow()
	if err := row.Validate(); err != nil {
		s.structuredLogger.LogError(ctx, "Export row invalid", err,
			applog.ComponentSummary, applog.OpValidate, applog.Fields{}.Session(sessionID))
		s.appMetrics.recordFailures.Add(1)
		return noticeView{Type: NotificationWarning, Message: "Summary calculated, but it could not be saved."}, ""
	}

	cctx, cancel := context.WithTimeout(recorder.WithSessionID(ctx, sessionID), recordTimeout)
	defer cancel()
	ref, err := s.recorder.Append(cctx, row)
	if err != nil {
		s.appMetrics.recordFailures.Add(1)
		s.structuredLogger.LogError(ctx, "Recording summary failed", err,
			applog.ComponentSummary, applog.OpAppend, applog.Fields{}.Session(sessionID))
		return noticeView{Type: NotificationWarning, Message: "Summary calculated, but saving it failed. Please try again later."}, ""
	}

	s.appMetrics.rowsRecorded.Add(1)
	s.structuredLogger.LogSummaryRecorded(ctx, sessionID, sum.TotalExpenses, sum.Difference, ref)
	return noticeView{Type: NotificationSuccess, Message: "Summary saved (" + ref + ")."}, ref
}

// rejectSummary answers 422 with the unchanged summary and a warning.
func (s *Server) rejectSummary(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	s.appMetrics.rejectedInputs.Add(1)
	warning := warningFor(err)
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Summary input rejected",
		applog.FieldSessionID, sess.ID,
		applog.FieldError, errString(err))

	view := s.summaryView(sess)
	view.Notices = append(view.Notices, noticeView{Type: NotificationWarning, Message: warning})
	b := NewReply().
		Status(http.StatusUnprocessableEntity).
		TriggerWarningNotification(warning)
	s.renderSummary(w, r, b, sess, view)
}

// renderSummary answers htmx with the summary partial and plain form posts
// with the whole page, so notices are not lost to a redirect.
func (s *Server) renderSummary(w http.ResponseWriter, r *http.Request, b *Reply, sess *session.Session, view summaryView) {
	if isHTMX(r) {
		s.render(w, r, b, "summary", view)
		return
	}
	page, err := s.pageViewWith(sess, view)
	if err != nil {
		s.structuredLogger.LogError(r.Context(), "Building page failed", err,
			applog.ComponentHTTP, applog.OpRender, applog.Fields{}.Session(sess.ID))
		InternalServerError("Could not load your budget").Write(w)
		return
	}
	s.render(w, r, b, "index.html", page)
}

// handleReset drops the visitor's ledgers and totals back to the seeds.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(w, r)
	s.sessions.Reset(sess.ID)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Session reset", applog.FieldSessionID, sess.ID)

	if isHTMX(r) {
		NewReply().Header("HX-Refresh", "true").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRows lists the most recently recorded rows. Backend errors render
// a placeholder rather than failing the page.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	limit := defaultRowsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxRowsLimit)
		}
	}

	if s.recorder == nil {
		s.render(w, r, NewReply(), "rows", s.rowsView(nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()
	rows, err := s.recorder.ListRows(ctx, limit)
	if err != nil {
		s.structuredLogger.LogError(r.Context(), "Listing recorded rows failed", err,
			applog.ComponentSummary, applog.OpList, nil)
		v := s.rowsView(nil)
		v.Error = "Recorded rows are unavailable right now."
		s.render(w, r, NewReply(), "rows", v)
		return
	}
	s.render(w, r, NewReply(), "rows", s.rowsView(rows))
}
