package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events raised through HX-Trigger.
const (
	EventLedgerChanged   = "ledger:changed"
	EventLedgersApplied  = "ledgers:applied"
	EventSummaryRefresh  = "summary:refresh"
	EventSummaryRecorded = "summary:recorded"
	EventNotification    = "show-notification"
)

// NotificationType selects the style of a toast shown by static/app.js.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Toast durations in milliseconds.
const (
	successDuration = 3000
	warningDuration = 5000
)

type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// Reply accumulates the status, headers, HX-Trigger events and body of one
// htmx response and writes them in the right order.
type Reply struct {
	status int
	header http.Header
	events map[string]any
	body   []byte
}

// NewReply starts a 200 response.
func NewReply() *Reply {
	return &Reply{status: http.StatusOK, header: http.Header{}, events: map[string]any{}}
}

func (b *Reply) Status(code int) *Reply {
	b.status = code
	return b
}

func (b *Reply) StatusCode() int { return b.status }

// Trigger raises event on the client with data as its detail.
func (b *Reply) Trigger(event string, data any) *Reply {
	b.events[event] = data
	return b
}

func (b *Reply) TriggerLedgerChanged(kind string) *Reply {
	return b.Trigger(EventLedgerChanged, map[string]string{"ledger": kind})
}

// TriggerLedgersApplied makes both ledger panels reload.
func (b *Reply) TriggerLedgersApplied() *Reply {
	return b.Trigger(EventLedgersApplied, struct{}{})
}

func (b *Reply) TriggerSummaryRefresh() *Reply {
	return b.Trigger(EventSummaryRefresh, struct{}{})
}

// TriggerSummaryRecorded carries the recorder's reference for the new row.
func (b *Reply) TriggerSummaryRecorded(ref string) *Reply {
	return b.Trigger(EventSummaryRecorded, map[string]string{"ref": ref})
}

func (b *Reply) TriggerNotification(kind NotificationType, message string, durationMs int) *Reply {
	return b.Trigger(EventNotification, notification{Type: kind, Message: message, Duration: durationMs})
}

func (b *Reply) TriggerSuccessNotification(message string) *Reply {
	return b.TriggerNotification(NotificationSuccess, message, successDuration)
}

func (b *Reply) TriggerWarningNotification(message string) *Reply {
	return b.TriggerNotification(NotificationWarning, message, warningDuration)
}

func (b *Reply) Header(name, value string) *Reply {
	b.header.Set(name, value)
	return b
}

// HTML sets an HTML body.
func (b *Reply) HTML(body []byte) *Reply {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.body = body
	return b
}

// Write sends headers, status and body. Events that fail to encode are
// dropped rather than failing the response.
func (b *Reply) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range b.header {
		h[name] = values
	}
	if len(b.events) > 0 {
		if raw, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", string(raw))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse is a small HTML error fragment; message is escaped.
func ErrorResponse(status int, message string) *Reply {
	return NewReply().
		Status(status).
		HTML([]byte(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

func BadRequestError(message string) *Reply {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *Reply {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *Reply {
	return ErrorResponse(http.StatusInternalServerError, message)
}
