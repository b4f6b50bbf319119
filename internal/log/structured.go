package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the fixed-shape events of the budget form: request
// completions, ledger changes, recorded summaries and failures.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) log(ctx context.Context, level slog.Level, msg string, f Fields) {
	sl.logger.Logger.LogAttrs(ctx, level, msg, f...)
}

// LogHTTPEnd logs a finished request; 4xx are warnings and 5xx errors.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	f := Fields{
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.Int(FieldStatusCode, statusCode),
		slog.Int64(FieldDuration, durationMs),
		slog.String(FieldClientIP, clientIP),
	}
	if r.URL.RawQuery != "" {
		f = f.Add(FieldQuery, r.URL.RawQuery)
	}
	if ua := r.UserAgent(); ua != "" {
		f = f.Add(FieldUserAgent, ua)
	}
	sl.log(ctx, level, "HTTP request completed", f.Component(ComponentHTTP))
}

// LogLedgerChange logs an accepted category mutation.
func (sl *StructuredLogger) LogLedgerChange(ctx context.Context, sessionID, op, ledger, category string, amount float64) {
	f := Fields{}.
		Session(sessionID).
		Op(op).
		Category(ledger, category, amount).
		Component(ComponentLedger)
	sl.log(ctx, slog.LevelInfo, "Ledger updated", f)
}

// LogSummaryRecorded logs a row accepted by the recorder.
func (sl *StructuredLogger) LogSummaryRecorded(ctx context.Context, sessionID string, totalExpenses, difference float64, ref string) {
	f := Fields{}.
		Session(sessionID).
		Op(OpAppend).
		Add(FieldTotalExpenses, totalExpenses).
		Add(FieldDifference, difference).
		Add(FieldRowRef, ref).
		Component(ComponentSummary)
	sl.log(ctx, slog.LevelInfo, "Summary recorded", f)
}

// LogError logs err with extra fields, which may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, extra Fields) {
	f := append(Fields{}, extra...).Err(err).Op(operation).Component(component)
	sl.log(ctx, slog.LevelError, msg, f)
}
