package log

import "log/slog"

// Attribute keys shared by every component.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldClientIP  = "client_ip"
	FieldError     = "error"
	FieldOperation = "operation"

	// HTTP
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"

	// Budget
	FieldLedger        = "ledger"
	FieldCategory      = "category"
	FieldAmount        = "amount"
	FieldTotalExpenses = "total_expenses"
	FieldDifference    = "difference"
	FieldRowRef        = "row_ref"
)

// Component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentSummary  = "summary"
	ComponentSession  = "session"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
	ComponentTemplate = "template"
)

// Operation names.
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpAppend   = "append"
	OpValidate = "validate"
	OpRender   = "render"
)

// Fields collects the attributes of one log line in the order they were
// added. The zero value is ready to use.
type Fields []slog.Attr

// Add appends an arbitrary attribute.
func (f Fields) Add(key string, value any) Fields {
	return append(f, slog.Any(key, value))
}

func (f Fields) Session(id string) Fields {
	return append(f, slog.String(FieldSessionID, id))
}

func (f Fields) Op(op string) Fields {
	return append(f, slog.String(FieldOperation, op))
}

func (f Fields) Component(name string) Fields {
	return append(f, slog.String(FieldComponent, name))
}

// Err adds the error message; a nil error adds nothing.
func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, slog.String(FieldError, err.Error()))
}

// Category describes a ledger entry.
func (f Fields) Category(ledger, name string, amount float64) Fields {
	return append(f,
		slog.String(FieldLedger, ledger),
		slog.String(FieldCategory, name),
		slog.Float64(FieldAmount, amount))
}
