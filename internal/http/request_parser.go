// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// form and JSON bodies, ledger path values and the batch form submitted by
// the "Calculate summary" action.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetform/internal/core"
	"budgetform/internal/session"
)

// Form field names shared by the templates and the handlers.
const (
	fieldName        = "name"
	fieldAmount      = "amount"
	fieldIncome      = "income"
	fieldSavings     = "savings"
	fieldInvestments = "investments"
	fieldFutureLimit = "future_limit"
)

// maxBodyBytes bounds request bodies; the form is a few dozen short fields.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Values returns every field as form values. JSON objects are flattened to
// their scalar members.
func (p *RequestBodyParser) Values() url.Values {
	if p.jsonData != nil {
		out := make(url.Values, len(p.jsonData))
		for k, v := range p.jsonData {
			out.Set(k, stringValue(v))
		}
		return out
	}
	if p.formData == nil {
		return url.Values{}
	}
	return p.formData
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *Reply {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ParseLedgerKind reads the {kind} path value.
func ParseLedgerKind(r *http.Request) (core.LedgerKind, error) {
	return core.ParseLedgerKind(strings.ToLower(r.PathValue("kind")))
}

// ParseTotals reads the four scalar inputs in the given currency. Blank
// fields count as 0.
func ParseTotals(form url.Values, currency string) (core.Totals, error) {
	var t core.Totals
	fields := []struct {
		name string
		dst  *float64
	}{
		{fieldIncome, &t.Income},
		{fieldSavings, &t.Savings},
		{fieldInvestments, &t.Investments},
		{fieldFutureLimit, &t.FutureLimit},
	}
	for _, f := range fields {
		v, err := core.ParseOptionalAmountIn(form.Get(f.name), currency)
		if err != nil {
			return core.Totals{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return t, nil
}

// hasTotals reports whether any of the totals fields was submitted.
func hasTotals(form url.Values) bool {
	for _, name := range []string{fieldIncome, fieldSavings, fieldInvestments, fieldFutureLimit} {
		if _, ok := form[name]; ok {
			return true
		}
	}
	return false
}

// ledgerFieldName is the form field carrying the amount of one category,
// e.g. "fixed:Housing".
func ledgerFieldName(kind core.LedgerKind, name string) string {
	return string(kind) + ":" + name
}

// ParseBatch collects every "<kind>:<category>" amount field and, when
// present, the totals into a session batch. Unknown ledger prefixes and
// malformed amounts are rejected so nothing is applied.
func ParseBatch(form url.Values, currency string) (session.Batch, error) {
	b := session.Batch{Amounts: make(map[core.LedgerKind]map[string]float64)}
	for key, values := range form {
		prefix, name, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		kind, err := core.ParseLedgerKind(prefix)
		if err != nil {
			return session.Batch{}, err
		}
		var raw string
		if len(values) > 0 {
			raw = values[0]
		}
		amount, err := core.ParseOptionalAmountIn(raw, currency)
		if err != nil {
			return session.Batch{}, fmt.Errorf("%s: %w", key, err)
		}
		if b.Amounts[kind] == nil {
			b.Amounts[kind] = make(map[string]float64)
		}
		b.Amounts[kind][name] = amount
	}
	if hasTotals(form) {
		t, err := ParseTotals(form, currency)
		if err != nil {
			return session.Batch{}, err
		}
		b.Totals = &t
	}
	return b, nil
}
