package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is a flattened error chain for worker logs. When a postgres driver
// error hides anywhere in the chain its diagnostics are lifted out, so the
// failing constraint or column is visible without replaying the query.
type Report struct {
	Message string   `json:"message"`
	Code    Code     `json:"code,omitempty"`
	Chain   []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Inspect walks the unwrap chain of err and collects what a log line needs
// to diagnose it. Inspect(nil) returns a zero Report.
func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}

	report := Report{Message: err.Error()}
	if typed := As(err); typed != nil {
		report.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		report.Chain = append(report.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		report.PGCode = pgxErr.Code
		report.PGConstraint = pgxErr.ConstraintName
		report.PGTable = pgxErr.TableName
		report.PGColumn = pgxErr.ColumnName
		report.PGDetail = pgxErr.Detail
		report.PGMessage = pgxErr.Message
		return report
	}

	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		report.PGCode = string(pqErr.Code)
		report.PGConstraint = pqErr.Constraint
		report.PGTable = pqErr.Table
		report.PGColumn = pqErr.Column
		report.PGDetail = pqErr.Detail
		report.PGMessage = pqErr.Message
	}
	return report
}

// Fields renders the report for a structured log context, dropping empties.
// Message is omitted since the log line already carries the error itself.
func (r Report) Fields() map[string]any {
	fields := map[string]any{}
	if r.Code != "" {
		fields["error_code"] = string(r.Code)
	}
	if len(r.Chain) > 0 {
		fields["error_chain"] = r.Chain
	}
	for key, value := range map[string]string{
		"pg_code":       r.PGCode,
		"pg_constraint": r.PGConstraint,
		"pg_table":      r.PGTable,
		"pg_column":     r.PGColumn,
		"pg_detail":     r.PGDetail,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
