package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestInspectNil(t *testing.T) {
	report := Inspect(nil)
	if report.Message != "" || len(report.Chain) != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if len(report.Fields()) != 0 {
		t.Fatalf("expected no fields, got %v", report.Fields())
	}
}

func TestInspectCodedError(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := fmt.Errorf("enqueue item: %w", Wrap(CodeDependency, cause, "queue insert"))

	report := Inspect(err)
	if report.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %q", report.Code)
	}
	if len(report.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(report.Chain), report.Chain)
	}
	if report.PGCode != "" {
		t.Fatalf("no driver error in chain, got pg_code %q", report.PGCode)
	}

	fields := report.Fields()
	if fields["error_code"] != string(CodeDependency) {
		t.Fatalf("unexpected error_code field %v", fields["error_code"])
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("empty pg fields must be dropped")
	}
}

func TestInspectLiftsDriverError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "notification_preferences_user_type_channel_key",
		TableName:      "notification_preferences",
		Detail:         "Key already exists.",
		Message:        "duplicate key value violates unique constraint",
	}
	err := fmt.Errorf("upsert preference: %w", pgErr)

	report := Inspect(err)
	if report.PGCode != "23505" {
		t.Fatalf("expected pg_code 23505, got %q", report.PGCode)
	}
	if report.PGConstraint != pgErr.ConstraintName {
		t.Fatalf("expected constraint %q, got %q", pgErr.ConstraintName, report.PGConstraint)
	}
	if report.PGTable != "notification_preferences" {
		t.Fatalf("unexpected table %q", report.PGTable)
	}

	fields := report.Fields()
	if fields["pg_constraint"] != pgErr.ConstraintName {
		t.Fatalf("unexpected pg_constraint field %v", fields["pg_constraint"])
	}
}
