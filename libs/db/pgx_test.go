package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassifiers(t *testing.T) {
	if !IsNotFound(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to be not found")
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "reservations_booking_reference_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", unique)) {
		t.Fatalf("expected unique violation")
	}
	if !IsConstraint(unique, "reservations_booking_reference_key") {
		t.Fatalf("expected constraint match")
	}
	if IsConstraint(unique, "other") {
		t.Fatalf("unexpected constraint match")
	}

	fk := &pgconn.PgError{Code: "23503"}
	if !IsForeignKeyViolation(fk) || IsUniqueViolation(fk) {
		t.Fatalf("foreign key classification wrong")
	}
}
