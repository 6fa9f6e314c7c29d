package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationMatchesConstraint(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "tickets_token_key"}
	if !isUniqueViolation(err, "tickets_token_key") {
		t.Fatalf("expected match for named constraint")
	}
	if isUniqueViolation(err, "repos_owner_name_key") {
		t.Fatalf("must not match a different constraint")
	}
}

func TestIsUniqueViolationIgnoresOtherErrors(t *testing.T) {
	if isUniqueViolation(nil, "tickets_token_key") {
		t.Fatalf("nil is not a violation")
	}
	if isUniqueViolation(errors.New("plain"), "tickets_token_key") {
		t.Fatalf("plain error is not a violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}, "tickets_token_key") {
		t.Fatalf("serialization failure is not a unique violation")
	}
}

func TestIsUniqueViolationUnwraps(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505", ConstraintName: "payments_tx_hash_key"}
	wrapped := fmt.Errorf("insert payment: %w", inner)
	if !isUniqueViolation(wrapped, "payments_tx_hash_key") {
		t.Fatalf("expected wrapped violation to match")
	}
}
