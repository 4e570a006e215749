package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock detected", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "wrapped lock timeout", err: fmt.Errorf("query failed: %w", &pgconn.PgError{Code: "55P03"}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "account not found", err: ErrAccountNotFound, want: false},
		{name: "insufficient funds", err: ErrInsufficientFunds, want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientError(tt.err); got != tt.want {
				t.Fatalf("IsTransientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
