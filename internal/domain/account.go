/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Balances and amounts are stored as `int64` in cents, which avoids
 *   floating-point inaccuracies with financial data. API layers convert
 *   to and from decimal representation at the boundary.
 */

package domain

import "time"

// TransactionKind distinguishes the direction of a committed mutation.
type TransactionKind string

const (
	TransactionDeposit  TransactionKind = "deposit"
	TransactionWithdraw TransactionKind = "withdraw"
)

// Account represents a ledger account. This struct maps directly to the
// `accounts` table in the database. The non-negative balance invariant is
// enforced by the mutation coordinator on every committed change, and
// backed by a CHECK constraint in the schema.
type Account struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	BalanceCents  int64  `json:"balance_cents"`
}

// Transaction is the immutable audit record written in the same unit of
// work as the balance change it documents. Amount is always the positive
// magnitude of the mutation regardless of direction.
type Transaction struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Kind        TransactionKind `json:"kind"`
	AmountCents int64           `json:"amount_cents"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MutationResult is returned to callers after a successful balance mutation.
type MutationResult struct {
	AccountNumber   string `json:"account_number"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}

// BalanceResult is returned for read-only balance lookups.
type BalanceResult struct {
	AccountNumber string `json:"account_number"`
	BalanceCents  int64  `json:"balance_cents"`
}

// AmountRequest is the DTO for deposit and withdrawal API requests.
// Amount is a decimal value in whole currency units (e.g. 100.50).
type AmountRequest struct {
	Amount float64 `json:"amount"`
}

// TransactionRecordedEvent is the message payload published after a
// mutation commits. EventID makes consumers idempotent across redelivery.
type TransactionRecordedEvent struct {
	EventID         string          `json:"event_id"`
	AccountNumber   string          `json:"account_number"`
	Kind            TransactionKind `json:"kind"`
	AmountCents     int64           `json:"amount_cents"`
	NewBalanceCents int64           `json:"new_balance_cents"`
	Timestamp       time.Time       `json:"timestamp"`
}
