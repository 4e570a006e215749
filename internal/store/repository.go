/**
 * @description
 * This file defines the `Repository` and `UnitOfWork` interfaces, which specify
 * the contract for all data access operations required by the ledger-service.
 * By defining interfaces, we decouple the mutation coordinator from the
 * specific database implementation (e.g., PostgreSQL), making the code more
 * modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/vaultbank/ledger-service/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// FindAccountByNumber performs a plain read with no locking, used for
	// read-only balance queries.
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)

	// ListTransactionsByAccountNumber returns the audit log for an account,
	// newest first.
	ListTransactionsByAccountNumber(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, error)

	// Begin opens a unit of work. All reads and writes on the returned
	// UnitOfWork use one underlying connection; nothing is visible outside
	// it until Commit.
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is a scoped sequence of reads and writes with atomic
// commit-or-rollback semantics. Rollback after Commit is a no-op, so
// callers can defer Rollback unconditionally.
type UnitOfWork interface {
	// GetAccountForUpdate acquires a row-level exclusive lock on the account,
	// held until the unit of work ends. Concurrent exclusive acquirers of the
	// same row block until release; distinct accounts never block each other.
	GetAccountForUpdate(ctx context.Context, accountNumber string) (*domain.Account, error)

	// ApplyBalanceDelta mutates the locked account's balance by deltaCents
	// and refreshes account.BalanceCents with the post-mutation value.
	// Callers must hold the row lock via GetAccountForUpdate.
	ApplyBalanceDelta(ctx context.Context, account *domain.Account, deltaCents int64) error

	// AppendTransaction inserts an immutable audit row for the mutation,
	// inside the same unit of work as the balance change it documents.
	AppendTransaction(ctx context.Context, accountID int64, kind domain.TransactionKind, amountCents int64) (*domain.Transaction, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
