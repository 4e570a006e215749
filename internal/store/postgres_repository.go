/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` and
 * `UnitOfWork` interfaces. It contains all the SQL to interact with the
 * `accounts` and `transactions` tables, including the row-level locking
 * that serializes concurrent mutations against the same account.
 *
 * @dependencies
 * - context, fmt, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vaultbank/ledger-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresRepository creates a new instance of PostgresRepository.
// lockTimeout bounds how long a unit of work waits on a contended row
// before the attempt fails as transient contention; zero disables the bound.
func NewPostgresRepository(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, lockTimeout: lockTimeout}
}

// FindAccountByNumber retrieves an account without locking it.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, account_number, balance_cents FROM accounts WHERE account_number = $1`
	err := r.db.QueryRow(ctx, query, accountNumber).Scan(&account.ID, &account.AccountNumber, &account.BalanceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListTransactionsByAccountNumber retrieves the audit log for an account, newest first.
func (r *PostgresRepository) ListTransactionsByAccountNumber(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	// Resolve the account first so an unknown number is reported as not
	// found rather than an empty history.
	account, err := r.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, account_id, kind, amount_cents, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, account.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Kind, &tx.AmountCents, &tx.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

// Begin opens a database transaction and scopes a lock_timeout to it, so a
// blocked row acquisition surfaces as a classifiable error instead of
// waiting indefinitely.
func (r *PostgresRepository) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if r.lockTimeout > 0 {
		// SET LOCAL keeps the setting scoped to this transaction.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}

	return &pgxUnitOfWork{tx: tx}, nil
}

// pgxUnitOfWork wraps a pgx.Tx as a UnitOfWork.
type pgxUnitOfWork struct {
	tx pgx.Tx
}

func (u *pgxUnitOfWork) GetAccountForUpdate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, account_number, balance_cents FROM accounts WHERE account_number = $1 FOR UPDATE`
	err := u.tx.QueryRow(ctx, query, accountNumber).Scan(&account.ID, &account.AccountNumber, &account.BalanceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (u *pgxUnitOfWork) ApplyBalanceDelta(ctx context.Context, account *domain.Account, deltaCents int64) error {
	query := `UPDATE accounts SET balance_cents = balance_cents + $1 WHERE id = $2 RETURNING balance_cents`
	return u.tx.QueryRow(ctx, query, deltaCents, account.ID).Scan(&account.BalanceCents)
}

func (u *pgxUnitOfWork) AppendTransaction(ctx context.Context, accountID int64, kind domain.TransactionKind, amountCents int64) (*domain.Transaction, error) {
	tx := domain.Transaction{
		AccountID:   accountID,
		Kind:        kind,
		AmountCents: amountCents,
	}
	query := `
		INSERT INTO transactions (account_id, kind, amount_cents)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := u.tx.QueryRow(ctx, query, accountID, kind, amountCents).Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (u *pgxUnitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *pgxUnitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
