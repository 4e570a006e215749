/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct is the mutation coordinator: it executes each balance
 * change as one atomic unit of work (exclusive row access, invariant check,
 * delta, audit insert, commit), retries transient contention with bounded
 * exponential backoff, and classifies every failure for the caller.
 *
 * Key properties:
 * - Serialization is per account row, never a process-global lock, so
 *   mutations against distinct accounts run in parallel.
 * - Exclusive access is acquired inside the same unit of work that performs
 *   the mutation and the audit insert. The lock scope exactly covers the
 *   read-check-write sequence, which is what prevents two concurrent
 *   withdrawals from both observing a sufficient balance.
 * - Business-rule failures (not found, insufficient funds) are terminal and
 *   never retried; only transient contention re-enters the loop.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Event ids for published ledger events.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For publishing post-commit events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vaultbank/ledger-service/internal/domain"
	"github.com/vaultbank/ledger-service/internal/store"
	"github.com/vaultbank/ledger-service/pkg/rabbitmq"
)

// ErrContentionExceeded indicates the retry budget (or the caller's
// deadline) was exhausted by repeated transient contention. The balance is
// unchanged and no audit row was written.
var ErrContentionExceeded = errors.New("too many concurrent transactions; please retry")

// RetryPolicy bounds the coordinator's retry loop on transient contention.
type RetryPolicy struct {
	MaxRetries int           // attempts after the first; 0 disables retries
	BaseDelay  time.Duration // backoff delay before the first retry
	MaxDelay   time.Duration // ceiling for the doubled delay
}

// DefaultRetryPolicy matches the store's default lock timeout: five retries
// starting at 50ms keeps worst-case added latency under two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}

// Service provides the core ledger operations.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	retry         RetryPolicy
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewService creates a new ledger service instance. producer may be nil,
// in which case no events are published.
func NewService(repo store.Repository, producer rabbitmq.Publisher, retry RetryPolicy) *Service {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 50 * time.Millisecond
	}
	if retry.MaxDelay < retry.BaseDelay {
		retry.MaxDelay = retry.BaseDelay
	}
	return &Service{
		repo:          repo,
		eventProducer: producer,
		retry:         retry,
		sleep:         sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetBalance retrieves the current balance for an account. Plain read, no
// locking.
func (s *Service) GetBalance(ctx context.Context, accountNumber string) (*domain.BalanceResult, error) {
	account, err := s.repo.FindAccountByNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("storage failure: %w", err)
	}
	return &domain.BalanceResult{
		AccountNumber: account.AccountNumber,
		BalanceCents:  account.BalanceCents,
	}, nil
}

// ListTransactions returns the audit log for an account, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, error) {
	transactions, err := s.repo.ListTransactionsByAccountNumber(ctx, accountNumber, limit, offset)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("storage failure: %w", err)
	}
	return transactions, nil
}

// Apply executes a single signed balance mutation against an account:
// positive deltaCents deposits, negative withdraws. It returns the
// post-mutation balance on success, or exactly one of
// store.ErrAccountNotFound, store.ErrInsufficientFunds,
// ErrContentionExceeded, or a wrapped storage error.
//
// The account number is expected to be pre-validated by the caller.
func (s *Service) Apply(ctx context.Context, accountNumber string, deltaCents int64) (*domain.MutationResult, error) {
	var lastTransient error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > s.retry.MaxRetries {
				log.Printf("level=warn component=coordinator msg=\"retry budget exhausted\" account_number=%s attempts=%d last_err=%v",
					accountNumber, attempt, lastTransient)
				return nil, fmt.Errorf("%w (after %d attempts): %v", ErrContentionExceeded, attempt, lastTransient)
			}
			delay := BackoffDelay(attempt, s.retry.BaseDelay, s.retry.MaxDelay)
			if err := s.sleep(ctx, delay); err != nil {
				// The caller's overall deadline expired mid-retry; report it
				// as contention rather than hanging or surfacing a raw
				// context error.
				return nil, fmt.Errorf("%w: %v", ErrContentionExceeded, err)
			}
		}

		result, kind, amount, err := s.applyOnce(ctx, accountNumber, deltaCents)
		if err == nil {
			s.publishRecorded(ctx, result, kind, amount)
			return result, nil
		}
		if errors.Is(err, store.ErrAccountNotFound) || errors.Is(err, store.ErrInsufficientFunds) {
			return nil, err
		}
		if store.IsTransientError(err) {
			lastTransient = err
			log.Printf("level=info component=coordinator msg=\"transient contention; retrying\" account_number=%s attempt=%d err=%v",
				accountNumber, attempt+1, err)
			continue
		}
		if ctx.Err() != nil {
			// The caller's overall deadline expired inside the store call,
			// typically while waiting on the row lock. Same surface as a
			// deadline expiring between retries.
			return nil, fmt.Errorf("%w: %v", ErrContentionExceeded, err)
		}
		return nil, fmt.Errorf("storage failure: %w", err)
	}
}

// applyOnce runs one attempt as a single unit of work. Any failure path
// rolls back before returning, so no partial state is ever visible.
func (s *Service) applyOnce(ctx context.Context, accountNumber string, deltaCents int64) (*domain.MutationResult, domain.TransactionKind, int64, error) {
	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, "", 0, err
	}
	defer func() {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			log.Printf("level=error component=coordinator msg=\"rollback failed\" account_number=%s err=%v", accountNumber, rbErr)
		}
	}()

	account, err := uow.GetAccountForUpdate(ctx, accountNumber)
	if err != nil {
		return nil, "", 0, err
	}

	kind := domain.TransactionDeposit
	amount := deltaCents
	if deltaCents < 0 {
		kind = domain.TransactionWithdraw
		amount = -deltaCents
	}

	// The invariant is checked on the post-mutation value while the row
	// lock is held.
	if account.BalanceCents+deltaCents < 0 {
		return nil, "", 0, store.ErrInsufficientFunds
	}

	if err := uow.ApplyBalanceDelta(ctx, account, deltaCents); err != nil {
		return nil, "", 0, err
	}
	if _, err := uow.AppendTransaction(ctx, account.ID, kind, amount); err != nil {
		return nil, "", 0, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, "", 0, err
	}

	return &domain.MutationResult{
		AccountNumber:   account.AccountNumber,
		NewBalanceCents: account.BalanceCents,
	}, kind, amount, nil
}

// publishRecorded emits a post-commit event, best effort. A publish failure
// never affects the mutation result.
func (s *Service) publishRecorded(ctx context.Context, result *domain.MutationResult, kind domain.TransactionKind, amountCents int64) {
	if s.eventProducer == nil {
		return
	}
	event := domain.TransactionRecordedEvent{
		EventID:         uuid.New().String(),
		AccountNumber:   result.AccountNumber,
		Kind:            kind,
		AmountCents:     amountCents,
		NewBalanceCents: result.NewBalanceCents,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.eventProducer.PublishTransactionRecorded(ctx, event); err != nil {
		log.Printf("level=warn component=coordinator msg=\"event publish failed\" account_number=%s err=%v", result.AccountNumber, err)
	}
}
