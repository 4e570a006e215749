package app

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vaultbank/ledger-service/internal/domain"
	"github.com/vaultbank/ledger-service/internal/store"
)

// memStore is an in-memory store.Repository that mimics the database's
// behavior closely enough for coordinator tests: per-account mutexes stand
// in for row locks, and writes stay invisible until Commit.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]*memAccount
	transactions []domain.Transaction
	nextTxID     int64

	// failure injection
	beginErr          error
	lockErr           error
	lockWait          func(ctx context.Context) error
	transientFailures int
}

type memAccount struct {
	rowLock sync.Mutex
	id      int64
	number  string
	balance int64
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*memAccount)}
}

func (s *memStore) addAccount(id int64, number string, balanceCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[number] = &memAccount{id: id, number: number, balance: balanceCents}
}

func (s *memStore) balanceOf(number string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[number].balance
}

func (s *memStore) transactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *memStore) lastTransaction() domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[len(s.transactions)-1]
}

// consumeTransient reports whether the next lock acquisition should fail
// with a retryable database error.
func (s *memStore) consumeTransient() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transientFailures > 0 {
		s.transientFailures--
		return true
	}
	return false
}

func (s *memStore) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return &domain.Account{ID: account.id, AccountNumber: account.number, BalanceCents: account.balance}, nil
}

func (s *memStore) ListTransactionsByAccountNumber(ctx context.Context, accountNumber string, limit, offset int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	var out []domain.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].AccountID == account.id {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *memStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memUnitOfWork{store: s}, nil
}

type memUnitOfWork struct {
	store *memStore

	locked     *memAccount
	newBalance int64
	dirty      bool
	pendingTx  *domain.Transaction
	done       bool
}

func (u *memUnitOfWork) GetAccountForUpdate(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if u.store.lockWait != nil {
		if err := u.store.lockWait(ctx); err != nil {
			return nil, err
		}
	}
	if u.store.lockErr != nil {
		return nil, u.store.lockErr
	}
	if u.store.consumeTransient() {
		return nil, &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	}

	u.store.mu.Lock()
	account, ok := u.store.accounts[accountNumber]
	u.store.mu.Unlock()
	if !ok {
		return nil, store.ErrAccountNotFound
	}

	account.rowLock.Lock()
	u.locked = account
	u.newBalance = account.balance
	return &domain.Account{ID: account.id, AccountNumber: account.number, BalanceCents: account.balance}, nil
}

func (u *memUnitOfWork) ApplyBalanceDelta(ctx context.Context, account *domain.Account, deltaCents int64) error {
	u.newBalance += deltaCents
	u.dirty = true
	account.BalanceCents = u.newBalance
	return nil
}

func (u *memUnitOfWork) AppendTransaction(ctx context.Context, accountID int64, kind domain.TransactionKind, amountCents int64) (*domain.Transaction, error) {
	u.pendingTx = &domain.Transaction{AccountID: accountID, Kind: kind, AmountCents: amountCents}
	return u.pendingTx, nil
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true

	u.store.mu.Lock()
	if u.locked != nil && u.dirty {
		u.locked.balance = u.newBalance
	}
	if u.pendingTx != nil {
		u.store.nextTxID++
		u.pendingTx.ID = u.store.nextTxID
		u.store.transactions = append(u.store.transactions, *u.pendingTx)
	}
	u.store.mu.Unlock()

	if u.locked != nil {
		u.locked.rowLock.Unlock()
		u.locked = nil
	}
	return nil
}

func (u *memUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if u.locked != nil {
		u.locked.rowLock.Unlock()
		u.locked = nil
	}
	return nil
}
