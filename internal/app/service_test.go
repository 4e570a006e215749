package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vaultbank/ledger-service/internal/domain"
	"github.com/vaultbank/ledger-service/internal/store"
)

func newTestService(repo store.Repository) *Service {
	svc := NewService(repo, nil, RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   4 * time.Millisecond,
	})
	return svc
}

func TestApplyWithdrawScenario(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000) // 500.00

	svc := newTestService(repo)
	result, err := svc.Apply(context.Background(), "123456", -10000)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if result.AccountNumber != "123456" {
		t.Fatalf("expected account number 123456, got %q", result.AccountNumber)
	}
	if result.NewBalanceCents != 40000 {
		t.Fatalf("expected new balance 40000 cents, got %d", result.NewBalanceCents)
	}

	if got := repo.transactionCount(); got != 1 {
		t.Fatalf("expected exactly one audit row, got %d", got)
	}
	tx := repo.lastTransaction()
	if tx.Kind != domain.TransactionWithdraw {
		t.Fatalf("expected withdraw kind, got %q", tx.Kind)
	}
	if tx.AmountCents != 10000 {
		t.Fatalf("expected positive magnitude 10000, got %d", tx.AmountCents)
	}
}

func TestApplyDepositThenWithdrawRestoresBalance(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 25050)

	svc := newTestService(repo)
	if _, err := svc.Apply(context.Background(), "123456", 10000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	result, err := svc.Apply(context.Background(), "123456", -10000)
	if err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	if result.NewBalanceCents != 25050 {
		t.Fatalf("expected balance restored to 25050, got %d", result.NewBalanceCents)
	}
	if got := repo.transactionCount(); got != 2 {
		t.Fatalf("expected two audit rows, got %d", got)
	}
}

func TestApplyUnknownAccount(t *testing.T) {
	repo := newMemStore()

	svc := newTestService(repo)
	_, err := svc.Apply(context.Background(), "000000", 5000)
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if got := repo.transactionCount(); got != 0 {
		t.Fatalf("expected no audit rows, got %d", got)
	}
}

func TestApplyInsufficientFundsBoundary(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)

	svc := newTestService(repo)

	// One cent over the balance fails without touching anything.
	_, err := svc.Apply(context.Background(), "123456", -50001)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := repo.balanceOf("123456"); got != 50000 {
		t.Fatalf("failed withdrawal must not change balance, got %d", got)
	}
	if got := repo.transactionCount(); got != 0 {
		t.Fatalf("failed withdrawal must not create audit rows, got %d", got)
	}

	// Withdrawing the exact balance succeeds and lands on zero.
	result, err := svc.Apply(context.Background(), "123456", -50000)
	if err != nil {
		t.Fatalf("exact-balance withdrawal failed: %v", err)
	}
	if result.NewBalanceCents != 0 {
		t.Fatalf("expected zero balance, got %d", result.NewBalanceCents)
	}
}

func TestApplyConcurrentWithdrawals(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000) // 500.00

	svc := newTestService(repo)

	const workers = 10
	results := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = svc.Apply(context.Background(), "123456", -10000)
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful withdrawals, got %d", succeeded)
	}
	if insufficient != 5 {
		t.Fatalf("expected exactly 5 insufficient-funds failures, got %d", insufficient)
	}
	if got := repo.balanceOf("123456"); got != 0 {
		t.Fatalf("expected final balance 0, got %d", got)
	}
	if got := repo.transactionCount(); got != 5 {
		t.Fatalf("expected one audit row per success, got %d", got)
	}
}

func TestApplyRetriesTransientContention(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	repo.transientFailures = 2

	svc := newTestService(repo)
	result, err := svc.Apply(context.Background(), "123456", -10000)
	if err != nil {
		t.Fatalf("expected recovery after transient contention, got %v", err)
	}
	if result.NewBalanceCents != 40000 {
		t.Fatalf("expected new balance 40000, got %d", result.NewBalanceCents)
	}
}

func TestApplyContentionExceedsRetryCeiling(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	repo.transientFailures = 100

	svc := newTestService(repo)
	_, err := svc.Apply(context.Background(), "123456", -10000)
	if !errors.Is(err, ErrContentionExceeded) {
		t.Fatalf("expected ErrContentionExceeded, got %v", err)
	}
	if got := repo.balanceOf("123456"); got != 50000 {
		t.Fatalf("exhausted retries must leave balance unchanged, got %d", got)
	}
	if got := repo.transactionCount(); got != 0 {
		t.Fatalf("exhausted retries must not create audit rows, got %d", got)
	}
}

func TestApplyDeadlineMapsToContentionExceeded(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	repo.transientFailures = 100

	svc := NewService(repo, nil, RetryPolicy{
		MaxRetries: 50,
		BaseDelay:  20 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := svc.Apply(ctx, "123456", -10000)
	if !errors.Is(err, ErrContentionExceeded) {
		t.Fatalf("expected deadline to surface as ErrContentionExceeded, got %v", err)
	}
}

func TestApplyDeadlineDuringLockWaitMapsToContentionExceeded(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	// Lock acquisition blocks until the caller's deadline expires, as when
	// the row is held by a slow writer and ctx is shorter than the
	// configured lock_timeout.
	repo.lockWait = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	svc := newTestService(repo)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Apply(ctx, "123456", -10000)
	if !errors.Is(err, ErrContentionExceeded) {
		t.Fatalf("expected deadline during lock wait to surface as ErrContentionExceeded, got %v", err)
	}
	if got := repo.balanceOf("123456"); got != 50000 {
		t.Fatalf("expired deadline must leave balance unchanged, got %d", got)
	}
	if got := repo.transactionCount(); got != 0 {
		t.Fatalf("expired deadline must not create audit rows, got %d", got)
	}
}

func TestApplyStorageErrorIsTerminal(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	repo.lockErr = errors.New("connection reset by peer")

	svc := newTestService(repo)
	_, err := svc.Apply(context.Background(), "123456", -10000)
	if err == nil {
		t.Fatal("expected storage failure")
	}
	if errors.Is(err, ErrContentionExceeded) || errors.Is(err, store.ErrInsufficientFunds) || errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("storage failure must not match a business error kind: %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset by peer") {
		t.Fatalf("expected underlying cause preserved, got %v", err)
	}
}

func TestApplyPublishesRecordedEvent(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)
	publisher := &capturePublisher{}

	svc := NewService(repo, publisher, RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	if _, err := svc.Apply(context.Background(), "123456", 2500); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	events := publisher.recorded()
	if len(events) != 1 {
		t.Fatalf("expected one published event, got %d", len(events))
	}
	event := events[0]
	if event.EventID == "" {
		t.Fatal("expected a generated event id")
	}
	if event.Kind != domain.TransactionDeposit || event.AmountCents != 2500 || event.NewBalanceCents != 52500 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestApplyFailureDoesNotPublish(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 1000)
	publisher := &capturePublisher{}

	svc := NewService(repo, publisher, RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	if _, err := svc.Apply(context.Background(), "123456", -5000); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := len(publisher.recorded()); got != 0 {
		t.Fatalf("failed mutation must not publish events, got %d", got)
	}
}

func TestGetBalance(t *testing.T) {
	repo := newMemStore()
	repo.addAccount(1, "123456", 50000)

	svc := newTestService(repo)
	result, err := svc.GetBalance(context.Background(), "123456")
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if result.BalanceCents != 50000 {
		t.Fatalf("expected 50000 cents, got %d", result.BalanceCents)
	}

	if _, err := svc.GetBalance(context.Background(), "000000"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.TransactionRecordedEvent
}

func (p *capturePublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	return nil
}

func (p *capturePublisher) PublishTransactionRecorded(ctx context.Context, event domain.TransactionRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) recorded() []domain.TransactionRecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TransactionRecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}
