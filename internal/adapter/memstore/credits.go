package memstore

import (
	"context"
	"fmt"
	"sync"

	"keyframe/server/internal/domain"
)

type account struct {
	balance  int
	reserved int
}

// CreditLedger is a mutex-guarded in-memory ledger. Reserve, Commit and
// Release each run under one critical section, giving the same atomicity as
// the conditional updates in the PostgreSQL adapter.
type CreditLedger struct {
	mu       sync.Mutex
	accounts map[string]*account
}

func NewCreditLedger() *CreditLedger {
	return &CreditLedger{accounts: make(map[string]*account)}
}

// SetBalance seeds a user's total balance. Intended for tests and dev runs.
func (l *CreditLedger) SetBalance(userID string, balance int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[userID] = &account{balance: balance}
}

func (l *CreditLedger) Balance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return acct.balance - acct.reserved, nil
}

func (l *CreditLedger) Reserve(_ context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("reserve amount must be positive, got %d", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok || acct.balance-acct.reserved < amount {
		return domain.ErrInsufficientCredits
	}
	acct.reserved += amount
	return nil
}

func (l *CreditLedger) Commit(_ context.Context, userID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok || acct.reserved < amount {
		return fmt.Errorf("commit of %d credits for user %s matched no reservation", amount, userID)
	}
	acct.reserved -= amount
	acct.balance -= amount
	return nil
}

func (l *CreditLedger) Release(_ context.Context, userID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[userID]
	if !ok || acct.reserved < amount {
		return fmt.Errorf("release of %d credits for user %s matched no reservation", amount, userID)
	}
	acct.reserved -= amount
	return nil
}

var _ domain.CreditLedger = (*CreditLedger)(nil)
