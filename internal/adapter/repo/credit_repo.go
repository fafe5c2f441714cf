package repo

import (
	"context"
	"fmt"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/sqlinline"
)

// CreditLedgerPG implements domain.CreditLedger on PostgreSQL. Reservations
// ride on a conditional update so concurrent submits against the same account
// cannot jointly exceed the balance.
type CreditLedgerPG struct {
	runner infra.SQLExecutor
}

// NewCreditLedger creates a credit ledger backed by PostgreSQL.
func NewCreditLedger(runner infra.SQLExecutor) *CreditLedgerPG {
	return &CreditLedgerPG{runner: runner}
}

// Balance returns the spendable balance (total minus outstanding holds).
func (l *CreditLedgerPG) Balance(ctx context.Context, userID string) (int, error) {
	row := l.runner.QueryRow(ctx, sqlinline.QGetSpendableBalance, userID)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Reserve places a hold on amount credits.
func (l *CreditLedgerPG) Reserve(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("reserve amount must be positive, got %d", amount)
	}
	tag, err := l.runner.Exec(ctx, sqlinline.QReserveCredits, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

// Commit consumes a prior hold.
func (l *CreditLedgerPG) Commit(ctx context.Context, userID string, amount int) error {
	tag, err := l.runner.Exec(ctx, sqlinline.QCommitCredits, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commit of %d credits for user %s matched no reservation", amount, userID)
	}
	return nil
}

// Release returns a prior hold to the spendable balance.
func (l *CreditLedgerPG) Release(ctx context.Context, userID string, amount int) error {
	tag, err := l.runner.Exec(ctx, sqlinline.QReleaseCredits, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release of %d credits for user %s matched no reservation", amount, userID)
	}
	return nil
}

var _ domain.CreditLedger = (*CreditLedgerPG)(nil)
