package domain

import "context"

// JobStore defines persistence for generation jobs.
type JobStore interface {
	Create(ctx context.Context, job *GenerationJob) error
	// Get returns a copy of the stored job or ErrNotFound.
	Get(ctx context.Context, jobID string) (*GenerationJob, error)
	// Update writes the job conditionally on job.Version matching the stored
	// record. On success the stored version (and job.Version) advance by one;
	// a mismatch returns ErrVersionConflict and leaves the record untouched.
	Update(ctx context.Context, job *GenerationJob) error
	// ListUnsettled returns jobs whose credit reservation has not been
	// committed or released yet. Used by startup recovery.
	ListUnsettled(ctx context.Context) ([]*GenerationJob, error)
}

// CreditLedger is the billing collaborator the orchestrator settles against.
// Reserve must be atomic: concurrent reservations against the same balance
// must not oversubscribe it.
type CreditLedger interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Reserve places a hold on amount credits, or returns
	// ErrInsufficientCredits when the spendable balance is too low.
	Reserve(ctx context.Context, userID string, amount int) error
	// Commit consumes a prior reservation. Called exactly once per
	// reservation, only after the job completed.
	Commit(ctx context.Context, userID string, amount int) error
	// Release returns a prior reservation to the spendable balance. Called
	// exactly once per reservation, only after the job failed or was canceled.
	Release(ctx context.Context, userID string, amount int) error
}
