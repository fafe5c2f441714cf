package job

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyframe/server/internal/adapter/memstore"
	"keyframe/server/internal/domain"
	"keyframe/server/internal/ratelimit"
)

// seedJob plants a job record as a crashed process would have left it.
func seedJob(t *testing.T, store domain.JobStore, id string, state domain.JobState, reserved int, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), &domain.GenerationJob{
		ID:              id,
		Owner:           "u1",
		State:           state,
		Artifacts:       map[string]string{},
		CreditsReserved: reserved,
		CreatedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		Version:         1,
	}))
}

func TestRecoverSettlesTerminalJobs(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewJobStore()
	ledger := &countingLedger{CreditLedger: memstore.NewCreditLedger()}
	ledger.SetBalance("u1", 200)
	require.NoError(t, ledger.Reserve(ctx, "u1", 50))
	require.NoError(t, ledger.Reserve(ctx, "u1", 70))

	now := time.Now().UTC()
	// Died after reaching Completed but before committing.
	seedJob(t, store, "done", domain.JobStateCompleted, 50, now)
	// Died after reaching Failed but before refunding.
	seedJob(t, store, "broken", domain.JobStateFailed, 70, now)

	orch := NewOrchestrator(store, ledger, ratelimit.New(ratelimit.NewMemoryStore()),
		&fakeFrames{}, &fakeInterp{}, zerolog.Nop(), Config{SettleMaxRetries: 1})
	require.NoError(t, orch.RecoverUnsettled(ctx, time.Hour))

	commits, releases := ledger.counts()
	assert.Equal(t, []int{50}, commits)
	assert.Equal(t, []int{70}, releases)

	for _, id := range []string{"done", "broken"} {
		job, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, job.CreditsSettled, "job %s left unsettled", id)
	}

	// A second sweep finds nothing to do.
	require.NoError(t, orch.RecoverUnsettled(ctx, time.Hour))
	commits, releases = ledger.counts()
	assert.Len(t, commits, 1)
	assert.Len(t, releases, 1)

	spendable, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, spendable)
}

func TestRecoverReapsStaleRunningJobs(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewJobStore()
	ledger := &countingLedger{CreditLedger: memstore.NewCreditLedger()}
	ledger.SetBalance("u1", 100)
	require.NoError(t, ledger.Reserve(ctx, "u1", 50))

	seedJob(t, store, "orphan", domain.JobStateGeneratingVideo, 50, time.Now().UTC().Add(-2*time.Hour))

	orch := NewOrchestrator(store, ledger, ratelimit.New(ratelimit.NewMemoryStore()),
		&fakeFrames{}, &fakeInterp{}, zerolog.Nop(), Config{SettleMaxRetries: 1})
	require.NoError(t, orch.RecoverUnsettled(ctx, time.Hour))

	job, err := store.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, job.State)
	assert.Equal(t, "interrupted by service restart", job.Error)
	assert.True(t, job.CreditsSettled)

	_, releases := ledger.counts()
	assert.Equal(t, []int{50}, releases)

	spendable, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, spendable)
}

func TestRecoverLeavesFreshRunningJobsAlone(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewJobStore()
	ledger := &countingLedger{CreditLedger: memstore.NewCreditLedger()}
	ledger.SetBalance("u1", 100)
	require.NoError(t, ledger.Reserve(ctx, "u1", 50))

	seedJob(t, store, "live", domain.JobStateGeneratingFirstFrame, 50, time.Now().UTC())

	orch := NewOrchestrator(store, ledger, ratelimit.New(ratelimit.NewMemoryStore()),
		&fakeFrames{}, &fakeInterp{}, zerolog.Nop(), Config{SettleMaxRetries: 1})
	require.NoError(t, orch.RecoverUnsettled(ctx, time.Hour))

	job, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateGeneratingFirstFrame, job.State)
	assert.False(t, job.CreditsSettled)

	commits, releases := ledger.counts()
	assert.Empty(t, commits)
	assert.Empty(t, releases)
}
