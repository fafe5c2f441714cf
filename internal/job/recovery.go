package job

import (
	"context"
	"fmt"
	"time"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/providers"
)

// RecoverUnsettled scans for jobs whose credit reservation was never settled,
// typically because the process died between a terminal transition and the
// ledger call. Terminal jobs are settled exactly once according to the state
// they reached; non-terminal jobs untouched for longer than staleAfter are
// failed and refunded. Call once at startup, before accepting submissions.
func (o *Orchestrator) RecoverUnsettled(ctx context.Context, staleAfter time.Duration) error {
	jobs, err := o.store.ListUnsettled(ctx)
	if err != nil {
		return fmt.Errorf("list unsettled jobs: %w", err)
	}

	for _, job := range jobs {
		switch {
		case job.State == domain.JobStateCompleted:
			o.settleTerminal(ctx, job, true)
		case job.State == domain.JobStateFailed:
			o.settleTerminal(ctx, job, false)
		default:
			if staleAfter > 0 && time.Since(job.UpdatedAt) < staleAfter {
				// Fresh enough that another replica may still own it.
				continue
			}
			o.log.Warn().Str("job_id", job.ID).Str("state", string(job.State)).
				Msg("reaping job orphaned in a non-terminal state")
			o.failJob(ctx, job, providers.Fatal("interrupted by service restart", nil))
		}
	}
	return nil
}

func (o *Orchestrator) settleTerminal(ctx context.Context, job *domain.GenerationJob, commit bool) {
	if err := o.settle(ctx, job.Owner, job.CreditsReserved, commit); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Bool("commit", commit).
			Msg("recovery settlement failed, reservation left for next sweep")
		return
	}
	job.CreditsSettled = true
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("recovery settlement flag update failed")
		return
	}
	o.log.Info().Str("job_id", job.ID).Bool("commit", commit).Msg("recovered unsettled reservation")
}
