// Package job implements the generation job orchestrator: admission control,
// the linear phase state machine that drives the two synthesis providers, and
// credit settlement on terminal states.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/providers"
	"keyframe/server/internal/providers/prompt"
	"keyframe/server/internal/ratelimit"
)

// Progress watermarks per phase. Informational only: nothing branches on
// progress, it exists for the polling client.
const (
	progressFirstFrameStart = 10
	progressFirstFrameDone  = 40
	progressLastFrameDone   = 55
	progressVideoStart      = 60
	progressVideoDone       = 95
	progressComplete        = 100
)

const rateLimitAction = "generation"

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	// FrameTimeout bounds each keyframe synthesis call; VideoTimeout bounds
	// the interpolation task, which is the slowest phase by far and gets its
	// own budget rather than sharing one job-wide deadline.
	FrameTimeout time.Duration
	VideoTimeout time.Duration
	// MaxPhaseAttempts bounds retries of a phase on retryable provider errors.
	MaxPhaseAttempts int

	// RateWindow and RateLimits drive admission: one sliding window size,
	// per-plan request budgets.
	RateWindow time.Duration
	RateLimits map[domain.UserPlan]int

	// SettleMaxRetries bounds ledger retry attempts per settlement.
	SettleMaxRetries uint64
}

func (c *Config) applyDefaults() {
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 45 * time.Second
	}
	if c.VideoTimeout <= 0 {
		c.VideoTimeout = 5 * time.Minute
	}
	if c.MaxPhaseAttempts < 1 {
		c.MaxPhaseAttempts = 3
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Hour
	}
	if len(c.RateLimits) == 0 {
		c.RateLimits = map[domain.UserPlan]int{
			domain.UserPlanFree:    5,
			domain.UserPlanPro:     30,
			domain.UserPlanPremium: 120,
		}
	}
	if c.SettleMaxRetries == 0 {
		c.SettleMaxRetries = 6
	}
}

// Orchestrator owns the full lifecycle of generation jobs. Each accepted job
// runs in its own supervised goroutine; the only cross-job shared state lives
// in the store, the ledger and the rate limiter.
type Orchestrator struct {
	store   domain.JobStore
	ledger  domain.CreditLedger
	limiter *ratelimit.Limiter
	frames  providers.Adapter
	interp  providers.Adapter
	log     infra.Logger
	cfg     Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
}

// NewOrchestrator wires the orchestrator. frames is the still-image adapter
// (invoked once per keyframe), interp the frame-interpolation adapter.
func NewOrchestrator(store domain.JobStore, ledger domain.CreditLedger, limiter *ratelimit.Limiter,
	frames, interp providers.Adapter, logger infra.Logger, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		store:   store,
		ledger:  ledger,
		limiter: limiter,
		frames:  frames,
		interp:  interp,
		log:     logger,
		cfg:     cfg,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit admits a generation request: rate limit, credit reservation, job
// record, background execution. Admission failures return before any job
// exists; a reservation stranded by a failed create is released on the spot.
func (o *Orchestrator) Submit(ctx context.Context, owner string, plan domain.UserPlan, req domain.GenerationRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	maxRequests := o.cfg.RateLimits[plan]
	if maxRequests <= 0 {
		maxRequests = o.cfg.RateLimits[domain.UserPlanFree]
	}
	decision, err := o.limiter.Check(ctx, ratelimit.Key(rateLimitAction, owner), o.cfg.RateWindow, maxRequests)
	if err != nil {
		// Fail closed: an unreachable limiter store denies admission.
		o.log.Error().Err(err).Str("user_id", owner).Msg("rate limiter store unavailable")
		return "", fmt.Errorf("%w: limiter unavailable", domain.ErrRateLimited)
	}
	if !decision.Allowed {
		return "", fmt.Errorf("%w: retry after %s", domain.ErrRateLimited, decision.ResetAt.UTC().Format(time.RFC3339))
	}

	cost := domain.CreditCost(req)
	if err := o.ledger.Reserve(ctx, owner, cost); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInsufficientCredits
		}
		return "", err
	}

	now := time.Now().UTC()
	job := &domain.GenerationJob{
		ID:              uuid.NewString(),
		Owner:           owner,
		Request:         req,
		State:           domain.JobStatePending,
		Progress:        0,
		Artifacts:       map[string]string{},
		CreditsReserved: cost,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if err := o.store.Create(ctx, job); err != nil {
		if relErr := o.ledger.Release(ctx, owner, cost); relErr != nil {
			o.log.Error().Err(relErr).Str("user_id", owner).Int("amount", cost).
				Msg("stranded reservation after failed job create")
		}
		return "", fmt.Errorf("create job: %w", err)
	}

	if !o.startRunner(job.ID) {
		// Close won the race after the job was created; conclude it here so
		// neither the record nor the reservation waits for a recovery sweep.
		o.failJob(ctx, job, providers.Fatal("service shutting down", nil))
		return "", errors.New("orchestrator is shutting down")
	}
	o.log.Info().Str("job_id", job.ID).Str("user_id", owner).Int("credits", cost).Msg("job admitted")
	return job.ID, nil
}

// GetStatus returns the current persisted job state. Cheap enough to poll.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return o.store.Get(ctx, jobID)
}

// Cancel requests a user-initiated abort. The running phase observes the
// cancellation at the next suspension point; credits are always released.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, owner string) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Owner != owner {
		return domain.ErrForbidden
	}
	if job.State.IsTerminal() {
		return domain.ErrInvalidJobState
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	// No live runner owns the job (e.g. it was orphaned by a restart):
	// settle it here instead.
	o.failJob(context.Background(), job, providers.Canceled(nil))
	return nil
}

// Close stops accepting work, cancels running jobs and waits for their
// runners to settle.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// startRunner spawns the job's goroutine. It reports false when the
// orchestrator closed in the meantime, in which case no runner owns the job.
func (o *Orchestrator) startRunner(jobID string) bool {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return false
	}
	o.cancels[jobID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(runCtx, jobID)
	return true
}

func (o *Orchestrator) finishRunner(jobID string, cancel func()) {
	cancel()
	o.mu.Lock()
	delete(o.cancels, jobID)
	o.mu.Unlock()
	o.wg.Done()
}

// run drives one job through the linear phase sequence. Every exit path,
// including panics, lands the job in a terminal state with its reservation
// settled; store writes go through the persisted CAS version so a duplicate
// runner cannot corrupt the record.
func (o *Orchestrator) run(ctx context.Context, jobID string) {
	var job *domain.GenerationJob
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("job_id", jobID).Interface("panic", r).Msg("job runner panicked")
			if job != nil {
				o.failJob(context.Background(), job, providers.Fatal("internal error", fmt.Errorf("panic: %v", r)))
			}
		}
	}()

	o.mu.Lock()
	cancel := o.cancels[jobID]
	o.mu.Unlock()
	defer o.finishRunner(jobID, cancel)

	// The runner deliberately reads and writes with a background-derived
	// context: the submitting HTTP request is long gone.
	storeCtx := context.Background()

	job, err := o.store.Get(storeCtx, jobID)
	if err != nil {
		o.log.Error().Err(err).Str("job_id", jobID).Msg("runner could not load job")
		return
	}

	// Phase: first keyframe.
	if !o.transition(storeCtx, job, domain.JobStateGeneratingFirstFrame, progressFirstFrameStart) {
		return
	}
	firstURL, err := o.invokePhase(ctx, o.frames, providers.Params{
		Prompt:      prompt.FirstFrame(job.Request),
		Style:       job.Request.Style,
		AspectRatio: job.Request.AspectRatio,
		Quality:     job.Request.Quality,
		RequestID:   job.ID,
		Phase:       domain.ArtifactFirstFrame,
	}, o.cfg.FrameTimeout, nil)
	if err != nil {
		o.failJob(storeCtx, job, err)
		return
	}
	job.Artifacts[domain.ArtifactFirstFrame] = firstURL
	job.Progress = progressFirstFrameDone

	// Phase: last keyframe.
	if !o.transition(storeCtx, job, domain.JobStateGeneratingLastFrame, job.Progress) {
		return
	}
	lastURL, err := o.invokePhase(ctx, o.frames, providers.Params{
		Prompt:      prompt.LastFrame(job.Request),
		Style:       job.Request.Style,
		AspectRatio: job.Request.AspectRatio,
		Quality:     job.Request.Quality,
		RequestID:   job.ID,
		Phase:       domain.ArtifactLastFrame,
	}, o.cfg.FrameTimeout, nil)
	if err != nil {
		o.failJob(storeCtx, job, err)
		return
	}
	job.Artifacts[domain.ArtifactLastFrame] = lastURL
	job.Progress = progressLastFrameDone

	// Phase: interpolation. Provider progress, when reported, is mapped into
	// the video band; otherwise the bar jumps from entry to the watermark.
	if !o.transition(storeCtx, job, domain.JobStateGeneratingVideo, progressVideoStart) {
		return
	}
	videoURL, err := o.invokePhase(ctx, o.interp, providers.Params{
		FirstFrameURL:   job.Artifacts[domain.ArtifactFirstFrame],
		LastFrameURL:    job.Artifacts[domain.ArtifactLastFrame],
		Motion:          job.Request.Motion,
		Camera:          job.Request.Camera,
		DurationSeconds: job.Request.DurationSeconds,
		AspectRatio:     job.Request.AspectRatio,
		Quality:         job.Request.Quality,
		RequestID:       job.ID,
		Phase:           domain.ArtifactVideo,
	}, o.cfg.VideoTimeout, func(pct int) {
		o.reportVideoProgress(storeCtx, job, pct)
	})
	if err != nil {
		o.failJob(storeCtx, job, err)
		return
	}
	job.Artifacts[domain.ArtifactVideo] = videoURL
	job.Progress = progressVideoDone

	// Phase: finalize. The thumbnail reuses the opening keyframe rather than
	// invoking a third provider.
	if !o.transition(storeCtx, job, domain.JobStateFinalizing, job.Progress) {
		return
	}
	job.Artifacts[domain.ArtifactThumbnail] = job.Artifacts[domain.ArtifactFirstFrame]

	// Commit first; only a settled reservation may surface as Completed. A
	// commit that keeps failing is a financial-integrity problem, so the job
	// fails loudly and the reservation falls back to the release path.
	if err := o.settle(storeCtx, job.Owner, job.CreditsReserved, true); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("credit commit failed after retries")
		o.failJob(storeCtx, job, providers.Fatal("could not settle credits", err))
		return
	}
	job.CreditsSettled = true
	job.State = domain.JobStateCompleted
	job.Progress = progressComplete
	job.Error = ""
	if err := o.store.Update(storeCtx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("terminal update failed after commit")
		return
	}
	o.log.Info().Str("job_id", job.ID).Str("user_id", job.Owner).Msg("job completed")
}

// transition persists the next state. Cancellation is observed here, at the
// phase boundary, even when the provider call itself could not be interrupted.
func (o *Orchestrator) transition(ctx context.Context, job *domain.GenerationJob, next domain.JobState, progress int) bool {
	if progress > job.Progress {
		job.Progress = progress
	}
	job.State = next
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Str("state", string(next)).Msg("state transition failed")
		o.failJob(ctx, job, providers.Fatal("could not persist job state", err))
		return false
	}
	o.log.Debug().Str("job_id", job.ID).Str("state", string(next)).Int("progress", job.Progress).Msg("phase entered")
	return true
}

// invokePhase runs one provider call with a per-phase deadline and bounded
// retries on retryable errors. Caller cancellation always wins over retries.
func (o *Orchestrator) invokePhase(ctx context.Context, adapter providers.Adapter, p providers.Params,
	timeout time.Duration, onProgress func(int)) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second

	var lastErr *providers.Error
	for attempt := 1; attempt <= o.cfg.MaxPhaseAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", providers.Canceled(ctx.Err())
		}

		phaseCtx, cancel := context.WithTimeout(ctx, timeout)
		var (
			url string
			err error
		)
		if pa, ok := adapter.(providers.ProgressAdapter); ok && onProgress != nil {
			url, err = pa.InvokeWithProgress(phaseCtx, p, onProgress)
		} else {
			url, err = adapter.Invoke(phaseCtx, p)
		}
		cancel()

		if err == nil {
			return url, nil
		}
		lastErr = providers.Classify(err)
		if lastErr.Kind == providers.KindCanceled && ctx.Err() != nil {
			return "", lastErr
		}
		if !lastErr.Retryable() || attempt == o.cfg.MaxPhaseAttempts {
			break
		}
		o.log.Warn().Err(lastErr).Str("phase", p.Phase).Int("attempt", attempt).Msg("phase attempt failed, retrying")
		select {
		case <-ctx.Done():
			return "", providers.Canceled(ctx.Err())
		case <-time.After(bo.NextBackOff()):
		}
	}
	return "", lastErr
}

// failJob lands the job in Failed (progress frozen, partial artifacts kept
// for observability) and releases the reservation. The caller's snapshot may
// be stale: a version conflict on the Failed write means another path reached
// the record first, and the reservation is only touched when the stored
// record is still live and unsettled. Acting on the snapshot alone would
// release a reservation that a concurrent terminal write already committed.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.GenerationJob, cause error) {
	pe := providers.Classify(cause)
	job.State = domain.JobStateFailed
	job.Error = pe.Message
	if pe.Kind == providers.KindCanceled {
		job.Error = "canceled by user"
	}
	if err := o.store.Update(ctx, job); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			current, getErr := o.store.Get(ctx, job.ID)
			if getErr != nil {
				o.log.Error().Err(getErr).Str("job_id", job.ID).Msg("conflicting job re-read failed")
				return
			}
			if current.State.IsTerminal() || current.CreditsSettled {
				// Concluded concurrently; settlement belongs to that path.
				o.log.Debug().Str("job_id", job.ID).Str("state", string(current.State)).
					Msg("failed-state write lost to a terminal update")
				return
			}
			current.State = domain.JobStateFailed
			current.Error = job.Error
			job = current
			if err := o.store.Update(ctx, job); err != nil {
				o.log.Error().Err(err).Str("job_id", job.ID).Msg("failed-state update did not persist")
			}
		} else {
			o.log.Error().Err(err).Str("job_id", job.ID).Msg("failed-state update did not persist")
			// Fall through: the reservation still has to be settled, and startup
			// recovery re-reads the store to pick up whatever state survived.
		}
	}
	o.log.Warn().Err(pe).Str("job_id", job.ID).Str("user_id", job.Owner).Msg("job failed")

	if job.CreditsSettled {
		return
	}
	if err := o.settle(ctx, job.Owner, job.CreditsReserved, false); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Int("amount", job.CreditsReserved).
			Msg("credit release failed after retries, reservation left for recovery")
		return
	}
	job.CreditsSettled = true
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("settlement flag update failed")
	}
}

// settle performs the single ledger call for a reservation, retrying with
// exponential backoff. Settlement errors are never swallowed: the caller
// decides whether to fail the job or leave the record for recovery.
func (o *Orchestrator) settle(ctx context.Context, owner string, amount int, commit bool) error {
	op := func() error {
		if commit {
			return o.ledger.Commit(ctx, owner, amount)
		}
		return o.ledger.Release(ctx, owner, amount)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), o.cfg.SettleMaxRetries), ctx)
	return backoff.Retry(op, bo)
}

// reportVideoProgress maps the provider's 0-100 reading into the video band.
// Progress never moves backwards.
func (o *Orchestrator) reportVideoProgress(ctx context.Context, job *domain.GenerationJob, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	mapped := progressVideoStart + pct*(progressVideoDone-progressVideoStart)/100
	if mapped <= job.Progress {
		return
	}
	job.Progress = mapped
	if err := o.store.Update(ctx, job); err != nil {
		o.log.Debug().Err(err).Str("job_id", job.ID).Msg("progress update skipped")
	}
}
