package domain

import "time"

// JobState enumerates the generation job lifecycle states, in execution order.
type JobState string

const (
	JobStatePending              JobState = "pending"
	JobStateGeneratingFirstFrame JobState = "generating_first_frame"
	JobStateGeneratingLastFrame  JobState = "generating_last_frame"
	JobStateGeneratingVideo      JobState = "generating_video"
	JobStateFinalizing           JobState = "finalizing"
	JobStateCompleted            JobState = "completed"
	JobStateFailed               JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed from the state.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Artifact phase names. Keys of GenerationJob.Artifacts.
const (
	ArtifactFirstFrame = "first_frame"
	ArtifactLastFrame  = "last_frame"
	ArtifactVideo      = "video"
	ArtifactThumbnail  = "thumbnail"
)

// GenerationRequest is the caller's input, snapshotted at admission time so
// later mutation of the caller's value cannot affect a running job.
type GenerationRequest struct {
	Prompt          string
	Style           string
	DurationSeconds int
	AspectRatio     string
	Quality         string
	Motion          string
	Camera          string
}

// GenerationJob is the durable record of one character-to-video pipeline run.
type GenerationJob struct {
	ID              string
	Owner           string
	Request         GenerationRequest
	State           JobState
	Progress        int
	Artifacts       map[string]string
	CreditsReserved int
	CreditsSettled  bool
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Version is the optimistic concurrency token. Every successful store
	// update increments it; an update against a stale version is rejected.
	Version int
}

// Clone returns a deep copy so store implementations never alias the
// artifacts map across callers.
func (j *GenerationJob) Clone() *GenerationJob {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Artifacts = make(map[string]string, len(j.Artifacts))
	for k, v := range j.Artifacts {
		cp.Artifacts[k] = v
	}
	return &cp
}

// UserPlan enumerates billing plans. The plan decides rate-limit budgets;
// the limiter itself stays plan-agnostic.
type UserPlan string

const (
	UserPlanFree    UserPlan = "free"
	UserPlanPro     UserPlan = "pro"
	UserPlanPremium UserPlan = "premium"
)

// NormalizePlan maps unknown plan names onto the free plan.
func NormalizePlan(plan string) UserPlan {
	switch UserPlan(plan) {
	case UserPlanPro:
		return UserPlanPro
	case UserPlanPremium:
		return UserPlanPremium
	default:
		return UserPlanFree
	}
}
