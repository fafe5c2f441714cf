package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/middleware"
)

type generateRequest struct {
	Prompt          string `json:"prompt"`
	Style           string `json:"style"`
	DurationSeconds int    `json:"duration_seconds"`
	AspectRatio     string `json:"aspect_ratio"`
	Quality         string `json:"quality"`
	Motion          string `json:"motion"`
	Camera          string `json:"camera"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

type statusResponse struct {
	JobID     string            `json:"job_id"`
	State     string            `json:"state"`
	Progress  int               `json:"progress"`
	Artifacts map[string]string `json:"artifacts"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// GenerationsCreate admits a new generation job and answers immediately with
// its identifier; callers poll GenerationsStatus for progress.
func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	plan := middleware.UserPlanFromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	jobID, err := a.Orchestrator.Submit(r.Context(), userID, plan, domain.GenerationRequest{
		Prompt:          req.Prompt,
		Style:           req.Style,
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		Quality:         req.Quality,
		Motion:          req.Motion,
		Camera:          req.Camera,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrRateLimited):
			a.error(w, http.StatusTooManyRequests, "rate_limited", err.Error())
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this generation")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("submit failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit generation")
		}
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: jobID, State: string(domain.JobStatePending)})
}

// GenerationsStatus is the polling endpoint: a single store read.
func (a *App) GenerationsStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Orchestrator.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("status read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read job")
		return
	}
	if job.Owner != middleware.UserIDFromContext(r.Context()) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	a.json(w, http.StatusOK, statusResponse{
		JobID:     job.ID,
		State:     string(job.State),
		Progress:  job.Progress,
		Artifacts: job.Artifacts,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

// GenerationsCancel aborts a running job; the refund is handled by the
// orchestrator's failure path.
func (a *App) GenerationsCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	err := a.Orchestrator.Cancel(r.Context(), jobID, middleware.UserIDFromContext(r.Context()))
	switch {
	case err == nil:
		a.json(w, http.StatusAccepted, map[string]string{"status": "canceling"})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "job belongs to another user")
	case errors.Is(err, domain.ErrInvalidJobState):
		a.error(w, http.StatusConflict, "conflict", "job already finished")
	default:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("cancel failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
	}
}

// CreditsBalance reports the caller's spendable balance.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]int{"balance": 0})
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("balance read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"balance": balance})
}
