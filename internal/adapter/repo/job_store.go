package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"keyframe/server/internal/domain"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/sqlinline"
)

// JobStorePG implements domain.JobStore on PostgreSQL. Updates are optimistic:
// the stored version must match the caller's snapshot or the write is refused.
type JobStorePG struct {
	runner infra.SQLExecutor
}

// NewJobStore creates a job store backed by PostgreSQL.
func NewJobStore(runner infra.SQLExecutor) *JobStorePG {
	return &JobStorePG{runner: runner}
}

// Create inserts a new job record.
func (s *JobStorePG) Create(ctx context.Context, job *domain.GenerationJob) error {
	artifacts, err := marshalArtifacts(job.Artifacts)
	if err != nil {
		return err
	}
	_, err = s.runner.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.Owner,
		job.Request.Prompt,
		job.Request.Style,
		job.Request.DurationSeconds,
		job.Request.AspectRatio,
		job.Request.Quality,
		job.Request.Motion,
		job.Request.Camera,
		job.State,
		job.Progress,
		artifacts,
		job.CreditsReserved,
		job.CreditsSettled,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
		job.Version,
	)
	return err
}

// Get fetches a job by its identifier.
func (s *JobStorePG) Get(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QGetJob, jobID)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Update writes the job conditionally on the stored version matching
// job.Version; on success job.Version is advanced to the new stored value.
func (s *JobStorePG) Update(ctx context.Context, job *domain.GenerationJob) error {
	artifacts, err := marshalArtifacts(job.Artifacts)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	tag, err := s.runner.Exec(ctx, sqlinline.QUpdateJobCAS,
		job.ID,
		job.State,
		job.Progress,
		artifacts,
		job.CreditsSettled,
		job.Error,
		job.UpdatedAt,
		job.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	job.Version++
	return nil
}

// ListUnsettled returns jobs whose reservation is still pending settlement.
func (s *JobStorePG) ListUnsettled(ctx context.Context) ([]*domain.GenerationJob, error) {
	rows, err := s.runner.Query(ctx, sqlinline.QListUnsettledJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*domain.GenerationJob, error) {
	var (
		job          domain.GenerationJob
		artifactsRaw []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Owner,
		&job.Request.Prompt,
		&job.Request.Style,
		&job.Request.DurationSeconds,
		&job.Request.AspectRatio,
		&job.Request.Quality,
		&job.Request.Motion,
		&job.Request.Camera,
		&job.State,
		&job.Progress,
		&artifactsRaw,
		&job.CreditsReserved,
		&job.CreditsSettled,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.Version,
	); err != nil {
		return nil, err
	}
	job.Artifacts = make(map[string]string)
	if len(artifactsRaw) > 0 {
		if err := json.Unmarshal(artifactsRaw, &job.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	return &job, nil
}

func marshalArtifacts(artifacts map[string]string) ([]byte, error) {
	if artifacts == nil {
		artifacts = map[string]string{}
	}
	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return encoded, nil
}

var _ domain.JobStore = (*JobStorePG)(nil)
