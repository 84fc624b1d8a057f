package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// HighScoreCutoff is the default score at which a job counts as high scoring
// in stats.
const HighScoreCutoff = 7.0

// JobService is the job store. Missing rows and duplicate inserts are reported
// as false, not as errors; errors are reserved for storage failures.
type JobService struct {
	DB *gorm.DB
	// HighScore is the stats cutoff. It should match the pipeline's
	// notification threshold.
	HighScore float64

	jobSchema *schema.Schema
}

func NewJobService(db *gorm.DB) (*JobService, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(&models.Job{}); err != nil {
		return nil, fmt.Errorf("failed to parse job schema: %w", err)
	}
	return &JobService{DB: db, HighScore: HighScoreCutoff, jobSchema: stmt.Schema}, nil
}

// Criteria narrows JobsByCriteria. Zero values mean "no filter".
type Criteria struct {
	ScoreMin        *float64
	ScoreMax        *float64
	JobType         string
	UnprocessedOnly bool
	UserID          string
}

type JobStats struct {
	TotalJobs       int64            `json:"total_jobs"`
	ProcessedJobs   int64            `json:"processed_jobs"`
	HighScoringJobs int64            `json:"high_scoring_jobs"`
	AverageScore    float64          `json:"average_score"`
	JobsByType      map[string]int64 `json:"jobs_by_type"`
	RecentJobs      int64            `json:"recent_jobs"`
}

// SaveJob inserts job unless (job_id, user_id) already exists.
func (s *JobService) SaveJob(ctx context.Context, job *models.Job) (bool, error) {
	inserted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Job{}).
			Where("job_id = ? AND user_id = ?", job.JobID, job.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if job.CreatedAt.IsZero() {
			job.CreatedAt = time.Now()
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save job %s: %w", job.JobID, err)
	}
	return inserted, nil
}

// SaveJobFields accepts a loosely-typed record (e.g. from a scraper), drops
// keys the schema does not know, and saves it through the validating factory.
func (s *JobService) SaveJobFields(ctx context.Context, owner string, fields map[string]any) (bool, error) {
	filtered := s.FilterColumns(fields)
	delete(filtered, "job_id")
	delete(filtered, "score")
	delete(filtered, "created_at")
	filtered["user_id"] = owner

	raw, err := json.Marshal(filtered)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	var params models.JobParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	job, err := models.NewJob(params)
	if err != nil {
		return false, err
	}
	return s.SaveJob(ctx, job)
}

// FilterColumns keeps only keys that map to a jobs column, keyed by column name.
func (s *JobService) FilterColumns(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		f := s.jobSchema.LookUpField(k)
		if f == nil || f.DBName == "" {
			continue
		}
		out[f.DBName] = v
	}
	return out
}

func (s *JobService) GetJob(ctx context.Context, jobID, owner string) (*models.Job, bool, error) {
	var job models.Job
	err := s.DB.WithContext(ctx).
		Where("job_id = ? AND user_id = ?", jobID, owner).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return &job, true, nil
}

func (s *JobService) ListJobs(ctx context.Context, owner string) ([]models.Job, error) {
	return s.JobsByCriteria(ctx, Criteria{UserID: owner})
}

// UnprocessedJobs returns the owner's jobs that still have no score.
func (s *JobService) UnprocessedJobs(ctx context.Context, owner string) ([]models.Job, error) {
	return s.JobsByCriteria(ctx, Criteria{UserID: owner, UnprocessedOnly: true})
}

func (s *JobService) JobsByCriteria(ctx context.Context, c Criteria) ([]models.Job, error) {
	q := s.DB.WithContext(ctx).Model(&models.Job{})
	if c.UserID != "" {
		q = q.Where("user_id = ?", c.UserID)
	}
	if c.UnprocessedOnly {
		q = q.Where("score IS NULL")
	}
	if c.ScoreMin != nil {
		q = q.Where("score >= ?", *c.ScoreMin)
	}
	if c.ScoreMax != nil {
		q = q.Where("score <= ?", *c.ScoreMax)
	}
	if c.JobType != "" {
		q = q.Where("job_type = ?", c.JobType)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Order("job_id").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJob applies the recognized fields of updates. Identity columns are
// never updated, and the edited job must still pass the same validation as a
// new one. It reports false when the job is missing or nothing is left to
// write.
func (s *JobService) UpdateJob(ctx context.Context, jobID, owner string, updates map[string]any) (bool, error) {
	filtered := s.FilterColumns(updates)
	delete(filtered, "job_id")
	delete(filtered, "user_id")
	delete(filtered, "created_at")

	for k, v := range filtered {
		switch val := v.(type) {
		case nil:
			if k != "score" {
				return false, fmt.Errorf("%w: %s cannot be null", models.ErrValidation, k)
			}
		case string:
			if k == "title" || k == "description" {
				filtered[k] = strings.TrimSpace(val)
			}
		}
	}
	if v, ok := filtered["score"]; ok && v != nil {
		score, ok := toFloat(v)
		if !ok {
			delete(filtered, "score")
		} else {
			filtered["score"] = models.ClampScore(score)
		}
	}
	if len(filtered) == 0 {
		return false, nil
	}

	var (
		updated bool
		invalid error
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		err := tx.Where("job_id = ? AND user_id = ?", jobID, owner).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if invalid = validateEdit(job, filtered); invalid != nil {
			return nil
		}
		res := tx.Model(&models.Job{}).
			Where("job_id = ? AND user_id = ?", jobID, owner).
			Updates(filtered)
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if invalid != nil {
		return false, invalid
	}
	return updated, nil
}

// validateEdit overlays fields on the stored job and re-runs the job
// validator over the result.
func validateEdit(job models.Job, fields map[string]any) error {
	params := models.ParamsFromJob(job)
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return params.Validate()
}

// SetScore records a clamped score for one job.
func (s *JobService) SetScore(ctx context.Context, jobID, owner string, score float64) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Job{}).
		Where("job_id = ? AND user_id = ?", jobID, owner).
		Update("score", models.ClampScore(score))
	if res.Error != nil {
		return false, fmt.Errorf("failed to set score for job %s: %w", jobID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *JobService) ResetScore(ctx context.Context, jobID, owner string) (bool, error) {
	n, err := s.ResetScores(ctx, []string{jobID}, owner)
	return n > 0, err
}

// ResetScores nulls the score of each listed job, re-enqueuing them.
func (s *JobService) ResetScores(ctx context.Context, jobIDs []string, owner string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Model(&models.Job{}).
		Where("job_id IN ? AND user_id = ?", jobIDs, owner).
		Update("score", gorm.Expr("NULL"))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset scores: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *JobService) DeleteJob(ctx context.Context, jobID, owner string) (bool, error) {
	n, err := s.DeleteJobs(ctx, []string{jobID}, owner)
	return n > 0, err
}

func (s *JobService) DeleteJobs(ctx context.Context, jobIDs []string, owner string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).
		Where("job_id IN ? AND user_id = ?", jobIDs, owner).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats aggregates the owner's jobs; an empty owner covers every job.
func (s *JobService) Stats(ctx context.Context, owner string) (JobStats, error) {
	scoped := func() *gorm.DB {
		q := s.DB.WithContext(ctx).Model(&models.Job{})
		if owner != "" {
			q = q.Where("user_id = ?", owner)
		}
		return q
	}

	stats := JobStats{JobsByType: map[string]int64{}}
	if err := scoped().Count(&stats.TotalJobs).Error; err != nil {
		return stats, fmt.Errorf("failed to count jobs: %w", err)
	}
	if err := scoped().Where("score IS NOT NULL").Count(&stats.ProcessedJobs).Error; err != nil {
		return stats, fmt.Errorf("failed to count processed jobs: %w", err)
	}
	if err := scoped().Where("score >= ?", s.HighScore).Count(&stats.HighScoringJobs).Error; err != nil {
		return stats, fmt.Errorf("failed to count high scoring jobs: %w", err)
	}

	var avg sql.NullFloat64
	if err := scoped().Where("score IS NOT NULL").Select("AVG(score)").Scan(&avg).Error; err != nil {
		return stats, fmt.Errorf("failed to average scores: %w", err)
	}
	if avg.Valid {
		stats.AverageScore = math.Round(avg.Float64*100) / 100
	}

	var byType []struct {
		JobType string
		Count   int64
	}
	if err := scoped().Select("job_type, COUNT(*) AS count").Group("job_type").Scan(&byType).Error; err != nil {
		return stats, fmt.Errorf("failed to group jobs by type: %w", err)
	}
	for _, row := range byType {
		stats.JobsByType[row.JobType] = row.Count
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := scoped().Where("created_at >= ?", weekAgo).Count(&stats.RecentJobs).Error; err != nil {
		return stats, fmt.Errorf("failed to count recent jobs: %w", err)
	}
	return stats, nil
}

// AllJobsAdmin lists every job with its owner's username and email.
func (s *JobService) AllJobsAdmin(ctx context.Context) ([]models.AdminJob, error) {
	var jobs []models.AdminJob
	err := s.DB.WithContext(ctx).Table("jobs").
		Select("jobs.*, users.username, users.email").
		Joins("LEFT JOIN users ON users.user_id = jobs.user_id").
		Order("jobs.created_at DESC").
		Scan(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
