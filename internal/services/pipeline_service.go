package services

import (
	"context"
	"fmt"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/config"
	"github.com/justsurfingit/upwork-job-applier/internal/metrics"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/justsurfingit/upwork-job-applier/internal/notify"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle                   State = "idle"
	StateLoadingJobs            State = "loading_jobs"
	StateScoring                State = "scoring"
	StatePersistingScores       State = "persisting_scores"
	StateGeneratingApplications State = "generating_applications"
	StateArchiving              State = "archiving"
	StateNotifying              State = "notifying"
	StateDone                   State = "done"
	StateFailed                 State = "failed"
)

type Stats struct {
	TotalJobs             int `json:"total_jobs"`
	ScoredJobs            int `json:"scored_jobs"`
	HighScoringJobs       int `json:"high_scoring_jobs"`
	ApplicationsGenerated int `json:"applications_generated"`
}

// Result is what a caller sees after a run. On failure Stats still reflects
// the batches that were committed before the error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stats   Stats  `json:"stats"`
	State   State  `json:"state"`
}

type RegenerateResult struct {
	Success              bool     `json:"success"`
	Message              string   `json:"message"`
	Score                *float64 `json:"score"`
	ApplicationGenerated bool     `json:"application_generated"`
	State                State    `json:"state"`
}

// Collaborators of the pipeline.
type (
	JobStore interface {
		UnprocessedJobs(ctx context.Context, owner string) ([]models.Job, error)
		GetJob(ctx context.Context, jobID, owner string) (*models.Job, bool, error)
		SetScore(ctx context.Context, jobID, owner string, score float64) (bool, error)
		ResetScore(ctx context.Context, jobID, owner string) (bool, error)
	}
	Scorer interface {
		Score(ctx context.Context, jobs []models.Job, profile string) ([]ScoreResult, error)
	}
	Generator interface {
		Generate(ctx context.Context, jobs []models.Job, profile string, limit int) []GenerationResult
	}
	Archiver interface {
		Append(owner string, records []archive.Record) error
	}
	Notifier interface {
		Append(ctx context.Context, items []notify.Notification) error
	}
	UserDirectory interface {
		Username(ctx context.Context, userID string) string
	}
)

// Pipeline scores a user's unprocessed jobs and writes applications for the
// good ones. It does not serialize runs; callers must not start two runs for
// the same owner at once.
type Pipeline struct {
	Jobs      JobStore
	Scorer    Scorer
	Generator Generator
	Archive   Archiver
	Notifier  Notifier
	Users     UserDirectory
	Profile   ProfileLoader
	Config    config.PipelineConfig
	Metrics   *metrics.Metrics

	// OnTransition, when set, observes every state change.
	OnTransition func(owner string, from, to State)

	log *zap.Logger
}

func NewPipeline(p Pipeline, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if p.Config.BatchSize < 1 {
		p.Config.BatchSize = 3
	}
	p.log = log
	return &p
}

// run carries the per-invocation state.
type run struct {
	p             *Pipeline
	owner         string
	state         State
	stats         Stats
	notifications []notify.Notification
}

func (r *run) to(s State) {
	from := r.state
	r.state = s
	r.p.log.Debug("pipeline transition",
		zap.String("user_id", r.owner), zap.String("from", string(from)), zap.String("to", string(s)))
	if r.p.OnTransition != nil {
		r.p.OnTransition(r.owner, from, s)
	}
}

// ProcessUserJobs runs the full workflow over the owner's unprocessed jobs.
func (p *Pipeline) ProcessUserJobs(ctx context.Context, owner string) Result {
	r := &run{p: p, owner: owner, state: StateIdle}
	r.to(StateLoadingJobs)

	profile, err := p.Profile.LoadProfile(ctx)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	jobs, err := p.Jobs.UnprocessedJobs(ctx, owner)
	if err != nil {
		return p.fail(ctx, r, err)
	}
	if len(jobs) == 0 {
		r.to(StateDone)
		p.Metrics.PipelineRun("success")
		return Result{Success: true, Message: "No unprocessed jobs found", State: r.state}
	}

	r.stats.TotalJobs = len(jobs)
	p.log.Info("🚀 processing jobs",
		zap.String("user_id", owner), zap.Int("jobs", len(jobs)), zap.Int("batch_size", p.Config.BatchSize))

	for start := 0; start < len(jobs); start += p.Config.BatchSize {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, r, err)
		}
		end := min(start+p.Config.BatchSize, len(jobs))
		if _, err := p.processBatch(ctx, r, jobs[start:end], profile, p.Config.MinScore, p.Config.BatchSize); err != nil {
			return p.fail(ctx, r, err)
		}
	}

	r.to(StateNotifying)
	if err := p.Notifier.Append(ctx, r.notifications); err != nil {
		return p.fail(ctx, r, err)
	}

	r.to(StateDone)
	p.Metrics.PipelineRun("success")
	p.log.Info("🏁 processing finished", zap.String("user_id", owner), zap.Any("stats", r.stats))
	return Result{
		Success: true,
		Message: fmt.Sprintf("Successfully processed %d jobs", r.stats.ScoredJobs),
		Stats:   r.stats,
		State:   r.state,
	}
}

// RegenerateJob clears one job's score and pushes it through the same batch
// routine with the regeneration threshold.
func (p *Pipeline) RegenerateJob(ctx context.Context, owner, jobID string) RegenerateResult {
	job, ok, err := p.Jobs.GetJob(ctx, jobID, owner)
	if err != nil {
		return RegenerateResult{Message: "Failed to regenerate job: " + err.Error(), State: StateFailed}
	}
	if !ok {
		return RegenerateResult{Message: "Job not found", State: StateFailed}
	}

	r := &run{p: p, owner: owner, state: StateIdle}
	r.to(StateLoadingJobs)
	reset, err := p.Jobs.ResetScore(ctx, jobID, owner)
	if err != nil {
		return p.regenerateFailure(ctx, r, err)
	}
	if !reset {
		return p.regenerateVanished(r, jobID)
	}
	job.Score = nil

	profile, err := p.Profile.LoadProfile(ctx)
	if err != nil {
		return p.regenerateFailure(ctx, r, err)
	}

	r.stats.TotalJobs = 1
	out, err := p.processBatch(ctx, r, []models.Job{*job}, profile, p.Config.RegenerateMinScore, 1)
	if err != nil {
		return p.regenerateFailure(ctx, r, err)
	}
	if r.stats.ScoredJobs == 0 {
		return p.regenerateVanished(r, jobID)
	}

	r.to(StateNotifying)
	if err := p.Notifier.Append(ctx, r.notifications); err != nil {
		return p.regenerateFailure(ctx, r, err)
	}
	r.to(StateDone)
	p.Metrics.PipelineRun("success")

	score := out.scores[0].Score
	res := RegenerateResult{
		Success:              true,
		Score:                &score,
		ApplicationGenerated: r.stats.ApplicationsGenerated > 0,
		State:                r.state,
	}
	msg := fmt.Sprintf("Job regenerated successfully! Score: %s/10", archive.FormatScore(score))
	switch {
	case score < p.Config.RegenerateMinScore:
		res.Message = msg + " (below threshold for application generation)"
	case res.ApplicationGenerated:
		res.Message = msg
	default:
		res.Message = msg + ", but application generation failed"
	}
	return res
}

type batchOutcome struct {
	scores  []ScoreResult
	results []GenerationResult
}

// processBatch scores, persists, generates and archives one batch. Work
// committed here stays committed if a later batch fails.
func (p *Pipeline) processBatch(ctx context.Context, r *run, batch []models.Job, profile string, minScore float64, limit int) (batchOutcome, error) {
	var out batchOutcome

	r.to(StateScoring)
	scores, err := p.Scorer.Score(ctx, batch, profile)
	if err != nil {
		return out, err
	}
	if len(scores) != len(batch) {
		return out, fmt.Errorf("%w: got %d scores for %d jobs", ErrScoreCountMismatch, len(scores), len(batch))
	}
	out.scores = scores

	r.to(StatePersistingScores)
	eligible := make([]models.Job, 0, len(batch))
	persisted := 0
	for i, sr := range scores {
		job := batch[i]
		ok, err := p.Jobs.SetScore(ctx, sr.JobID, r.owner, sr.Score)
		if err != nil {
			p.Metrics.JobsScored(persisted)
			return out, err
		}
		if !ok {
			p.log.Warn("⚠️ job disappeared before its score was saved", zap.String("job_id", sr.JobID))
			continue
		}
		persisted++
		job.SetScore(sr.Score)
		r.stats.ScoredJobs++
		p.log.Info("📊 scored job",
			zap.String("job_id", job.JobID), zap.String("title", job.Title), zap.Float64("score", *job.Score))

		if *job.Score >= p.Config.HighScore {
			r.stats.HighScoringJobs++
			r.notifications = append(r.notifications, notify.Notification{
				UserID:    r.owner,
				Username:  p.username(ctx, r.owner),
				JobTitle:  job.Title,
				Score:     *job.Score,
				Timestamp: time.Now(),
			})
		}
		if *job.Score >= minScore {
			eligible = append(eligible, job)
		}
	}
	p.Metrics.JobsScored(persisted)

	if len(eligible) == 0 {
		return out, nil
	}

	r.to(StateGeneratingApplications)
	out.results = p.Generator.Generate(ctx, eligible, profile, limit)
	records := Records(out.results)
	p.Metrics.ApplicationFailures(len(out.results) - len(records))
	if len(records) == 0 {
		return out, nil
	}

	r.to(StateArchiving)
	if err := p.Archive.Append(r.owner, records); err != nil {
		return out, err
	}
	r.stats.ApplicationsGenerated += len(records)
	p.Metrics.ApplicationsGenerated(len(records))
	return out, nil
}

// fail flushes queued notifications best-effort and reports partial progress.
func (p *Pipeline) fail(ctx context.Context, r *run, cause error) Result {
	if len(r.notifications) > 0 {
		if err := p.Notifier.Append(context.WithoutCancel(ctx), r.notifications); err != nil {
			p.log.Warn("⚠️ failed to save notifications after run failure", zap.Error(err))
		}
	}
	r.to(StateFailed)
	p.Metrics.PipelineRun("failure")
	p.log.Error("❌ processing failed", zap.String("user_id", r.owner), zap.Any("stats", r.stats), zap.Error(cause))
	return Result{
		Success: false,
		Message: "Error processing jobs: " + cause.Error(),
		Stats:   r.stats,
		State:   r.state,
	}
}

func (p *Pipeline) username(ctx context.Context, owner string) string {
	if p.Users == nil {
		return "Unknown"
	}
	return p.Users.Username(ctx, owner)
}

// regenerateVanished handles a job deleted while it was being regenerated.
func (p *Pipeline) regenerateVanished(r *run, jobID string) RegenerateResult {
	r.to(StateFailed)
	p.Metrics.PipelineRun("failure")
	p.log.Warn("⚠️ job deleted during regeneration", zap.String("user_id", r.owner), zap.String("job_id", jobID))
	return RegenerateResult{Message: "Job not found", State: r.state}
}

func (p *Pipeline) regenerateFailure(ctx context.Context, r *run, cause error) RegenerateResult {
	res := p.fail(ctx, r, cause)
	return RegenerateResult{Message: "Failed to regenerate job: " + cause.Error(), State: res.State}
}
