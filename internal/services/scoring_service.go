package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/justsurfingit/upwork-job-applier/internal/config"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// NeutralScore is assigned in per-job mode when the reply is not a number.
const NeutralScore = 5.0

var (
	ErrScoreCountMismatch   = errors.New("score count does not match job count")
	ErrInvalidScoreResponse = errors.New("invalid score response")
)

var scoreResponseSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["scores"],
	"properties": {
		"scores": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["score"],
				"properties": {"score": {"type": "number"}}
			}
		}
	}
}`)

type ScoreResult struct {
	JobID string  `json:"job_id"`
	Score float64 `json:"score"`
}

type scoreResponse struct {
	Scores []struct {
		Score float64 `json:"score"`
	} `json:"scores"`
}

type ScoringService struct {
	LLM     LLM
	Prompts PromptResolver
	Mode    string

	log *zap.Logger
}

func NewScoringService(llm LLM, prompts PromptResolver, mode string, log *zap.Logger) *ScoringService {
	if mode == "" {
		mode = config.ScoringModeBatch
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoringService{LLM: llm, Prompts: prompts, Mode: mode, log: log}
}

// Score returns one result per job, in input order. Any model failure fails
// the whole call with no results.
func (s *ScoringService) Score(ctx context.Context, jobs []models.Job, profile string) ([]ScoreResult, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	if s.Mode == config.ScoringModePerJob {
		return s.scorePerJob(ctx, jobs, profile)
	}
	return s.scoreBatch(ctx, jobs, profile)
}

func (s *ScoringService) scoreBatch(ctx context.Context, jobs []models.Job, profile string) ([]ScoreResult, error) {
	system, err := s.Prompts.Resolve(ctx, PromptScoreJobs, profile)
	if err != nil {
		return nil, err
	}

	raw, err := s.LLM.Invoke(ctx, LLMRequest{
		System: system,
		User:   "Evaluate these Jobs:\n\n" + FormatJobsForScoring(jobs),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("batch scoring failed: %w", err)
	}

	scores, err := parseScoreResponse(raw)
	if err != nil {
		return nil, err
	}
	// results map back to jobs by position only, so a short or long list
	// cannot be assigned safely
	if len(scores) != len(jobs) {
		return nil, fmt.Errorf("%w: got %d scores for %d jobs", ErrScoreCountMismatch, len(scores), len(jobs))
	}

	results := make([]ScoreResult, len(jobs))
	for i, job := range jobs {
		score := scores[i]
		if score < models.MinScore || score > models.MaxScore {
			s.log.Warn("⚠️ score out of range, clamping",
				zap.String("job_id", job.JobID), zap.Float64("score", score))
		}
		results[i] = ScoreResult{JobID: job.JobID, Score: models.ClampScore(score)}
	}
	return results, nil
}

func parseScoreResponse(raw string) ([]float64, error) {
	res, err := gojsonschema.Validate(scoreResponseSchema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScoreResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidScoreResponse, strings.Join(msgs, "; "))
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScoreResponse, err)
	}
	out := make([]float64, len(parsed.Scores))
	for i, sc := range parsed.Scores {
		out[i] = sc.Score
	}
	return out, nil
}

// scorePerJob issues one free-text call per job. An unparseable reply gets
// NeutralScore; a failed call still fails the batch.
func (s *ScoringService) scorePerJob(ctx context.Context, jobs []models.Job, profile string) ([]ScoreResult, error) {
	system, err := s.Prompts.Resolve(ctx, PromptScoreSingleJob, profile)
	if err != nil {
		return nil, err
	}

	results := make([]ScoreResult, 0, len(jobs))
	for _, job := range jobs {
		reply, err := s.LLM.Invoke(ctx, LLMRequest{
			System:    system,
			User:      formatSingleJob(job),
			MaxTokens: 10,
		})
		if err != nil {
			return nil, fmt.Errorf("scoring job %s failed: %w", job.JobID, err)
		}

		score, perr := strconv.ParseFloat(strings.TrimSpace(reply), 64)
		if perr != nil {
			s.log.Warn("⚠️ unparseable score, using neutral value",
				zap.String("job_id", job.JobID), zap.String("reply", reply))
			score = NeutralScore
		}
		results = append(results, ScoreResult{JobID: job.JobID, Score: models.ClampScore(score)})
	}
	return results, nil
}

// FormatJobsForScoring renders the batch as numbered blocks, omitting empty fields.
func FormatJobsForScoring(jobs []models.Job) string {
	var b strings.Builder
	for i, job := range jobs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Job %d:\n", i+1)
		writeField(&b, "Title", job.Title)
		writeField(&b, "Description", job.Description)
		writeField(&b, "Type", job.JobType)
		writeField(&b, "Experience", job.ExperienceLevel)
		writeField(&b, "Payment", job.PaymentRate)
		writeField(&b, "Duration", job.Duration)
		writeField(&b, "Requirements", job.ProposalRequirements)
	}
	return b.String()
}

func formatSingleJob(job models.Job) string {
	desc := []rune(job.Description)
	if len(desc) > 500 {
		desc = append(desc[:500], []rune("...")...)
	}
	var b strings.Builder
	writeField(&b, "Title", job.Title)
	writeField(&b, "Type", job.JobType)
	writeField(&b, "Experience Level", job.ExperienceLevel)
	writeField(&b, "Payment", job.PaymentRate)
	writeField(&b, "Description", string(desc))
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
