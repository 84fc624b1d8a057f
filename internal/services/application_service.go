package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errEmptyGeneration = errors.New("model returned empty text")

// GenerationResult is the outcome for one job: Record on success, Err otherwise.
type GenerationResult struct {
	Job    models.Job
	Record *archive.Record
	Err    error
}

type ApplicationService struct {
	LLM     LLM
	Prompts PromptResolver

	log *zap.Logger
}

func NewApplicationService(llm LLM, prompts PromptResolver, log *zap.Logger) *ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ApplicationService{LLM: llm, Prompts: prompts, log: log}
}

type applicationPrompts struct {
	gather, cover, interview string
}

// Generate builds an application for every job, at most limit at a time.
// A failing job yields a result with Err set and does not stop the others.
// Results are in completion order.
func (s *ApplicationService) Generate(ctx context.Context, jobs []models.Job, profile string, limit int) []GenerationResult {
	if len(jobs) == 0 {
		return nil
	}

	prompts, err := s.resolvePrompts(ctx, profile)
	if err != nil {
		out := make([]GenerationResult, len(jobs))
		for i, job := range jobs {
			out[i] = GenerationResult{Job: job, Err: err}
		}
		return out
	}

	var (
		mu      sync.Mutex
		results = make([]GenerationResult, 0, len(jobs))
		g       errgroup.Group
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, job := range jobs {
		g.Go(func() error {
			rec, err := s.generateOne(ctx, job, prompts)
			if err != nil {
				s.log.Error("❌ application generation failed",
					zap.String("job_id", job.JobID), zap.String("title", job.Title), zap.Error(err))
			} else {
				s.log.Info("✅ generated application", zap.String("job_id", job.JobID), zap.String("title", job.Title))
			}
			mu.Lock()
			results = append(results, GenerationResult{Job: job, Record: rec, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Records keeps the successful results.
func Records(results []GenerationResult) []archive.Record {
	out := make([]archive.Record, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Record != nil {
			out = append(out, *r.Record)
		}
	}
	return out
}

func (s *ApplicationService) resolvePrompts(ctx context.Context, profile string) (applicationPrompts, error) {
	var p applicationPrompts
	var err error
	if p.gather, err = s.Prompts.Resolve(ctx, PromptGatherProfile, profile); err != nil {
		return p, err
	}
	if p.cover, err = s.Prompts.Resolve(ctx, models.PromptTypeCoverLetter, profile); err != nil {
		return p, err
	}
	if p.interview, err = s.Prompts.Resolve(ctx, models.PromptTypeInterviewPrep, profile); err != nil {
		return p, err
	}
	return p, nil
}

func (s *ApplicationService) generateOne(ctx context.Context, job models.Job, p applicationPrompts) (*archive.Record, error) {
	desc := FormatJobDescription(job)

	relevant, err := s.invokeText(ctx, p.gather, desc)
	if err != nil {
		return nil, fmt.Errorf("gathering profile: %w", err)
	}
	user := "# Job Description\n" + desc + "\n# Relevant Freelancer Information\n" + relevant

	var cover, interview string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cover, err = s.invokeText(gctx, p.cover, user)
		if err != nil {
			return fmt.Errorf("cover letter: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		interview, err = s.invokeText(gctx, p.interview, user)
		if err != nil {
			return fmt.Errorf("interview preparation: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &archive.Record{
		UserID:         job.UserID,
		JobID:          job.JobID,
		Title:          job.Title,
		Score:          job.ScoreValue(),
		CoverLetter:    cover,
		InterviewPrep:  interview,
		JobDescription: job.Description,
		CreatedAt:      time.Now(),
	}, nil
}

func (s *ApplicationService) invokeText(ctx context.Context, system, user string) (string, error) {
	out, err := s.LLM.Invoke(ctx, LLMRequest{System: system, User: user})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errEmptyGeneration
	}
	return out, nil
}

// FormatJobDescription renders the labelled job text sent to generation
// prompts. Fields that are empty are left out.
func FormatJobDescription(job models.Job) string {
	var b strings.Builder
	writeField(&b, "Title", job.Title)
	writeField(&b, "Description", job.Description)
	writeField(&b, "Payment", job.PaymentRate)
	writeField(&b, "Type", job.JobType)
	writeField(&b, "Experience", job.ExperienceLevel)
	writeField(&b, "Duration", job.Duration)
	writeField(&b, "Requirements", job.ProposalRequirements)
	writeField(&b, "Link", job.Link)
	return b.String()
}
