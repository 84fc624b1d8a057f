package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writerLLM answers generation prompts by looking at which template was used.
func writerLLM(fail func(req LLMRequest) error) *scriptedLLM {
	return &scriptedLLM{fn: func(req LLMRequest) (string, error) {
		if fail != nil {
			if err := fail(req); err != nil {
				return "", err
			}
		}
		switch {
		case strings.HasPrefix(req.System, PromptGatherProfile):
			return "relevant experience", nil
		case strings.HasPrefix(req.System, models.PromptTypeCoverLetter):
			return "Dear client", nil
		case strings.HasPrefix(req.System, models.PromptTypeInterviewPrep):
			return "## Questions", nil
		}
		return "", errors.New("unexpected prompt " + req.System)
	}}
}

func scoredJob(t *testing.T, title string, score float64) models.Job {
	t.Helper()
	job := mustJob(t, "u1", title, title+" description")
	job.SetScore(score)
	return *job
}

func TestGenerate(t *testing.T) {
	llm := writerLLM(nil)
	gen := NewApplicationService(llm, echoPrompts{}, nil)
	job := scoredJob(t, "Go API", 8)

	results := gen.Generate(context.Background(), []models.Job{job}, "profile", 3)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	rec := results[0].Record
	assert.Equal(t, job.JobID, rec.JobID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "Go API", rec.Title)
	assert.Equal(t, 8.0, rec.Score)
	assert.Equal(t, "Dear client", rec.CoverLetter)
	assert.Equal(t, "## Questions", rec.InterviewPrep)
	assert.Equal(t, job.Description, rec.JobDescription)

	var coverReq LLMRequest
	for _, c := range llm.Calls() {
		if strings.HasPrefix(c.System, models.PromptTypeCoverLetter) {
			coverReq = c
		}
	}
	assert.Equal(t,
		"# Job Description\n"+FormatJobDescription(job)+"\n# Relevant Freelancer Information\nrelevant experience",
		coverReq.User)
	assert.Len(t, llm.Calls(), 3)
}

func TestGenerateIsolatesFailures(t *testing.T) {
	llm := writerLLM(func(req LLMRequest) error {
		if strings.HasPrefix(req.System, models.PromptTypeCoverLetter) && strings.Contains(req.User, "Title: broken") {
			return errors.New("model overloaded")
		}
		return nil
	})
	gen := NewApplicationService(llm, echoPrompts{}, nil)
	jobs := []models.Job{scoredJob(t, "one", 8), scoredJob(t, "broken", 9), scoredJob(t, "two", 7)}

	results := gen.Generate(context.Background(), jobs, "profile", 3)
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "broken", r.Job.Title)
			assert.Nil(t, r.Record)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, Records(results), 2)
}

func TestGenerateRejectsEmptyOutput(t *testing.T) {
	llm := &scriptedLLM{fn: func(req LLMRequest) (string, error) {
		if strings.HasPrefix(req.System, models.PromptTypeInterviewPrep) {
			return "   ", nil
		}
		return "text", nil
	}}
	gen := NewApplicationService(llm, echoPrompts{}, nil)

	results := gen.Generate(context.Background(), []models.Job{scoredJob(t, "a", 8)}, "p", 1)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, errEmptyGeneration)
	assert.Empty(t, Records(results))
}

func TestGeneratePromptFailureFailsEveryJob(t *testing.T) {
	llm := writerLLM(nil)
	gen := NewApplicationService(llm, echoPrompts{err: errors.New("no template")}, nil)

	results := gen.Generate(context.Background(), []models.Job{scoredJob(t, "a", 8), scoredJob(t, "b", 9)}, "p", 2)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.EqualError(t, r.Err, "no template")
	}
	assert.Empty(t, llm.Calls())
}

func TestGenerateRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	llm := &scriptedLLM{fn: func(req LLMRequest) (string, error) {
		if strings.HasPrefix(req.System, PromptGatherProfile) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			inFlight.Add(-1)
		}
		return "text", nil
	}}
	gen := NewApplicationService(llm, echoPrompts{}, nil)

	jobs := make([]models.Job, 6)
	for i := range jobs {
		jobs[i] = scoredJob(t, string(rune('a'+i)), 8)
	}
	results := gen.Generate(context.Background(), jobs, "p", 2)
	assert.Len(t, Records(results), 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGenerateNoJobs(t *testing.T) {
	gen := NewApplicationService(writerLLM(nil), echoPrompts{}, nil)
	assert.Empty(t, gen.Generate(context.Background(), nil, "p", 3))
}

func TestFormatJobDescription(t *testing.T) {
	job := models.Job{Title: "Go API", Description: "Build it", PaymentRate: "$500", JobType: "Fixed", Link: "https://example.com/j/1"}
	assert.Equal(t,
		"Title: Go API\nDescription: Build it\nPayment: $500\nType: Fixed\nLink: https://example.com/j/1\n",
		FormatJobDescription(job))
}
