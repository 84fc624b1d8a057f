package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/database"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newJobService(t *testing.T, db *gorm.DB) *JobService {
	t.Helper()
	svc, err := NewJobService(db)
	require.NoError(t, err)
	return svc
}

func mustJob(t *testing.T, owner, title, desc string) *models.Job {
	t.Helper()
	job, err := models.NewJob(models.JobParams{UserID: owner, Title: title, Description: desc})
	require.NoError(t, err)
	return job
}

func saveJob(t *testing.T, svc *JobService, job *models.Job) {
	t.Helper()
	ok, err := svc.SaveJob(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ok)
}

func registerUser(t *testing.T, svc *UserService, name string) *models.User {
	t.Helper()
	u, ok, err := svc.Register(context.Background(), name, name+"@example.com", "secret123")
	require.NoError(t, err)
	require.True(t, ok)
	return u
}

func registerAdmin(t *testing.T, svc *UserService, name string) *models.User {
	t.Helper()
	u := registerUser(t, svc, name)
	ok, err := svc.Promote(context.Background(), u.UserID)
	require.NoError(t, err)
	require.True(t, ok)
	return u
}

func ptr(f float64) *float64 { return &f }

// scriptedLLM answers through fn and records every request.
type scriptedLLM struct {
	mu    sync.Mutex
	calls []LLMRequest
	fn    func(LLMRequest) (string, error)
}

func (s *scriptedLLM) Invoke(_ context.Context, req LLMRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *scriptedLLM) Calls() []LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LLMRequest(nil), s.calls...)
}

// echoPrompts resolves every template to its type name followed by the profile.
type echoPrompts struct{ err error }

func (e echoPrompts) Resolve(_ context.Context, promptType, profile string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return promptType + "|" + profile, nil
}

// fakeModel is an llms.Model returning canned responses in order.
type fakeModel struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
	lastOpts  llms.CallOptions
}

type fakeResponse struct {
	content   string
	noChoices bool
	err       error
	delay     time.Duration
}

func (f *fakeModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.lastOpts = opts
	resp := f.responses[min(i, len(f.responses)-1)]
	f.mu.Unlock()

	if resp.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(resp.delay):
		}
	}
	if resp.err != nil {
		return nil, resp.err
	}
	if resp.noChoices {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: resp.content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
