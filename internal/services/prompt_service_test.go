package services

import (
	"context"
	"testing"
	"time"

	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromptService(t *testing.T) (*PromptService, *UserService) {
	t.Helper()
	db := newTestDB(t)
	users := NewUserService(db, time.Hour)
	return NewPromptService(db, users), users
}

func TestDefaultPrompts(t *testing.T) {
	for _, pt := range []string{
		models.PromptTypeCoverLetter, models.PromptTypeInterviewPrep,
		PromptScoreJobs, PromptScoreSingleJob, PromptGatherProfile,
	} {
		body, err := DefaultPrompt(pt)
		require.NoError(t, err, pt)
		assert.Contains(t, body, "{profile}", pt)
	}

	_, err := DefaultPrompt("nope")
	assert.Error(t, err)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	prompts, _ := newPromptService(t)
	out, err := prompts.Resolve(context.Background(), models.PromptTypeCoverLetter, "Ten years of Go")
	require.NoError(t, err)
	assert.Contains(t, out, "Ten years of Go")
	assert.NotContains(t, out, "{profile}")
}

func TestUpsertPromptRequiresAdmin(t *testing.T) {
	prompts, users := newPromptService(t)
	bob := registerUser(t, users, "bob")

	_, err := prompts.UpsertPrompt(context.Background(), bob.UserID, models.PromptTypeCoverLetter, "mine", "hi {profile}")
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = prompts.AllPrompts(context.Background(), bob.UserID)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestUpsertPromptReplacesAndResolves(t *testing.T) {
	ctx := context.Background()
	prompts, users := newPromptService(t)
	admin := registerAdmin(t, users, "admin")

	_, err := prompts.UpsertPrompt(ctx, admin.UserID, models.PromptTypeCoverLetter, "v1", "first {profile}")
	require.NoError(t, err)
	p, err := prompts.UpsertPrompt(ctx, admin.UserID, models.PromptTypeCoverLetter, "v2", "second {profile}")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.PromptName)

	all, err := prompts.AllPrompts(ctx, admin.UserID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	out, err := prompts.Resolve(ctx, models.PromptTypeCoverLetter, "P")
	require.NoError(t, err)
	assert.Equal(t, "second P", out)

	ok, err := prompts.DeletePrompt(ctx, admin.UserID, models.PromptTypeCoverLetter)
	require.NoError(t, err)
	assert.True(t, ok)
	out, err = prompts.Resolve(ctx, models.PromptTypeCoverLetter, "P")
	require.NoError(t, err)
	assert.NotEqual(t, "second P", out)
}

func TestUpsertPromptRejectsUnmanagedTypes(t *testing.T) {
	prompts, users := newPromptService(t)
	admin := registerAdmin(t, users, "admin")

	_, err := prompts.UpsertPrompt(context.Background(), admin.UserID, PromptScoreJobs, "x", "y")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = prompts.UpsertPrompt(context.Background(), admin.UserID, models.PromptTypeCoverLetter, "", "y")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestInitializeDefaults(t *testing.T) {
	ctx := context.Background()
	prompts, users := newPromptService(t)
	admin := registerAdmin(t, users, "admin")

	require.NoError(t, prompts.InitializeDefaults(ctx, admin.UserID))
	require.NoError(t, prompts.InitializeDefaults(ctx, admin.UserID))

	all, err := prompts.AllPrompts(ctx, admin.UserID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.PromptTypeCoverLetter, all[0].PromptType)
	assert.Equal(t, models.PromptTypeInterviewPrep, all[1].PromptType)
}
