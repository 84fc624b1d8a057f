package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSaveJobRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))

	job := mustJob(t, "u1", "Go developer", "Build an API")
	saveJob(t, svc, job)

	dup := *job
	dup.Title = "Changed title"
	ok, err := svc.SaveJob(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, found, err := svc.GetJob(ctx, job.JobID, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Go developer", stored.Title)
	assert.Nil(t, stored.Score)
}

func TestSameJobForTwoOwners(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	saveJob(t, svc, mustJob(t, "u1", "Go developer", "Build an API"))
	saveJob(t, svc, mustJob(t, "u2", "Go developer", "Build an API"))

	for _, owner := range []string{"u1", "u2"} {
		jobs, err := svc.ListJobs(context.Background(), owner)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	}
}

func TestSaveJobFieldsDropsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))

	ok, err := svc.SaveJobFields(ctx, "u1", map[string]any{
		"title":              "Scraper",
		"description":        "Scrape listings",
		"job_type":           "Hourly",
		"client_total_hires": 4,
		"score":              9,
		"bogus_field":        "ignored",
	})
	require.NoError(t, err)
	require.True(t, ok)

	jobs, err := svc.ListJobs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Hourly", jobs[0].JobType)
	assert.Equal(t, 4, jobs[0].ClientTotalHires)
	assert.Nil(t, jobs[0].Score, "incoming scores are not trusted")
	assert.Equal(t, models.GenerateJobID("Scraper", "Scrape listings"), jobs[0].JobID)
}

func TestSaveJobFieldsValidates(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	_, err := svc.SaveJobFields(context.Background(), "u1", map[string]any{"title": "No description"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFilterColumns(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	out := svc.FilterColumns(map[string]any{
		"title":       "x",
		"PaymentRate": "$50",
		"nope":        1,
	})
	assert.Equal(t, map[string]any{"title": "x", "payment_rate": "$50"}, out)
}

func TestUpdateJob(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))
	job := mustJob(t, "u1", "Go developer", "Build an API")
	saveJob(t, svc, job)

	ok, err := svc.UpdateJob(ctx, job.JobID, "u1", map[string]any{"unknown": 1})
	require.NoError(t, err)
	assert.False(t, ok, "nothing recognized to update")

	ok, err = svc.UpdateJob(ctx, "missing", "u1", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.UpdateJob(ctx, job.JobID, "u2", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.False(t, ok, "other owners cannot update")

	ok, err = svc.UpdateJob(ctx, job.JobID, "u1", map[string]any{
		"title":   "Senior Go developer",
		"score":   15.0,
		"user_id": "hijack",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, found, err := svc.GetJob(ctx, job.JobID, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Senior Go developer", stored.Title)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 10.0, *stored.Score)
}

func TestUpdateJobRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))
	job := mustJob(t, "u1", "Go developer", "Build an API")
	saveJob(t, svc, job)

	cases := map[string]map[string]any{
		"empty title":      {"title": ""},
		"blank title":      {"title": "   "},
		"null description": {"description": nil},
		"unknown job type": {"job_type": "Contract"},
		"bad link":         {"link": "not a url"},
		"wrong type":       {"client_total_hires": "many"},
	}
	for name, updates := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := svc.UpdateJob(ctx, job.JobID, "u1", updates)
			require.ErrorIs(t, err, models.ErrValidation)
			assert.False(t, ok)

			stored, found, err := svc.GetJob(ctx, job.JobID, "u1")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "Go developer", stored.Title)
			assert.Equal(t, "Build an API", stored.Description)
			assert.Equal(t, models.JobTypeFixed, stored.JobType)
		})
	}

	ok, err := svc.UpdateJob(ctx, job.JobID, "u1", map[string]any{"job_type": models.JobTypeHourly, "title": "  Go dev  "})
	require.NoError(t, err)
	require.True(t, ok)
	stored, _, err := svc.GetJob(ctx, job.JobID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeHourly, stored.JobType)
	assert.Equal(t, "Go dev", stored.Title)
}

func TestScoreAndReset(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))
	job := mustJob(t, "u1", "Go developer", "Build an API")
	saveJob(t, svc, job)

	ok, err := svc.SetScore(ctx, job.JobID, "u1", 0.2)
	require.NoError(t, err)
	require.True(t, ok)
	stored, _, err := svc.GetJob(ctx, job.JobID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, *stored.Score)

	pending, err := svc.UnprocessedJobs(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	ok, err = svc.ResetScore(ctx, job.JobID, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	stored, _, err = svc.GetJob(ctx, job.JobID, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored.Score)

	pending, err = svc.UnprocessedJobs(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	ok, err = svc.SetScore(ctx, "missing", "u1", 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func seedScoredJobs(t *testing.T, svc *JobService) {
	t.Helper()
	ctx := context.Background()
	seeds := []struct {
		title   string
		jobType string
		score   *float64
	}{
		{"low", models.JobTypeFixed, ptr(6)},
		{"high", models.JobTypeHourly, ptr(8)},
		{"fresh", models.JobTypeFixed, nil},
	}
	for _, s := range seeds {
		job, err := models.NewJob(models.JobParams{UserID: "u1", Title: s.title, Description: s.title + " job", JobType: s.jobType})
		require.NoError(t, err)
		saveJob(t, svc, job)
		if s.score != nil {
			_, err := svc.SetScore(ctx, job.JobID, "u1", *s.score)
			require.NoError(t, err)
		}
	}
	saveJob(t, svc, mustJob(t, "u2", "someone else", "not mine"))
}

func TestJobsByCriteria(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))
	seedScoredJobs(t, svc)

	titles := func(jobs []models.Job) []string {
		out := make([]string, len(jobs))
		for i, j := range jobs {
			out[i] = j.Title
		}
		return out
	}

	jobs, err := svc.JobsByCriteria(ctx, Criteria{UserID: "u1", ScoreMin: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"high"}, titles(jobs))

	jobs, err = svc.JobsByCriteria(ctx, Criteria{UserID: "u1", ScoreMax: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"low"}, titles(jobs))

	jobs, err = svc.JobsByCriteria(ctx, Criteria{UserID: "u1", UnprocessedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, titles(jobs))

	jobs, err = svc.JobsByCriteria(ctx, Criteria{UserID: "u1", JobType: models.JobTypeHourly})
	require.NoError(t, err)
	assert.Equal(t, []string{"high"}, titles(jobs))

	jobs, err = svc.JobsByCriteria(ctx, Criteria{})
	require.NoError(t, err)
	assert.Len(t, jobs, 4)
}

func TestStats(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	seedScoredJobs(t, svc)

	stats, err := svc.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalJobs)
	assert.Equal(t, int64(2), stats.ProcessedJobs)
	assert.Equal(t, int64(1), stats.HighScoringJobs)
	assert.InDelta(t, 7.0, stats.AverageScore, 0.001)
	assert.Equal(t, map[string]int64{"Fixed": 2, "Hourly": 1}, stats.JobsByType)

	all, err := svc.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalJobs)
}

func TestStatsUsesConfiguredHighScore(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	svc.HighScore = 5
	seedScoredJobs(t, svc)

	stats, err := svc.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.HighScoringJobs)

	svc.HighScore = 9
	stats, err = svc.Stats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.HighScoringJobs)
}

func TestStatsWithoutScores(t *testing.T) {
	svc := newJobService(t, newTestDB(t))
	stats, err := svc.Stats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalJobs)
	assert.Zero(t, stats.AverageScore)
	assert.Empty(t, stats.JobsByType)
}

func TestDeleteJobsIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc := newJobService(t, newTestDB(t))
	a := mustJob(t, "u1", "a", "first")
	b := mustJob(t, "u1", "b", "second")
	other := mustJob(t, "u2", "a", "first")
	for _, j := range []*models.Job{a, b, other} {
		saveJob(t, svc, j)
	}

	n, err := svc.DeleteJobs(ctx, []string{a.JobID, b.JobID, "missing"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, found, err := svc.GetJob(ctx, other.JobID, "u2")
	require.NoError(t, err)
	assert.True(t, found)

	ok, err := svc.DeleteJob(ctx, a.JobID, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = svc.DeleteJobs(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAllJobsAdmin(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, time.Hour)
	svc := newJobService(t, db)

	alice := registerUser(t, users, "alice")
	saveJob(t, svc, mustJob(t, alice.UserID, "Go developer", "Build an API"))
	saveJob(t, svc, mustJob(t, "ghost", "Orphan", "No owner row"))

	jobs, err := svc.AllJobsAdmin(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	byTitle := map[string]models.AdminJob{}
	for _, j := range jobs {
		byTitle[j.Title] = j
	}
	assert.Equal(t, "alice", byTitle["Go developer"].Username)
	assert.Equal(t, "alice@example.com", byTitle["Go developer"].Email)
	assert.Empty(t, byTitle["Orphan"].Username)
}

func newMockJobService(t *testing.T) (*JobService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return newJobService(t, db), mock
}

func TestSaveJobStorageFailure(t *testing.T) {
	svc, mock := newMockJobService(t)
	job := mustJob(t, "u1", "Go developer", "Build an API")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "jobs"`).
		WithArgs(job.JobID, "u1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ok, err := svc.SaveJob(context.Background(), job)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveJobExistingRowSkipsInsert(t *testing.T) {
	svc, mock := newMockJobService(t)
	job := mustJob(t, "u1", "Go developer", "Build an API")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "jobs"`).
		WithArgs(job.JobID, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	ok, err := svc.SaveJob(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
