package models

import (
	"time"
)

const (
	JobTypeFixed  = "Fixed"
	JobTypeHourly = "Hourly"

	ExperienceEntry        = "Entry"
	ExperienceIntermediate = "Intermediate"
	ExperienceExpert       = "Expert"

	PromptTypeCoverLetter   = "cover_letter"
	PromptTypeInterviewPrep = "interview_prep"

	MinScore = 1.0
	MaxScore = 10.0
)

type User struct {
	UserID       string     `gorm:"primaryKey;size:16" json:"user_id"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
}

type Session struct {
	SessionID string    `gorm:"primaryKey" json:"session_id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
}

// Job is keyed by (job_id, user_id); the same posting can be tracked by several users.
type Job struct {
	JobID   string `gorm:"primaryKey;size:16" json:"job_id"`
	UserID  string `gorm:"primaryKey;index" json:"user_id"`
	Title   string `gorm:"not null" json:"title"`
	Link    string `json:"link,omitempty"`
	JobType string `json:"job_type"`

	ExperienceLevel      string `json:"experience_level,omitempty"`
	Duration             string `json:"duration,omitempty"`
	PaymentRate          string `json:"payment_rate,omitempty"`
	Description          string `gorm:"type:text" json:"description"`
	ProposalRequirements string `gorm:"type:text" json:"proposal_requirements,omitempty"`

	ClientJoinedDate     string `json:"client_joined_date,omitempty"`
	ClientLocation       string `json:"client_location,omitempty"`
	ClientTotalSpent     string `json:"client_total_spent,omitempty"`
	ClientTotalHires     int    `json:"client_total_hires,omitempty"`
	ClientCompanyProfile string `gorm:"type:text" json:"client_company_profile,omitempty"`

	// nil means the job has not been scored yet
	Score     *float64  `gorm:"index" json:"score"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Processed reports whether the job carries a score.
func (j *Job) Processed() bool {
	return j.Score != nil
}

// SetScore stores the score clamped to [1,10].
func (j *Job) SetScore(score float64) {
	s := ClampScore(score)
	j.Score = &s
}

// ScoreValue returns the score or 0 for unprocessed jobs.
func (j *Job) ScoreValue() float64 {
	if j.Score == nil {
		return 0
	}
	return *j.Score
}

func ClampScore(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

type Prompt struct {
	PromptID      string    `gorm:"primaryKey" json:"prompt_id"`
	PromptType    string    `gorm:"uniqueIndex;not null" json:"prompt_type"`
	PromptName    string    `gorm:"not null" json:"prompt_name"`
	PromptContent string    `gorm:"type:text;not null" json:"prompt_content"`
	IsActive      bool      `gorm:"default:true" json:"is_active"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AdminJob is a job joined with its owner's identity.
type AdminJob struct {
	Job
	Username string `json:"username"`
	Email    string `json:"email"`
}
