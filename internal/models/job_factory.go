package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks malformed job input rejected before it reaches the store.
var ErrValidation = errors.New("validation failed")

var validate = validator.New(validator.WithRequiredStructEnabled())

// JobParams is the loosely-populated input for NewJob.
type JobParams struct {
	UserID               string `json:"user_id" validate:"required"`
	Title                string `json:"title" validate:"required"`
	Description          string `json:"description" validate:"required"`
	JobType              string `json:"job_type" validate:"omitempty,oneof=Fixed Hourly"`
	ExperienceLevel      string `json:"experience_level" validate:"omitempty,oneof=Entry Intermediate Expert"`
	Duration             string `json:"duration"`
	PaymentRate          string `json:"payment_rate"`
	Link                 string `json:"link" validate:"omitempty,url"`
	ProposalRequirements string `json:"proposal_requirements"`
	ClientJoinedDate     string `json:"client_joined_date"`
	ClientLocation       string `json:"client_location"`
	ClientTotalSpent     string `json:"client_total_spent"`
	ClientTotalHires     int    `json:"client_total_hires" validate:"gte=0"`
	ClientCompanyProfile string `json:"client_company_profile"`
}

// NewJob validates p and builds an unscored Job with its content-derived id.
func NewJob(p JobParams) (*Job, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.UserID = strings.TrimSpace(p.UserID)
	if p.JobType == "" {
		p.JobType = JobTypeFixed
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &Job{
		JobID:                GenerateJobID(p.Title, p.Description),
		UserID:               p.UserID,
		Title:                p.Title,
		Description:          p.Description,
		JobType:              p.JobType,
		ExperienceLevel:      p.ExperienceLevel,
		Duration:             p.Duration,
		PaymentRate:          p.PaymentRate,
		Link:                 p.Link,
		ProposalRequirements: p.ProposalRequirements,
		ClientJoinedDate:     p.ClientJoinedDate,
		ClientLocation:       p.ClientLocation,
		ClientTotalSpent:     p.ClientTotalSpent,
		ClientTotalHires:     p.ClientTotalHires,
		ClientCompanyProfile: p.ClientCompanyProfile,
		CreatedAt:            time.Now(),
	}, nil
}

// Validate checks p against its tags. Failures wrap ErrValidation.
func (p JobParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	return nil
}

// ParamsFromJob is the inverse of NewJob, used to re-validate a stored job
// after edits.
func ParamsFromJob(j Job) JobParams {
	return JobParams{
		UserID:               j.UserID,
		Title:                j.Title,
		Description:          j.Description,
		JobType:              j.JobType,
		ExperienceLevel:      j.ExperienceLevel,
		Duration:             j.Duration,
		PaymentRate:          j.PaymentRate,
		Link:                 j.Link,
		ProposalRequirements: j.ProposalRequirements,
		ClientJoinedDate:     j.ClientJoinedDate,
		ClientLocation:       j.ClientLocation,
		ClientTotalSpent:     j.ClientTotalSpent,
		ClientTotalHires:     j.ClientTotalHires,
		ClientCompanyProfile: j.ClientCompanyProfile,
	}
}

// GenerateJobID hashes the title and the first 50 characters of the description,
// so re-saving the same posting yields the same id.
func GenerateJobID(title, description string) string {
	prefix := []rune(description)
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	sum := sha256.Sum256([]byte(title + "_" + string(prefix)))
	return hex.EncodeToString(sum[:])[:16]
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
