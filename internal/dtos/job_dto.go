package dtos

import "github.com/justsurfingit/upwork-job-applier/internal/models"

type JobCreationRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	JobType     string `json:"job_type" binding:"omitempty,oneof=Fixed Hourly"`

	// Optional Fields
	ExperienceLevel      string `json:"experience_level" binding:"omitempty,oneof=Entry Intermediate Expert"`
	Duration             string `json:"duration"`
	PaymentRate          string `json:"payment_rate"`
	Link                 string `json:"link"`
	ProposalRequirements string `json:"proposal_requirements"`
	ClientJoinedDate     string `json:"client_joined_date"`
	ClientLocation       string `json:"client_location"`
	ClientTotalSpent     string `json:"client_total_spent"`
	ClientTotalHires     int    `json:"client_total_hires"`
	ClientCompanyProfile string `json:"client_company_profile"`
}

// Params maps the request onto the job factory input for owner.
func (r JobCreationRequest) Params(owner string) models.JobParams {
	return models.JobParams{
		UserID:               owner,
		Title:                r.Title,
		Description:          r.Description,
		JobType:              r.JobType,
		ExperienceLevel:      r.ExperienceLevel,
		Duration:             r.Duration,
		PaymentRate:          r.PaymentRate,
		Link:                 r.Link,
		ProposalRequirements: r.ProposalRequirements,
		ClientJoinedDate:     r.ClientJoinedDate,
		ClientLocation:       r.ClientLocation,
		ClientTotalSpent:     r.ClientTotalSpent,
		ClientTotalHires:     r.ClientTotalHires,
		ClientCompanyProfile: r.ClientCompanyProfile,
	}
}

type JobIDsRequest struct {
	JobIDs []string `json:"job_ids" binding:"required,min=1"`
}

type JobQuery struct {
	ScoreMin    *float64 `form:"score_min"`
	ScoreMax    *float64 `form:"score_max"`
	JobType     string   `form:"job_type"`
	Unprocessed bool     `form:"unprocessed"`
}
