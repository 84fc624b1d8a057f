package services

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"gorm.io/gorm"
)

// Built-in prompt types. Only cover_letter and interview_prep can be
// overridden by an admin.
const (
	PromptScoreJobs      = "score_jobs"
	PromptScoreSingleJob = "score_single_job"
	PromptGatherProfile  = "gather_profile"

	profilePlaceholder = "{profile}"
)

//go:embed prompts/*.md
var promptFS embed.FS

var defaultPromptNames = map[string]string{
	models.PromptTypeCoverLetter:   "Default Cover Letter Template",
	models.PromptTypeInterviewPrep: "Default Interview Preparation Template",
}

// PromptResolver abstracts template lookup for the pipeline.
type PromptResolver interface {
	Resolve(ctx context.Context, promptType, profile string) (string, error)
}

type PromptService struct {
	DB    *gorm.DB
	Users *UserService
}

func NewPromptService(db *gorm.DB, users *UserService) *PromptService {
	return &PromptService{DB: db, Users: users}
}

// DefaultPrompt returns the built-in body for promptType.
func DefaultPrompt(promptType string) (string, error) {
	b, err := promptFS.ReadFile("prompts/" + promptType + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt type %q", promptType)
	}
	return string(b), nil
}

func IsManagedPromptType(promptType string) bool {
	_, ok := defaultPromptNames[promptType]
	return ok
}

// Resolve returns the active stored template for promptType, or the built-in
// default, with the profile substituted.
func (s *PromptService) Resolve(ctx context.Context, promptType, profile string) (string, error) {
	body := ""
	if IsManagedPromptType(promptType) {
		p, ok, err := s.GetPrompt(ctx, promptType)
		if err != nil {
			return "", err
		}
		if ok {
			body = p.PromptContent
		}
	}
	if body == "" {
		def, err := DefaultPrompt(promptType)
		if err != nil {
			return "", err
		}
		body = def
	}
	return strings.ReplaceAll(body, profilePlaceholder, profile), nil
}

// GetPrompt returns the active template of promptType.
func (s *PromptService) GetPrompt(ctx context.Context, promptType string) (*models.Prompt, bool, error) {
	var p models.Prompt
	err := s.DB.WithContext(ctx).
		Where("prompt_type = ? AND is_active = ?", promptType, true).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load prompt %s: %w", promptType, err)
	}
	return &p, true, nil
}

// UpsertPrompt creates or replaces the template for promptType.
func (s *PromptService) UpsertPrompt(ctx context.Context, adminID, promptType, name, content string) (*models.Prompt, error) {
	if !s.Users.IsAdmin(ctx, adminID) {
		return nil, ErrNotAdmin
	}
	if !IsManagedPromptType(promptType) {
		return nil, fmt.Errorf("%w: unsupported prompt type %q", models.ErrValidation, promptType)
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: prompt name and content are required", models.ErrValidation)
	}

	var out models.Prompt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("prompt_type = ?", promptType).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.Prompt{
				PromptID:      uuid.NewString(),
				PromptType:    promptType,
				PromptName:    name,
				PromptContent: content,
				IsActive:      true,
				CreatedBy:     adminID,
			}
			return tx.Create(&out).Error
		case err != nil:
			return err
		}
		out.PromptName = name
		out.PromptContent = content
		out.IsActive = true
		out.CreatedBy = adminID
		out.UpdatedAt = time.Now()
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save prompt %s: %w", promptType, err)
	}
	return &out, nil
}

func (s *PromptService) AllPrompts(ctx context.Context, adminID string) ([]models.Prompt, error) {
	if !s.Users.IsAdmin(ctx, adminID) {
		return nil, ErrNotAdmin
	}
	var prompts []models.Prompt
	if err := s.DB.WithContext(ctx).Order("prompt_type").Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

func (s *PromptService) DeletePrompt(ctx context.Context, adminID, promptType string) (bool, error) {
	if !s.Users.IsAdmin(ctx, adminID) {
		return false, ErrNotAdmin
	}
	res := s.DB.WithContext(ctx).Where("prompt_type = ?", promptType).Delete(&models.Prompt{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete prompt %s: %w", promptType, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InitializeDefaults stores the built-in templates so admins can edit them.
func (s *PromptService) InitializeDefaults(ctx context.Context, adminID string) error {
	for _, t := range []string{models.PromptTypeCoverLetter, models.PromptTypeInterviewPrep} {
		body, err := DefaultPrompt(t)
		if err != nil {
			return err
		}
		if _, err := s.UpsertPrompt(ctx, adminID, t, defaultPromptNames[t], body); err != nil {
			return err
		}
	}
	return nil
}
