package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/upwork-job-applier/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionExpired     = errors.New("session expired or invalid")
	ErrNotAdmin           = errors.New("administrator privileges required")
	ErrSelfAction         = errors.New("administrators cannot perform this action on their own account")
)

type UserService struct {
	DB         *gorm.DB
	SessionTTL time.Duration
}

func NewUserService(db *gorm.DB, sessionTTL time.Duration) *UserService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &UserService{DB: db, SessionTTL: sessionTTL}
}

type SystemStats struct {
	Users struct {
		Total       int64 `json:"total"`
		Admins      int64 `json:"admins"`
		Active      int64 `json:"active"`
		NewThisWeek int64 `json:"new_this_week"`
	} `json:"users"`
	Jobs     JobStats `json:"jobs"`
	Sessions struct {
		Active  int64 `json:"active"`
		Expired int64 `json:"expired"`
	} `json:"sessions"`
	TopUsers []UserJobCount `json:"top_users_by_jobs"`
}

type UserJobCount struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	JobCount int64  `json:"job_count"`
}

// Register creates a user. A taken username or email yields (nil, false, nil).
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, bool, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	switch {
	case len(username) < 3:
		return nil, false, fmt.Errorf("%w: username must be at least 3 characters", models.ErrValidation)
	case !strings.Contains(email, "@"):
		return nil, false, fmt.Errorf("%w: invalid email", models.ErrValidation)
	case len(password) < 6:
		return nil, false, fmt.Errorf("%w: password must be at least 6 characters", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		UserID:       generateUserID(username),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}

	created := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}
	if !created {
		return nil, false, nil
	}
	return user, true, nil
}

// Authenticate checks credentials and stamps last_login.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = &now
	return &user, nil
}

func (s *UserService) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.SessionTTL),
		IsActive:  true,
	}
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession returns the active user behind a live session.
func (s *UserService) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	var session models.Session
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND is_active = ? AND expires_at > ?", sessionID, true, time.Now()).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	user, ok, err := s.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, ErrSessionExpired
	}
	return user, nil
}

func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	err := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions deactivates sessions past their expiry.
func (s *UserService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("expires_at <= ? AND is_active = ?", time.Now(), true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, bool, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return &user, true, nil
}

// Username resolves a display name, falling back to "Unknown".
func (s *UserService) Username(ctx context.Context, userID string) string {
	user, ok, err := s.GetUser(ctx, userID)
	if err != nil || !ok {
		return "Unknown"
	}
	return user.Username
}

func (s *UserService) IsAdmin(ctx context.Context, userID string) bool {
	user, ok, err := s.GetUser(ctx, userID)
	return err == nil && ok && user.IsAdmin && user.IsActive
}

func (s *UserService) Promote(ctx context.Context, userID string) (bool, error) {
	return s.setAdmin(ctx, userID, true)
}

func (s *UserService) Demote(ctx context.Context, userID string) (bool, error) {
	return s.setAdmin(ctx, userID, false)
}

func (s *UserService) setAdmin(ctx context.Context, userID string, admin bool) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("is_admin", admin)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update admin flag: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUserAdmin removes a user together with their jobs and sessions.
func (s *UserService) DeleteUserAdmin(ctx context.Context, adminID, targetID string) (bool, error) {
	if !s.IsAdmin(ctx, adminID) {
		return false, ErrNotAdmin
	}
	if adminID == targetID {
		return false, ErrSelfAction
	}

	deleted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", targetID).Delete(&models.Job{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", targetID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", targetID).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user %s: %w", targetID, err)
	}
	return deleted, nil
}

// ToggleUserStatus flips is_active and returns the new value.
func (s *UserService) ToggleUserStatus(ctx context.Context, adminID, targetID string) (active bool, found bool, err error) {
	if !s.IsAdmin(ctx, adminID) {
		return false, false, ErrNotAdmin
	}
	if adminID == targetID {
		return false, false, ErrSelfAction
	}
	user, ok, err := s.GetUser(ctx, targetID)
	if err != nil || !ok {
		return false, ok, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ?", targetID).
		Update("is_active", !user.IsActive).Error; err != nil {
		return false, true, fmt.Errorf("failed to toggle user status: %w", err)
	}
	return !user.IsActive, true, nil
}

// SystemStats aggregates users, jobs and sessions for the admin dashboard.
func (s *UserService) SystemStats(ctx context.Context, jobs *JobService) (SystemStats, error) {
	var stats SystemStats
	db := s.DB.WithContext(ctx)
	now := time.Now()

	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&stats.Users.Total, &models.User{}, nil},
		{&stats.Users.Admins, &models.User{}, []any{"is_admin = ?", true}},
		{&stats.Users.Active, &models.User{}, []any{"is_active = ?", true}},
		{&stats.Users.NewThisWeek, &models.User{}, []any{"created_at >= ?", now.AddDate(0, 0, -7)}},
		{&stats.Sessions.Active, &models.Session{}, []any{"is_active = ? AND expires_at > ?", true, now}},
		{&stats.Sessions.Expired, &models.Session{}, []any{"expires_at <= ?", now}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return stats, fmt.Errorf("failed to compute system stats: %w", err)
		}
	}

	jobStats, err := jobs.Stats(ctx, "")
	if err != nil {
		return stats, err
	}
	stats.Jobs = jobStats

	err = db.Table("users").
		Select("users.user_id, users.username, COUNT(jobs.job_id) AS job_count").
		Joins("LEFT JOIN jobs ON jobs.user_id = users.user_id").
		Group("users.user_id, users.username").
		Order("job_count DESC").
		Limit(10).
		Scan(&stats.TopUsers).Error
	if err != nil {
		return stats, fmt.Errorf("failed to rank users: %w", err)
	}
	return stats, nil
}

func generateUserID(username string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", username, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}
