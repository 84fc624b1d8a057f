package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const fileName = "high_score_notifications.json"

type Notification struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	JobTitle  string    `json:"job_title"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender forwards notifications to an external channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Store keeps every notification in one JSON array file. Each append
// rewrites the whole file.
type Store struct {
	path   string
	sender Sender
	log    *zap.Logger

	mu sync.Mutex
}

func NewStore(dataDir string, sender Sender, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: filepath.Join(dataDir, fileName), sender: sender, log: log}
}

func (s *Store) Path() string {
	return s.path
}

// Append adds notifications to the file and forwards each to the sender.
// Sender failures are logged only.
func (s *Store) Append(ctx context.Context, items []Notification) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	existing := s.load()
	existing = append(existing, items...)
	err := s.save(existing)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.log.Info("🔔 saved high score notifications", zap.Int("count", len(items)))

	if s.sender != nil {
		for _, n := range items {
			if err := s.sender.Send(ctx, n); err != nil {
				s.log.Warn("⚠️ failed to forward notification", zap.String("user_id", n.UserID), zap.Error(err))
			}
		}
	}
	return nil
}

// List returns up to limit notifications, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) []Notification {
	s.mu.Lock()
	items := s.load()
	s.mu.Unlock()

	out := make([]Notification, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Clear removes every notification.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	return nil
}

// load treats a missing or corrupt file as empty.
func (s *Store) load() []Notification {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("⚠️ failed to read notifications", zap.Error(err))
		}
		return nil
	}
	var items []Notification
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("⚠️ failed to parse notifications, starting fresh", zap.Error(err))
		return nil
	}
	return items
}

func (s *Store) save(items []Notification) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create notification directory: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write notifications: %w", err)
	}
	return nil
}
