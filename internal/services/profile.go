package services

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProfileLoader supplies the freelancer profile once per pipeline run.
type ProfileLoader interface {
	LoadProfile(ctx context.Context) (string, error)
}

// FileProfile reads the profile from a text file on every call, so edits are
// picked up by the next run.
type FileProfile struct {
	Path string
}

func (p FileProfile) LoadProfile(_ context.Context) (string, error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read profile %s: %w", p.Path, err)
	}
	profile := strings.TrimSpace(string(b))
	if profile == "" {
		return "", fmt.Errorf("profile %s is empty", p.Path)
	}
	return profile, nil
}

// StaticProfile is a fixed in-memory profile.
type StaticProfile string

func (p StaticProfile) LoadProfile(context.Context) (string, error) {
	return string(p), nil
}
