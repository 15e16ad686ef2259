package policy

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("course config not found")

type Repository interface {
	// GetConfig returns ErrNotFound when the course has no config row yet.
	GetConfig(ctx context.Context, course string) (Config, error)
	CreateConfig(ctx context.Context, cfg Config) (Config, error)
	SaveConfig(ctx context.Context, cfg Config) (Config, error)
}

// Update holds a partial config update. Nil message means unchanged.
type Update struct {
	Toggles map[string]bool
	Message *string
}

// Get returns the course config, creating the default-allow row on first access.
func Get(ctx context.Context, repo Repository, course string) (Config, error) {
	if course == "" {
		return Config{}, errors.New("course scope required")
	}
	cfg, err := repo.GetConfig(ctx, course)
	if err == nil {
		return cfg, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Config{}, errors.Wrap(err, "getting course config")
	}
	cfg, err = repo.CreateConfig(ctx, DefaultConfig(course))
	return cfg, errors.Wrap(err, "creating course config")
}

// Apply sets the named toggles. Unknown keys are a programming error and leave cfg untouched.
func Apply(cfg Config, upd Update) (Config, error) {
	fields := cfg.toggles()
	for key := range upd.Toggles {
		if _, ok := fields[key]; !ok {
			return Config{}, errors.Errorf("unknown policy toggle %q", key)
		}
	}
	for key, val := range upd.Toggles {
		*fields[key] = val
	}
	if upd.Message != nil {
		cfg.Message = *upd.Message
	}
	return cfg, nil
}

// Set applies upd to the course config and persists it.
func Set(ctx context.Context, repo Repository, course string, upd Update) (Config, error) {
	cfg, err := Get(ctx, repo, course)
	if err != nil {
		return Config{}, err
	}
	if cfg, err = Apply(cfg, upd); err != nil {
		return Config{}, err
	}
	cfg, err = repo.SaveConfig(ctx, cfg)
	return cfg, errors.Wrap(err, "saving course config")
}
