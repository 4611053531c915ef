package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/decbridge/internal/loggy"
)

// SettingsService persists the mutable settings (storage directory, instance
// name) and keeps the in-memory Config in step with them.
type SettingsService struct {
	repo   SettingsRepository
	config *Config
	logger *loggy.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *sql.DB, config *Config, logger *loggy.Logger) *SettingsService {
	repo := NewSQLSettingsRepository(db, logger)

	return &SettingsService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// GetSetting retrieves a setting by key
func (s *SettingsService) GetSetting(ctx context.Context, key string) (string, error) {
	return s.repo.GetSetting(ctx, key)
}

// SetSetting sets a setting value
func (s *SettingsService) SetSetting(ctx context.Context, key, value string) error {
	return s.repo.SetSetting(ctx, key, value)
}

// GetRepository returns the underlying repository
func (s *SettingsService) GetRepository() SettingsRepository {
	return s.repo
}

// LoadSettings applies persisted settings to the Config. Environment
// variables win over persisted values so one-off overrides remain possible.
func (s *SettingsService) LoadSettings(ctx context.Context) error {
	if s.config.DecSync.Directory == "" {
		dir, err := s.repo.GetSetting(ctx, SettingDecSyncDir)
		if err != nil {
			return fmt.Errorf("loading storage directory setting: %w", err)
		}
		s.config.DecSync.Directory = dir
	}

	if s.config.DecSync.InstanceName == "" {
		name, err := s.repo.GetSetting(ctx, SettingInstanceName)
		if err != nil {
			return fmt.Errorf("loading instance name setting: %w", err)
		}
		s.config.DecSync.InstanceName = name
	}

	return nil
}

// SetDirectory persists a new storage location and applies it to the Config
// with immediate effect on subsequent bridge calls.
func (s *SettingsService) SetDirectory(ctx context.Context, dir string) error {
	if err := s.repo.SetSetting(ctx, SettingDecSyncDir, dir); err != nil {
		return err
	}
	s.config.SetDirectory(dir)
	s.logger.Info("storage directory updated", "dir", dir)
	return nil
}

// EnsureInstanceName persists the given instance name if none is stored yet
// and applies the effective name to the Config.
func (s *SettingsService) EnsureInstanceName(ctx context.Context, generated string) (string, error) {
	if s.config.DecSync.InstanceName != "" {
		return s.config.DecSync.InstanceName, nil
	}

	if err := s.repo.SetSetting(ctx, SettingInstanceName, generated); err != nil {
		return "", fmt.Errorf("persisting instance name: %w", err)
	}
	s.config.DecSync.InstanceName = generated
	return generated, nil
}
