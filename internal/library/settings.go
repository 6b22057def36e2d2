package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/inkdex/inkdex/pkg/acl"
	"github.com/inkdex/inkdex/pkg/types"
)

// settingsKey is where the site settings document lives inside media
// storage
const settingsKey = "settings.json"

// GetSettings reads the site settings document. A missing document
// yields empty settings rather than an error.
func (s *Service) GetSettings(ctx context.Context) (*types.SiteSettings, error) {
	exists, err := s.media.Storage().Exists(ctx, settingsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check settings: %w", err)
	}
	if !exists {
		return &types.SiteSettings{}, nil
	}

	reader, err := s.media.Storage().Retrieve(ctx, settingsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings types.SiteSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		// A corrupt document is recoverable by writing new settings
		log.Warn().Err(err).Msg("settings document is not valid JSON")
		return &types.SiteSettings{}, nil
	}
	return &settings, nil
}

// UpdateSettings replaces the site settings document, admin only
func (s *Service) UpdateSettings(ctx context.Context, actor *types.User, settings *types.SiteSettings) error {
	if !acl.Allows(actor.Principals(), acl.ActionEdit, types.SiteSettingsACL()) {
		return types.Forbidden("you are not allowed to edit site settings")
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.media.Storage().Store(ctx, settingsKey, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	log.Info().Msg("site settings updated")
	return nil
}
