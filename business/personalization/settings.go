package personalization

import (
	"context"
	"fmt"
	"os"
	"time"

	"myGreenStorefront/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnabled            = true
	defaultWeightRecency      = 0.7
	defaultWeightFrequency    = 0.5
	defaultWeightFeedback     = 0.8
	defaultDecayRate          = 0.95
	defaultMinRelevanceScore  = 0.3
	defaultRefreshInterval    = 24
	defaultMaxSections        = 3
	defaultMaxItemsPerSection = 8
)

func DefaultSettings() domain.PersonalizationSettings {
	return domain.PersonalizationSettings{
		Enabled:            defaultEnabled,
		WeightRecency:      defaultWeightRecency,
		WeightFrequency:    defaultWeightFrequency,
		WeightFeedback:     defaultWeightFeedback,
		DecayRate:          defaultDecayRate,
		MinRelevanceScore:  defaultMinRelevanceScore,
		RefreshInterval:    defaultRefreshInterval,
		MaxSections:        defaultMaxSections,
		MaxItemsPerSection: defaultMaxItemsPerSection,
	}
}

// SettingsPatch carries a partial settings update. Nil fields keep their
// current value.
type SettingsPatch struct {
	Enabled            *bool    `json:"enabled,omitempty"`
	WeightRecency      *float64 `json:"weightRecency,omitempty"`
	WeightFrequency    *float64 `json:"weightFrequency,omitempty"`
	WeightFeedback     *float64 `json:"weightFeedback,omitempty"`
	DecayRate          *float64 `json:"decayRate,omitempty"`
	MinRelevanceScore  *float64 `json:"minRelevanceScore,omitempty"`
	RefreshInterval    *int     `json:"refreshInterval,omitempty"`
	MaxSections        *int     `json:"maxSections,omitempty"`
	MaxItemsPerSection *int     `json:"maxItemsPerSection,omitempty"`
}

// Apply returns base with every non-nil field of p copied over it.
func (p SettingsPatch) Apply(base domain.PersonalizationSettings) domain.PersonalizationSettings {
	out := base
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.WeightRecency != nil {
		out.WeightRecency = *p.WeightRecency
	}
	if p.WeightFrequency != nil {
		out.WeightFrequency = *p.WeightFrequency
	}
	if p.WeightFeedback != nil {
		out.WeightFeedback = *p.WeightFeedback
	}
	if p.DecayRate != nil {
		out.DecayRate = *p.DecayRate
	}
	if p.MinRelevanceScore != nil {
		out.MinRelevanceScore = *p.MinRelevanceScore
	}
	if p.RefreshInterval != nil {
		out.RefreshInterval = *p.RefreshInterval
	}
	if p.MaxSections != nil {
		out.MaxSections = *p.MaxSections
	}
	if p.MaxItemsPerSection != nil {
		out.MaxItemsPerSection = *p.MaxItemsPerSection
	}
	return out
}

// ValidateSettings checks the ranges declared on domain.PersonalizationSettings.
func ValidateSettings(v *validator.Validate, s domain.PersonalizationSettings) error {
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// LoadSettingsFile reads server-wide defaults from a YAML file. Keys missing
// from the file keep the built-in defaults.
func LoadSettingsFile(path string) (domain.PersonalizationSettings, error) {
	cfg := DefaultSettings()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings file: %w", err)
	}
	if err := ValidateSettings(nil, cfg); err != nil {
		return DefaultSettings(), err
	}
	return cfg, nil
}

// loadSettings merges the stored overrides over the manager defaults. Missing,
// corrupted or out-of-range overrides fall back to the defaults.
func (s *Service) loadSettings(ctx context.Context) (domain.PersonalizationSettings, error) {
	cfg := s.m.defaults

	var stored SettingsPatch
	ok, err := readValue(ctx, s.store, KeySettings, &stored)
	if err != nil {
		if isCorrupt(err) {
			s.warn("ignoring corrupted settings", err)
			return s.m.defaults, nil
		}
		return s.m.defaults, err
	}
	if !ok {
		return cfg, nil
	}

	cfg = stored.Apply(cfg)
	if err := ValidateSettings(s.m.validate, cfg); err != nil {
		s.warn("ignoring out-of-range settings", err)
		return s.m.defaults, nil
	}
	return cfg, nil
}

// GetSettings returns the effective settings of the scope. Storage failures
// yield the defaults.
func (s *Service) GetSettings(ctx context.Context) (cfg domain.PersonalizationSettings) {
	cfg = s.m.defaults
	defer s.recoverTo(ctx, "get_settings", func() { cfg = s.m.defaults })

	unlock := s.lock()
	defer unlock()

	loaded, err := s.loadSettings(ctx)
	if err != nil {
		s.fail(ctx, "get_settings", err)
		return s.m.defaults
	}
	return loaded
}

// UpdateSettings merges patch over the effective settings, validates the
// result and persists it.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) (domain.PersonalizationSettings, error) {
	if err := ctx.Err(); err != nil {
		return s.m.defaults, fmt.Errorf("context error: %w", err)
	}

	unlock := s.lock()
	defer unlock()

	current, err := s.loadSettings(ctx)
	if err != nil {
		return current, fmt.Errorf("failed to load settings: %w", err)
	}

	next := patch.Apply(current)
	if err := ValidateSettings(s.m.validate, next); err != nil {
		return current, err
	}

	if err := writeValue(ctx, s.store, KeySettings, settingsRecord(next)); err != nil {
		return current, err
	}

	s.debug("settings updated", "enabled", next.Enabled, "decay_rate", next.DecayRate)
	return next, nil
}

// settingsRecord persists every field, not just the patched ones.
func settingsRecord(cfg domain.PersonalizationSettings) SettingsPatch {
	return SettingsPatch{
		Enabled:            &cfg.Enabled,
		WeightRecency:      &cfg.WeightRecency,
		WeightFrequency:    &cfg.WeightFrequency,
		WeightFeedback:     &cfg.WeightFeedback,
		DecayRate:          &cfg.DecayRate,
		MinRelevanceScore:  &cfg.MinRelevanceScore,
		RefreshInterval:    &cfg.RefreshInterval,
		MaxSections:        &cfg.MaxSections,
		MaxItemsPerSection: &cfg.MaxItemsPerSection,
	}
}

// RefreshEvery converts RefreshInterval (hours) to a duration.
func RefreshEvery(cfg domain.PersonalizationSettings) time.Duration {
	return time.Duration(cfg.RefreshInterval) * time.Hour
}
