package app

import (
	"fmt"

	"campaignbot/internal/compliance"
	"campaignbot/internal/config"
	"campaignbot/pkg/logx"
)

// Validate rejects configs the components would otherwise swallow as
// defaults. Hooked into the manager so a broken hot reload is dropped
// instead of applied.
func Validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("policy.min_cooldown", cfg.Policy.MinCooldown); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("dispatch.jitter", cfg.Dispatch.Jitter); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("scheduler.poll_interval", cfg.Scheduler.PollInterval); err != nil {
		return err
	}
	if cfg.Policy.MaxCapsRatio < 0 || cfg.Policy.MaxCapsRatio > 1 {
		return fmt.Errorf("policy.max_caps_ratio: must be within [0, 1], got %v", cfg.Policy.MaxCapsRatio)
	}
	if cfg.Policy.MaxDailyLimit < 0 {
		return fmt.Errorf("policy.max_daily_limit: must be >= 0, got %d", cfg.Policy.MaxDailyLimit)
	}
	return nil
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

func gateConfig(c config.PolicyConfig) compliance.Config {
	return compliance.Config{
		ProhibitedKeywords: c.ProhibitedKeywords,
		MaxMessageLength:   c.MaxMessageLength,
		MaxCapsRatio:       c.MaxCapsRatio,
	}
}
