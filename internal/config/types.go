package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
	Policy    PolicyConfig    `json:"policy"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
// Driver values: "sqlite", "file", "memory".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TelegramConfig enables the real Telegram sender. When the whole section
// is omitted, telegram campaigns go through the loopback sender.
type TelegramConfig struct {
	Token      string `json:"token"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// PolicyConfig carries the compliance policy: content rules plus the
// server-enforced campaign limit bounds.
//
// Defaults (when fields are omitted/zero):
//   - prohibited_keywords: built-in solicitation/urgency list
//   - max_message_length: 1000
//   - max_caps_ratio: 0.5
//   - min_cooldown: "60s"
//   - max_daily_limit: 50
type PolicyConfig struct {
	ProhibitedKeywords []string `json:"prohibited_keywords,omitempty"`
	MaxMessageLength   int      `json:"max_message_length,omitempty"`
	MaxCapsRatio       float64  `json:"max_caps_ratio,omitempty"`
	MinCooldown        string   `json:"min_cooldown,omitempty"` // Go duration string
	MaxDailyLimit      int      `json:"max_daily_limit,omitempty"`
}

// DispatchConfig tunes the engine's pacing between sends.
//
// Jitter widens the inter-send delay to [cooldown, cooldown+jitter].
type DispatchConfig struct {
	Jitter string `json:"jitter,omitempty"` // Go duration string, default "10s"
}

type SchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	PollInterval string `json:"poll_interval,omitempty"` // Go duration string, default "60s"
}
