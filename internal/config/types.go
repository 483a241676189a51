package config

// Config is the full on-disk configuration.
//
// Secrets (provider API keys, messaging tokens, owner phone number) are NOT
// part of this file; they come from the environment (see cmd/bot). The file
// holds everything that is safe to commit and hot-reload.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Timezone is the fixed IANA timezone used for every time-of-day
	// interpretation and day-boundary computation. Default: "Asia/Kolkata".
	Timezone string `json:"timezone,omitempty"`

	Logging  LoggingConfig  `json:"logging"`
	Intent   IntentConfig   `json:"intent"`
	Dispatch DispatchConfig `json:"dispatch"`
	Notifier NotifierConfig `json:"notifier"`
	Storage  StorageConfig  `json:"storage"`
	Router   RouterConfig   `json:"router"`

	Telegram TelegramConfig `json:"telegram,omitempty"`
	WhatsApp WhatsAppConfig `json:"whatsapp,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// IntentConfig controls intent resolution and the primary-provider quota.
type IntentConfig struct {
	// PrimaryModel is the metered classification model. Default: "gemini-2.5-flash".
	PrimaryModel string `json:"primary_model,omitempty"`
	// FallbackModel answers when the primary is exhausted or failing.
	// Default: "gpt-4o-mini".
	FallbackModel string `json:"fallback_model,omitempty"`
	// DailyCeiling is the maximum primary-provider calls per calendar day
	// (fixed timezone). Default: 20.
	DailyCeiling int `json:"daily_ceiling,omitempty"`
	// RequestTimeout bounds a single provider call. Default: "30s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// DispatchConfig controls the three delivery pollers.
type DispatchConfig struct {
	Enabled bool `json:"enabled"`
	// EventTime is the once-daily calendar-event check, "HH:MM" in the
	// fixed timezone. Default: "08:00".
	EventTime string `json:"event_time,omitempty"`
	// NotifyTimeout bounds a single outbound notification. Default: "15s".
	NotifyTimeout string `json:"notify_timeout,omitempty"`
}

// NotifierConfig controls the outbound delivery pipeline.
type NotifierConfig struct {
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default 3
	RetryMax   int    `json:"retry_max,omitempty"`    // default 1
	RetryBase  string `json:"retry_base,omitempty"`   // default "500ms"
}

// StorageConfig controls the sqlite persistence layer.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RouterConfig controls inbound message handling.
type RouterConfig struct {
	// OwnerName is how the assistant addresses its owner in replies.
	OwnerName string `json:"owner_name,omitempty"`
	// AssistantName is the bot's own name used in replies. Default: "Manvi".
	AssistantName string `json:"assistant_name,omitempty"`
}

type TelegramConfig struct {
	Enabled bool `json:"enabled"`
	// PollTimeout is the long-poll timeout. Default: "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type WhatsAppConfig struct {
	Enabled bool `json:"enabled"`
	// Addr is the webhook listen address. Default: ":3000".
	Addr string `json:"addr,omitempty"`
	// APIVersion is the Graph API version. Default: "v19.0".
	APIVersion string `json:"api_version,omitempty"`
}
