package config

// Config is the root of vellum's configuration file (YAML or JSON).
//
// Unknown keys are rejected on load so typos surface immediately instead of
// silently falling back to defaults.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	Pprof   PprofConfig   `json:"pprof,omitempty"`

	// Storage configures the SQLite task store. Required: the journal and
	// the scheduler both read and write through it.
	Storage StorageConfig `json:"storage"`

	// Scheduler controls scheduling-run defaults and the optional
	// auto-schedule cron trigger.
	Scheduler SchedulerConfig `json:"scheduler"`

	// AI configures the task-breakdown endpoint. If omitted, the
	// /ai/classify route answers 503.
	AI *AIConfig `json:"ai,omitempty"`
}

// ServerConfig controls the HTTP API listener.
//
// Tokens maps bearer tokens to user IDs. This is an operator-managed static
// mapping, not an authentication system; rotate by editing the config file
// (hot reload applies it without restart).
type ServerConfig struct {
	Addr  string `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	Debug bool   `json:"debug,omitempty"`
	CORS  bool   `json:"cors,omitempty"`

	Tokens map[string]string `json:"tokens"`

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
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

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./vellum.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls scheduling-run defaults.
//
// Timezone is the fallback IANA zone used when a schedule request does not
// carry one. DaysToSchedule is the default horizon; requests may override it
// within [1, 90].
type SchedulerConfig struct {
	Timezone       string `json:"timezone,omitempty"`         // default: "UTC"
	DaysToSchedule int    `json:"days_to_schedule,omitempty"` // default: 3

	// Auto re-runs the scheduler for users who enabled auto_schedule in
	// their preferences.
	Auto *AutoScheduleConfig `json:"auto,omitempty"`
}

// AutoScheduleConfig controls the cron trigger for automatic runs.
//
// Spec accepts standard 5-field cron expressions or descriptors such as
// "@daily" / "@every 6h".
type AutoScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"` // default: "@daily"
}

// AIConfig controls the LLM task-breakdown feature.
//
// BaseURL points at an OpenAI-compatible chat-completions API
// (default: Groq). The key is never logged.
type AIConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"` // default: "https://api.groq.com/openai/v1"
	Model   string `json:"model,omitempty"`    // default: "llama-3.3-70b-versatile"

	DailyLimit int    `json:"daily_limit,omitempty"`  // per-user classifications/day, default 3
	RatePerSec int    `json:"rate_per_sec,omitempty"` // process-wide limiter, default 1
	Timeout    string `json:"timeout,omitempty"`      // Go duration string, default "30s"
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note: prefer binding to localhost (e.g. "127.0.0.1:6060").
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Address              string `json:"address,omitempty"` // default: "127.0.0.1:6060"
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}
