package config

type Config struct {
	Telegram      TelegramConfig      `json:"telegram"`
	Logging       LoggingConfig       `json:"logging"`
	Schedule      ScheduleConfig      `json:"schedule"`
	Content       ContentConfig       `json:"content"`
	Storage       *StorageConfig      `json:"storage,omitempty"`
	Observability ObservabilityConfig `json:"observability,omitempty"`
}

type TelegramConfig struct {
	Token        string `json:"token"`
	TargetChatID int64  `json:"target_chat_id"`
	ThreadID     int    `json:"thread_id,omitempty"`
	// PollTimeout bounds each Bot API request; a Go duration string (e.g. "30s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outgoing API calls. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ScheduleConfig controls when deliveries happen.
//
// Times are "HH:MM" in Timezone (empty means the host's local zone). Each time is
// spread uniformly over [time - jitter_minutes, time + jitter_minutes].
type ScheduleConfig struct {
	Times         []string   `json:"times"`
	JitterMinutes int        `json:"jitter_minutes"`
	Timezone      string     `json:"timezone,omitempty"`
	Days          DaysConfig `json:"days,omitempty"`

	// PostsPerDay is a legacy cross-check: when set it must equal len(Times).
	PostsPerDay int `json:"posts_per_day,omitempty"`

	// TestMode skips clock triggers and delivers every TestInterval until stopped.
	TestMode     bool   `json:"test_mode,omitempty"`
	TestInterval string `json:"test_interval,omitempty"` // default "10s"
}

// DaysConfig selects the active weekdays.
//
// Mode values:
//   - "all" (default): every day
//   - "explicit": Names lists weekdays ("monday", "terça", "sab", ...)
//   - "random": Count distinct weekdays sampled once per process start
type DaysConfig struct {
	Mode  string   `json:"mode,omitempty"`
	Names []string `json:"names,omitempty"`
	Count int      `json:"count,omitempty"`
}

// ContentConfig describes the pools.
//
// Example:
//
//	"content": {
//	  "posts_file": "./posts.txt",
//	  "media": { "categories": { "usuario": "./imagens_usuario", "revenda": "./imagens_revenda" } }
//	}
type ContentConfig struct {
	PostsFile    string      `json:"posts_file"`
	CaptionLimit int         `json:"caption_limit,omitempty"` // default 1024
	Media        MediaConfig `json:"media"`
}

type MediaConfig struct {
	// DefaultDir serves posts without a type tag (and any type missing from Categories).
	DefaultDir string            `json:"default_dir,omitempty"`
	Categories map[string]string `json:"categories,omitempty"`
	// TempDir holds converted files while they are uploaded. Defaults to os.TempDir().
	TempDir string `json:"temp_dir,omitempty"`
}

// StorageConfig controls where cycle progress is persisted.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./state.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ObservabilityConfig controls the optional HTTP server for /metrics and pprof.
//
// Prefer binding to localhost (e.g. "127.0.0.1:9090").
type ObservabilityConfig struct {
	Enabled     bool   `json:"enabled"`
	Addr        string `json:"addr,omitempty"`         // default: "127.0.0.1:9090"
	MetricsPath string `json:"metrics_path,omitempty"` // default: "/metrics"
	Pprof       bool   `json:"pprof,omitempty"`
}
