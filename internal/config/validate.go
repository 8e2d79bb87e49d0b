package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrConfig marks malformed or missing settings. It is fatal at startup.
var ErrConfig = errors.New("invalid config")

const (
	DefaultCaptionLimit = 1024
	DefaultTestInterval = 10 * time.Second
	DefaultPollTimeout  = 60 * time.Second
	DefaultStatePath    = "./state.json"
	DefaultObsAddr      = "127.0.0.1:9090"
	DefaultMetricsPath  = "/metrics"
)

// Day selection modes.
const (
	DaysAll      = "all"
	DaysExplicit = "explicit"
	DaysRandom   = "random"
)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Validate checks everything that can be checked without touching the network.
// Weekday names are validated by the schedule package when the sampler runs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return configErr("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return configErr("telegram.token is required")
	}
	if cfg.Telegram.TargetChatID == 0 {
		return configErr("telegram.target_chat_id is required")
	}
	if cfg.Telegram.RatePerSec < 0 {
		return configErr("telegram.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	if err := validateSchedule(&cfg.Schedule); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Content.PostsFile) == "" {
		return configErr("content.posts_file is required")
	}
	if cfg.Content.CaptionLimit < 0 {
		return configErr("content.caption_limit must be >= 0")
	}
	if strings.TrimSpace(cfg.Content.Media.DefaultDir) == "" && len(cfg.Content.Media.Categories) == 0 {
		return configErr("content.media needs default_dir or at least one category")
	}
	for typ, dir := range cfg.Content.Media.Categories {
		if strings.TrimSpace(typ) == "" {
			return configErr("content.media.categories: empty post type")
		}
		if strings.TrimSpace(dir) == "" {
			return configErr("content.media.categories.%s: directory is required", typ)
		}
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "file":
		case "sqlite", "sqlite3":
			if strings.TrimSpace(cfg.Storage.Path) == "" {
				return configErr("storage.path is required when storage.driver=sqlite")
			}
		default:
			return configErr("unknown storage.driver: %s", cfg.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func validateSchedule(sc *ScheduleConfig) error {
	if sc.JitterMinutes < 0 {
		return configErr("schedule.jitter_minutes must be >= 0")
	}
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return configErr("schedule.timezone: invalid %q: %v", tz, err)
		}
	}
	if _, err := ParseDurationField("schedule.test_interval", sc.TestInterval); err != nil {
		return err
	}
	if sc.TestMode {
		// Clock times are irrelevant in test mode.
		return nil
	}
	if len(sc.Times) == 0 {
		return configErr("schedule.times must list at least one HH:MM")
	}
	if sc.PostsPerDay != 0 && sc.PostsPerDay != len(sc.Times) {
		return configErr("schedule.posts_per_day (%d) must match the number of schedule.times (%d)", sc.PostsPerDay, len(sc.Times))
	}
	for i, t := range sc.Times {
		if _, _, err := ParseHHMM(t); err != nil {
			return configErr("schedule.times[%d]: %v", i, err)
		}
	}

	switch NormalizeDaysMode(sc.Days.Mode) {
	case DaysAll:
	case DaysExplicit:
		if len(sc.Days.Names) == 0 {
			return configErr("schedule.days.names is required when mode=explicit")
		}
	case DaysRandom:
		if sc.Days.Count < 1 || sc.Days.Count > 7 {
			return configErr("schedule.days.count must be between 1 and 7 when mode=random")
		}
	default:
		return configErr("unknown schedule.days.mode: %s", sc.Days.Mode)
	}
	return nil
}

// NormalizeDaysMode maps the empty mode to DaysAll and lower-cases the rest.
func NormalizeDaysMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return DaysAll
	}
	return m
}

// ParseHHMM parses a wall clock time of day.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// EffectiveCaptionLimit returns the caption limit with the default applied.
func (c ContentConfig) EffectiveCaptionLimit() int {
	if c.CaptionLimit <= 0 {
		return DefaultCaptionLimit
	}
	return c.CaptionLimit
}

// TestIntervalOrDefault returns the effective test-mode interval.
func (s ScheduleConfig) TestIntervalOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("schedule.test_interval", s.TestInterval, DefaultTestInterval)
	if err != nil {
		return DefaultTestInterval
	}
	return d
}
