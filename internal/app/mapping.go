package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"

	"postar/internal/config"
	"postar/internal/observability"
	"postar/internal/storage"
	"postar/internal/transport/telegram"
	logx "postar/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// mapStorageConfig maps the storage section. A missing section means the file
// driver at its default path.
func mapStorageConfig(cfg *config.Config, fs afero.Fs) (storage.Config, error) {
	sc := storage.Config{Driver: "file", Path: config.DefaultStatePath, Fs: fs}
	if cfg == nil || cfg.Storage == nil {
		return sc, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = "file"
	}
	sc.Driver = driver
	if p := strings.TrimSpace(cfg.Storage.Path); p != "" {
		sc.Path = p
	}
	switch driver {
	case "file":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return storage.Config{}, fmt.Errorf("%w: storage.path is required when storage.driver=sqlite", config.ErrConfig)
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		sc.BusyTimeout = busy
	default:
		return storage.Config{}, fmt.Errorf("%w: unknown storage.driver: %s", config.ErrConfig, cfg.Storage.Driver)
	}
	return sc, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	tc := telegram.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: cfg.Telegram.RatePerSec,
	}
	timeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, config.DefaultPollTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	tc.HTTPClient = &http.Client{Timeout: timeout}
	return tc, nil
}

func mapObservabilityConfig(cfg *config.Config) observability.Config {
	oc := cfg.Observability
	return observability.Config{
		Enabled:     oc.Enabled,
		Addr:        oc.Addr,
		MetricsPath: oc.MetricsPath,
		Pprof:       oc.Pprof,
	}
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule.timezone: %v", config.ErrConfig, err)
	}
	return loc, nil
}
