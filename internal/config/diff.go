package config

import "reflect"

// SummarizeChange names the top-level sections that differ. Values are never
// included, so the result is safe to log.
func SummarizeChange(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	sections := []struct {
		name     string
		old, new any
	}{
		{"telegram", oldCfg.Telegram, newCfg.Telegram},
		{"logging", oldCfg.Logging, newCfg.Logging},
		{"schedule", oldCfg.Schedule, newCfg.Schedule},
		{"content", oldCfg.Content, newCfg.Content},
		{"storage", oldCfg.Storage, newCfg.Storage},
		{"observability", oldCfg.Observability, newCfg.Observability},
	}
	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

// RequiresRestart reports whether a change touches anything besides logging,
// the only section applied live.
func RequiresRestart(sections []string) bool {
	for _, s := range sections {
		if s != "logging" {
			return true
		}
	}
	return false
}
