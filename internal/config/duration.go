package config

import (
	"strings"
	"time"
)

// ParseDurationField parses an optional Go duration setting named by key.
// Empty means zero. Negative values are rejected. Errors wrap ErrConfig.
func ParseDurationField(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, configErr("%s: %q is not a duration (e.g. \"30s\", \"2m\")", key, raw)
	case d < 0:
		return 0, configErr("%s: must not be negative", key)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for zero.
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(key, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
