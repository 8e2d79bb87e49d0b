package schedule

import (
	"fmt"

	"postar/internal/config"
)

// Entry is one configured time of day.
type Entry struct {
	Hour   int
	Minute int
	Jitter int       // minutes, >= 0
	Days   []Weekday // empty means every day
}

// Nominal returns the configured time in minutes after midnight.
func (e Entry) Nominal() int { return e.Hour*60 + e.Minute }

// Label returns the configured time as HH:MM.
func (e Entry) Label() string { return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute) }

// ParseEntries builds one Entry per "HH:MM" string, all sharing jitter and days.
func ParseEntries(times []string, jitter int, days []Weekday) ([]Entry, error) {
	if jitter < 0 {
		return nil, fmt.Errorf("jitter must be >= 0, got %d", jitter)
	}
	out := make([]Entry, 0, len(times))
	for _, t := range times {
		h, m, err := config.ParseHHMM(t)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Hour: h, Minute: m, Jitter: jitter, Days: append([]Weekday(nil), days...)})
	}
	return out, nil
}
