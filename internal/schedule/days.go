package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidWeekday is returned for weekday names that cannot be recognized.
var ErrInvalidWeekday = errors.New("invalid weekday")

// Weekday is a day index with Monday as 0 and Sunday as 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// AllDays lists every weekday, Monday first.
var AllDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Std converts to time.Weekday (Sunday = 0).
func (d Weekday) Std() time.Weekday { return time.Weekday((int(d) + 1) % 7) }

// FromStd converts a time.Weekday.
func FromStd(w time.Weekday) Weekday { return Weekday((int(w) + 6) % 7) }

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return d.Std().String()
}

// Day selection modes.
const (
	ModeAll      = "all"
	ModeExplicit = "explicit"
	ModeRandom   = "random"
)

var weekdayNames = map[string]Weekday{
	"monday": Monday, "mon": Monday, "segunda": Monday, "seg": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "tues": Tuesday, "terca": Tuesday, "ter": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "quarta": Wednesday, "qua": Wednesday,
	"thursday": Thursday, "thu": Thursday, "thur": Thursday, "thurs": Thursday, "quinta": Thursday, "qui": Thursday,
	"friday": Friday, "fri": Friday, "sexta": Friday, "sex": Friday,
	"saturday": Saturday, "sat": Saturday, "sabado": Saturday, "sab": Saturday,
	"sunday": Sunday, "sun": Sunday, "domingo": Sunday, "dom": Sunday,
}

// foldName lower-cases s and strips diacritics ("Sábado" -> "sabado").
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// ParseWeekday recognizes English and Portuguese names, their common abbreviations,
// the "-feira" suffix and the digits 0 (Monday) to 6 (Sunday). Case and accents are
// ignored.
func ParseWeekday(name string) (Weekday, error) {
	n := foldName(name)
	n = strings.TrimSuffix(n, ".")
	n = strings.TrimSuffix(n, "-feira")
	n = strings.TrimSuffix(n, " feira")
	n = strings.TrimSpace(n)
	if d, ok := weekdayNames[n]; ok {
		return d, nil
	}
	if len(n) == 1 && n[0] >= '0' && n[0] <= '6' {
		return Weekday(n[0] - '0'), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
}

// ParseWeekdays parses names, dropping duplicates. The result is sorted.
func ParseWeekdays(names []string) ([]Weekday, error) {
	seen := map[Weekday]bool{}
	out := make([]Weekday, 0, len(names))
	for _, name := range names {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SelectDays returns the active weekdays for mode.
//
// ModeRandom samples count distinct days without replacement; callers do this once per
// process start. An empty mode means ModeAll.
func SelectDays(mode string, names []string, count int, rng *rand.Rand) ([]Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeAll:
		return append([]Weekday(nil), AllDays...), nil
	case ModeExplicit:
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: no weekday names given", ErrInvalidWeekday)
		}
		return ParseWeekdays(names)
	case ModeRandom:
		if count < 1 || count > 7 {
			return nil, fmt.Errorf("random day count must be between 1 and 7, got %d", count)
		}
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		perm := rng.Perm(7)[:count]
		out := make([]Weekday, 0, count)
		for _, i := range perm {
			out = append(out, Weekday(i))
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	default:
		return nil, fmt.Errorf("unknown day mode %q", mode)
	}
}

// DayNames formats days for logs.
func DayNames(days []Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

func isAllDays(days []Weekday) bool {
	if len(days) == 0 {
		return true
	}
	seen := map[Weekday]bool{}
	for _, d := range days {
		seen[d] = true
	}
	return len(seen) == 7
}
