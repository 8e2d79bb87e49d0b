package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/afero"

	"postar/internal/config"
	"postar/internal/content"
	"postar/internal/schedule"
	"postar/internal/selector"
	"postar/internal/storage"
	logx "postar/pkg/logx"
)

// Pools is the offline half of the app: content, state and selectors. The CLI
// uses it directly for check, state and reset.
type Pools struct {
	Store    storage.Store
	Library  *content.Library
	Registry *selector.Registry
}

// OpenPools loads content and opens the state store for cfg.
func OpenPools(ctx context.Context, cfg *config.Config, fs afero.Fs, log logx.Logger, opts ...selector.Option) (*Pools, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	lib, err := content.Load(fs, cfg.Content, log.With(logx.String("comp", "content")))
	if err != nil {
		if !errors.Is(err, config.ErrConfig) {
			err = fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
		return nil, err
	}

	sc, err := mapStorageConfig(cfg, fs)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	opts = append([]selector.Option{selector.WithLogger(log.With(logx.String("comp", "selector")))}, opts...)
	reg := selector.NewRegistry(ctx, st, poolsOf(lib), opts...)
	return &Pools{Store: st, Library: lib, Registry: reg}, nil
}

func poolsOf(lib *content.Library) map[string][]string {
	pools := map[string][]string{selector.PostsKey: lib.PostItems()}
	for typ, files := range lib.Media {
		pools[selector.MediaKey(typ)] = files
	}
	return pools
}

func (p *Pools) Close() error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Close()
}

// Plan is the resolved schedule: zone, active days and entries.
type Plan struct {
	Location *time.Location
	Days     []schedule.Weekday
	Entries  []schedule.Entry
}

// BuildPlan resolves the schedule section. Random day mode samples with rng, so
// callers must build the plan once per process.
func BuildPlan(sc config.ScheduleConfig, rng *rand.Rand) (Plan, error) {
	loc, err := loadLocation(sc.Timezone)
	if err != nil {
		return Plan{}, err
	}
	days, err := schedule.SelectDays(config.NormalizeDaysMode(sc.Days.Mode), sc.Days.Names, sc.Days.Count, rng)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: schedule.days: %w", config.ErrConfig, err)
	}
	var entries []schedule.Entry
	if !sc.TestMode {
		entries, err = schedule.ParseEntries(sc.Times, sc.JitterMinutes, days)
		if err != nil {
			return Plan{}, fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
	}
	return Plan{Location: loc, Days: days, Entries: entries}, nil
}
