package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/afero"

	"postar/internal/config"
	"postar/internal/delivery"
	"postar/internal/media"
	"postar/internal/observability"
	"postar/internal/runtime/supervisor"
	"postar/internal/schedule"
	"postar/internal/selector"
	"postar/internal/transport"
	"postar/internal/transport/telegram"
	logx "postar/pkg/logx"
)

type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor
	o    options

	log  logx.Logger
	logs *logx.Service

	pools   *Pools
	plan    Plan
	adapter transport.Sender
	deliv   *delivery.Service
	coord   *schedule.Coordinator
	metrics *observability.Metrics
	obs     *observability.Server
	target  transport.ChatTarget
}

// NewApp loads the config and builds every component. Nothing talks to the
// network until Start.
func NewApp(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	tgCfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	tgCfg.URL = o.telegramURL
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(tgCfg, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	log = log.With(logx.String("comp", "app"))

	metrics := observability.NewMetrics()

	selOpts := []selector.Option{selector.WithObserver(metrics)}
	if o.rng != nil {
		selOpts = append(selOpts, selector.WithRand(o.rng))
	}
	pools, err := OpenPools(ctx, cfg, o.fs, log, selOpts...)
	if err != nil {
		return nil, err
	}

	plan, err := BuildPlan(cfg.Schedule, o.rng)
	if err != nil {
		_ = pools.Close()
		return nil, err
	}
	if config.NormalizeDaysMode(cfg.Schedule.Days.Mode) == config.DaysRandom {
		log.Info("active days sampled", logx.Strings("days", schedule.DayNames(plan.Days)))
	}

	target := transport.ChatTarget{ChatID: cfg.Telegram.TargetChatID, ThreadID: cfg.Telegram.ThreadID}
	deliv := delivery.New(delivery.Config{
		Target:       target,
		CaptionLimit: cfg.Content.EffectiveCaptionLimit(),
	}, pools.Registry, ad, media.Converter{Fs: o.fs, TempDir: cfg.Content.Media.TempDir},
		pools.Store, log.With(logx.String("comp", "delivery")))
	deliv.SetObserver(metrics)

	var jitter *schedule.JitterPolicy
	if o.rng != nil {
		jitter = schedule.NewJitterPolicy(o.rng)
	}
	coord, err := schedule.New(plan.Entries, deliv.Deliver, schedule.Options{
		Location:     plan.Location,
		Clock:        o.clock,
		Jitter:       jitter,
		Log:          log.With(logx.String("comp", "schedule")),
		Observer:     metrics,
		TestMode:     cfg.Schedule.TestMode,
		TestInterval: cfg.Schedule.TestIntervalOrDefault(),
	})
	if err != nil {
		_ = pools.Close()
		return nil, fmt.Errorf("%w: schedule: %v", config.ErrConfig, err)
	}

	a := &App{
		cfgm:    cfgm,
		o:       o,
		log:     log,
		logs:    logSvc,
		pools:   pools,
		plan:    plan,
		adapter: ad,
		deliv:   deliv,
		coord:   coord,
		metrics: metrics,
		target:  target,
	}
	a.obs = observability.NewServer(mapObservabilityConfig(cfg), metrics, a.health,
		log.With(logx.String("comp", "observability")))
	return a, nil
}

func defaultFs() afero.Fs { return afero.NewOsFs() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Registry exposes the pool selectors (state inspection, tests).
func (a *App) Registry() *selector.Registry { return a.pools.Registry }

// Plan returns the resolved schedule.
func (a *App) Plan() Plan { return a.plan }

// Coordinator returns the schedule coordinator (previews, tests).
func (a *App) Coordinator() *schedule.Coordinator { return a.coord }

func (a *App) health() error {
	if err := a.Err(); err != nil {
		return err
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.checkTarget(a.sup.Context())

	for _, st := range a.pools.Registry.Status(a.sup.Context()) {
		a.metrics.SetRemaining(st.Key, st.Remaining)
		a.log.Info("pool", logx.String("key", st.Key), logx.Int("size", st.Size), logx.Int("remaining", st.Remaining))
	}

	a.log.Info("schedule ready",
		logx.Strings("days", schedule.DayNames(a.plan.Days)),
		logx.String("zone", a.plan.Location.String()),
		logx.Strings("specs", a.coord.Specs()))
	if ups := a.coord.Preview(a.o.clock.Now(), 5); len(ups) > 0 {
		a.log.Info("upcoming windows", logx.String("next", schedule.FormatPreview(ups)))
	}

	a.sup.Go("schedule", a.coord.Run)
	a.obs.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.notify(notifyReady)
	a.log.Info("app started")
	return nil
}

// checkTarget resolves the destination chat once. A failure is only logged:
// deliveries report their own errors.
func (a *App) checkTarget(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	info, err := a.adapter.ResolveChat(cctx, a.target.ChatID)
	if err != nil {
		a.log.Error("target chat not reachable", logx.Int64("chat_id", a.target.ChatID), logx.Err(err))
		return
	}
	a.log.Info("target chat", logx.Int64("chat_id", info.ID), logx.String("name", info.Name()), logx.String("type", info.Type))
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			sections := config.SummarizeChange(lastApplied, newCfg)
			lastApplied = newCfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			a.logs.Apply(mapLogConfig(newCfg))
			if config.RequiresRestart(sections) {
				a.log.Warn("config changed; restart required for changes to take effect",
					logx.String("changed", strings.Join(sections, ",")))
				continue
			}
			a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
		}
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	if reason == "" {
		reason = StopUnknown
	}
	a.notify(notifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel first so the coordinator abandons pending jitter sleeps.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("observability", 2*time.Second, func(c context.Context) error { a.obs.Stop(c); return nil })
	// The coordinator finishes an in-flight delivery before returning.
	step("supervisor", 10*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(context.Context) error { return a.pools.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

type options struct {
	fs          afero.Fs
	clock       schedule.Clock
	rng         *rand.Rand
	telegramURL string
	notifier    func(state string) (bool, error)
}

func defaultOptions() options {
	return options{
		fs:       defaultFs(),
		clock:    schedule.SystemClock{},
		notifier: sdNotify,
	}
}

type Option func(*options)

// WithFs reads content and state through fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithClock drives the coordinator from c.
func WithClock(c schedule.Clock) Option { return func(o *options) { o.clock = c } }

// WithRand seeds shuffles, day sampling and jitter from r.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rng = r } }

// WithTelegramURL points the Bot API client at url.
func WithTelegramURL(url string) Option { return func(o *options) { o.telegramURL = url } }

// WithNotifier replaces the service manager notification hook.
func WithNotifier(fn func(state string) (bool, error)) Option {
	return func(o *options) { o.notifier = fn }
}
