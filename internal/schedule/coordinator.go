package schedule

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "postar/pkg/logx"
)

// Fire describes one delivery handed to the callback.
type Fire struct {
	Entry   Entry
	Label   string    // nominal "HH:MM", or "test" in test mode
	Day     Weekday   // weekday of Armed
	Armed   time.Time // trigger time (window start)
	Delay   time.Duration
	Planned time.Time // Armed + Delay
}

// DeliverFunc performs one delivery. Its errors are logged; they never stop the
// coordinator.
type DeliverFunc func(ctx context.Context, f Fire) error

// Observer receives coordinator events.
type Observer interface {
	TriggerArmed(label string, next time.Time)
	DeliveryFinished(label string, err error, took time.Duration)
}

// Options configures a Coordinator.
type Options struct {
	Location *time.Location // default time.Local
	Clock    Clock          // default SystemClock
	Jitter   *JitterPolicy  // default time-seeded
	Log      logx.Logger
	Observer Observer

	// TestMode replaces clock triggers with back-to-back deliveries every TestInterval.
	TestMode     bool
	TestInterval time.Duration
}

type trigger struct {
	entry Entry
	day   Weekday // only meaningful when !daily
	daily bool
	sched cron.Schedule
	spec  string
}

const (
	itemArm = iota
	itemDeliver
)

type item struct {
	at   time.Time
	kind int
	trig int
	fire Fire
	seq  uint64
}

// timeline orders items by time, then by insertion.
type timeline []*item

func (t timeline) Len() int { return len(t) }
func (t timeline) Less(i, j int) bool {
	if !t[i].at.Equal(t[j].at) {
		return t[i].at.Before(t[j].at)
	}
	return t[i].seq < t[j].seq
}
func (t timeline) Swap(i, j int) { t[i], t[j] = t[j], t[i] }
func (t *timeline) Push(x any)   { *t = append(*t, x.(*item)) }
func (t *timeline) Pop() any {
	old := *t
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*t = old[:n-1]
	return it
}

// Coordinator arms one recurring trigger per (entry, weekday) and runs deliveries on a
// single goroutine.
type Coordinator struct {
	opt      Options
	deliver  DeliverFunc
	triggers []trigger
	log      logx.Logger

	mu      sync.Mutex
	running bool
	tl      timeline
	seq     uint64
}

// New builds the triggers for entries. Entries without days run daily.
func New(entries []Entry, deliver DeliverFunc, opt Options) (*Coordinator, error) {
	if deliver == nil {
		return nil, errors.New("deliver func is required")
	}
	if opt.Location == nil {
		opt.Location = time.Local
	}
	if opt.Clock == nil {
		opt.Clock = SystemClock{}
	}
	if opt.Jitter == nil {
		opt.Jitter = NewJitterPolicy(rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.TestMode && opt.TestInterval <= 0 {
		opt.TestInterval = 10 * time.Second
	}
	if !opt.TestMode && len(entries) == 0 {
		return nil, errors.New("at least one schedule entry is required")
	}

	c := &Coordinator{opt: opt, deliver: deliver, log: opt.Log}
	for _, e := range entries {
		ts, err := buildTriggers(e, opt.Location)
		if err != nil {
			return nil, err
		}
		c.triggers = append(c.triggers, ts...)
	}
	return c, nil
}

func buildTriggers(e Entry, loc *time.Location) ([]trigger, error) {
	w := WindowOf(e)
	h, m := w.Earliest/60, w.Earliest%60
	if isAllDays(e.Days) {
		t, err := newTrigger(e, fmt.Sprintf("%d %d * * *", m, h), loc)
		if err != nil {
			return nil, err
		}
		t.daily = true
		return []trigger{t}, nil
	}
	seen := map[Weekday]bool{}
	var out []trigger
	for _, d := range e.Days {
		if seen[d] {
			continue
		}
		seen[d] = true
		t, err := newTrigger(e, fmt.Sprintf("%d %d * * %d", m, h, int(d.Std())), loc)
		if err != nil {
			return nil, err
		}
		t.day = d
		out = append(out, t)
	}
	return out, nil
}

func newTrigger(e Entry, spec string, loc *time.Location) (trigger, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return trigger{}, fmt.Errorf("schedule %s: %w", e.Label(), err)
	}
	if ss, ok := s.(*cron.SpecSchedule); ok {
		ss.Location = loc
	}
	return trigger{entry: e, sched: s, spec: spec}, nil
}

// Run blocks until ctx is done. It returns nil on cancellation.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("coordinator already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if c.opt.TestMode {
		return c.runTestMode(ctx)
	}
	return c.runTimeline(ctx)
}

func (c *Coordinator) runTestMode(ctx context.Context) error {
	c.log.Warn("test mode: delivering continuously", logx.Duration("interval", c.opt.TestInterval))
	for {
		now := c.opt.Clock.Now()
		c.runDelivery(ctx, Fire{Label: "test", Day: FromStd(now.In(c.opt.Location).Weekday()), Armed: now, Planned: now})
		if err := c.opt.Clock.Sleep(ctx, c.opt.TestInterval); err != nil {
			return nil
		}
	}
}

func (c *Coordinator) runTimeline(ctx context.Context) error {
	now := c.opt.Clock.Now()
	c.mu.Lock()
	c.tl = c.tl[:0]
	for i := range c.triggers {
		c.armLocked(i, now)
	}
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if len(c.tl) == 0 {
			c.mu.Unlock()
			c.log.Warn("no upcoming triggers; coordinator idle")
			<-ctx.Done()
			return nil
		}
		next := c.tl[0]
		c.mu.Unlock()

		if wait := next.at.Sub(c.opt.Clock.Now()); wait > 0 {
			if err := c.opt.Clock.Sleep(ctx, wait); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		c.mu.Lock()
		it := heap.Pop(&c.tl).(*item)
		c.mu.Unlock()

		switch it.kind {
		case itemArm:
			c.fireTrigger(it)
		case itemDeliver:
			c.runDelivery(ctx, it.fire)
		}
	}
}

// fireTrigger schedules the jittered delivery and rearms the trigger.
func (c *Coordinator) fireTrigger(it *item) {
	t := c.triggers[it.trig]
	delay := c.opt.Jitter.Delay(t.entry.Jitter)
	day := t.day
	if t.daily {
		day = FromStd(it.at.In(c.opt.Location).Weekday())
	}
	f := Fire{
		Entry:   t.entry,
		Label:   t.entry.Label(),
		Day:     day,
		Armed:   it.at,
		Delay:   delay,
		Planned: it.at.Add(delay),
	}
	c.log.Info("trigger fired",
		logx.String("at", f.Label),
		logx.String("day", day.String()),
		logx.Duration("delay", delay),
		logx.Time("planned", f.Planned))

	c.mu.Lock()
	c.pushLocked(&item{at: f.Planned, kind: itemDeliver, trig: it.trig, fire: f})
	// Rearm from the later of the fire time and now: a trigger delayed by a long
	// delivery catches up once, not once per missed occurrence.
	from := it.at
	if now := c.opt.Clock.Now(); now.After(from) {
		from = now
	}
	c.armLocked(it.trig, from)
	c.mu.Unlock()
}

func (c *Coordinator) armLocked(i int, from time.Time) {
	t := c.triggers[i]
	next := t.sched.Next(from)
	if next.IsZero() {
		return
	}
	c.pushLocked(&item{at: next, kind: itemArm, trig: i})
	if c.opt.Observer != nil {
		c.opt.Observer.TriggerArmed(t.entry.Label(), next)
	}
}

func (c *Coordinator) pushLocked(it *item) {
	c.seq++
	it.seq = c.seq
	heap.Push(&c.tl, it)
}

// runDelivery invokes the callback; errors and panics are logged.
func (c *Coordinator) runDelivery(ctx context.Context, f Fire) {
	start := c.opt.Clock.Now()
	err := c.safeDeliver(ctx, f)
	took := c.opt.Clock.Now().Sub(start)
	if c.opt.Observer != nil {
		c.opt.Observer.DeliveryFinished(f.Label, err, took)
	}
	if err != nil {
		c.log.Error("delivery failed", logx.String("at", f.Label), logx.Duration("took", took), logx.Err(err))
		return
	}
	c.log.Debug("delivery done", logx.String("at", f.Label), logx.Duration("took", took))
}

func (c *Coordinator) safeDeliver(ctx context.Context, f Fire) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panic: %v", r)
			c.log.Error("delivery panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return c.deliver(ctx, f)
}

// Upcoming is one future trigger window.
type Upcoming struct {
	Label    string
	Earliest time.Time
	Latest   time.Time
}

// Preview lists the next n trigger windows after from, in time order.
func (c *Coordinator) Preview(from time.Time, n int) []Upcoming {
	if n <= 0 || c.opt.TestMode {
		return nil
	}
	var tl timeline
	var seq uint64
	push := func(i int, t time.Time) {
		next := c.triggers[i].sched.Next(t)
		if next.IsZero() {
			return
		}
		seq++
		heap.Push(&tl, &item{at: next, trig: i, seq: seq})
	}
	for i := range c.triggers {
		push(i, from)
	}
	out := make([]Upcoming, 0, n)
	for len(out) < n && tl.Len() > 0 {
		it := heap.Pop(&tl).(*item)
		e := c.triggers[it.trig].entry
		out = append(out, Upcoming{
			Label:    e.Label(),
			Earliest: it.at,
			Latest:   it.at.Add(time.Duration(2*max(e.Jitter, 0)) * time.Minute),
		})
		push(it.trig, it.at)
	}
	return out
}

// FormatPreview renders Preview output for logs and the CLI.
func FormatPreview(ups []Upcoming) string {
	var b strings.Builder
	for i, u := range ups {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(u.Label)
		b.WriteString(" ")
		b.WriteString(u.Earliest.Format("Mon 2006-01-02 15:04"))
		if !u.Latest.Equal(u.Earliest) {
			b.WriteString("-")
			b.WriteString(u.Latest.Format("15:04"))
		}
	}
	return b.String()
}

// Specs returns the cron spec of every armed trigger.
func (c *Coordinator) Specs() []string {
	out := make([]string, len(c.triggers))
	for i, t := range c.triggers {
		out[i] = t.spec
	}
	return out
}
