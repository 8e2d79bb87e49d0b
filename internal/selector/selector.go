package selector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	logx "postar/pkg/logx"
)

// Observer receives selector events. Implementations must be cheap and non-blocking.
type Observer interface {
	Drawn(key string, remaining int)
	Reshuffled(key string, size int)
}

type options struct {
	rng *rand.Rand
	log logx.Logger
	obs Observer
}

type Option func(*options)

// WithRand sets the shuffle source. Tests pass a seeded source.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rng = r } }

func WithLogger(l logx.Logger) Option { return func(o *options) { o.log = l } }

func WithObserver(obs Observer) Option { return func(o *options) { o.obs = obs } }

func buildOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	return o
}

// Selector hands out the items of one pool in shuffled cycles.
type Selector struct {
	key  string
	pool []string

	mu        sync.Mutex
	remaining []string

	led *ledger
	rng *lockedRand
	log logx.Logger
	obs Observer
}

// New builds a selector for pool under key, resuming any cycle stored in store.
//
// Stored progress is reconciled with pool: items that are no longer in the pool are
// dropped. Items added to the pool join at the next reshuffle.
//
// A non-nil error wraps storage.ErrStatePersist; the returned selector is still usable.
func New(ctx context.Context, pool []string, key string, store Store, opts ...Option) (*Selector, error) {
	o := buildOptions(opts)
	return newSelector(ctx, pool, key, loadLedger(ctx, store), &lockedRand{r: o.rng}, o)
}

func newSelector(ctx context.Context, pool []string, key string, led *ledger, rng *lockedRand, o options) (*Selector, error) {
	s := &Selector{
		key:  key,
		pool: append([]string(nil), pool...),
		led:  led,
		rng:  rng,
		log:  o.log.With(logx.String("pool", key)),
		obs:  o.obs,
	}

	stored, ok := led.get(key)
	if !ok {
		if len(s.pool) == 0 {
			return s, nil
		}
		s.remaining = s.shuffled()
		s.log.Debug("cycle started", logx.Int("size", len(s.remaining)))
		return s, s.persist(ctx)
	}

	kept, dropped := reconcile(stored, s.pool)
	s.remaining = kept
	if len(dropped) > 0 {
		s.log.Warn("stored items no longer in pool; dropped",
			logx.Int("dropped", len(dropped)), logx.Strings("items", preview(dropped, 5)))
		return s, s.persist(ctx)
	}
	return s, nil
}

// Key returns the pool key.
func (s *Selector) Key() string { return s.key }

// Len returns the pool size.
func (s *Selector) Len() int { return len(s.pool) }

// Next removes and returns one item of the current cycle, starting a new cycle first
// when the current one is exhausted.
//
// When the item was drawn but could not be persisted, both the item and an error
// wrapping storage.ErrStatePersist are returned.
func (s *Selector) Next(ctx context.Context) (string, error) {
	if len(s.pool) == 0 {
		return "", ErrEmptyPool
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.remaining) == 0 {
		s.remaining = s.shuffled()
		s.log.Debug("cycle exhausted; reshuffled", logx.Int("size", len(s.remaining)))
		if s.obs != nil {
			s.obs.Reshuffled(s.key, len(s.remaining))
		}
	}
	last := len(s.remaining) - 1
	item := s.remaining[last]
	s.remaining = s.remaining[:last]

	if s.obs != nil {
		s.obs.Drawn(s.key, len(s.remaining))
	}
	return item, s.persist(ctx)
}

// Reset discards the current cycle and starts a fresh one.
func (s *Selector) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = s.shuffled()
	if s.obs != nil {
		s.obs.Reshuffled(s.key, len(s.remaining))
	}
	s.log.Info("cycle reset", logx.Int("size", len(s.remaining)))
	return s.persist(ctx)
}

// Remaining returns a copy of the items left in the current cycle.
func (s *Selector) Remaining() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.remaining...)
}

func (s *Selector) shuffled() []string {
	out := append([]string(nil), s.pool...)
	s.rng.shuffle(out)
	return out
}

func (s *Selector) persist(ctx context.Context) error {
	return s.led.put(ctx, s.key, s.remaining)
}

// reconcile keeps the stored items that still exist in pool, in stored order. An item
// is kept at most as many times as it occurs in pool.
func reconcile(stored, pool []string) (kept, dropped []string) {
	avail := make(map[string]int, len(pool))
	for _, it := range pool {
		avail[it]++
	}
	kept = make([]string, 0, len(stored))
	for _, it := range stored {
		if avail[it] > 0 {
			avail[it]--
			kept = append(kept, it)
			continue
		}
		dropped = append(dropped, it)
	}
	return kept, dropped
}

func preview(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) shuffle(items []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}
