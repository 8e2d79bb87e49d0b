package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	logx "postar/pkg/logx"
)

// PostsKey is the pool key of the post pool.
const PostsKey = "posts"

const mediaPrefix = "media:"

// MediaKey returns the pool key for the media category of a post type.
func MediaKey(postType string) string { return mediaPrefix + postType }

// IsMediaKey reports whether key names a media pool.
func IsMediaKey(key string) bool { return strings.HasPrefix(key, mediaPrefix) }

// Registry lazily creates one Selector per pool key. All selectors share one state
// record, so a Save from any of them carries the progress of the others.
type Registry struct {
	mu    sync.Mutex
	pools map[string][]string
	sels  map[string]*Selector

	led  *ledger
	rng  *lockedRand
	opts options
}

// NewRegistry loads the stored state once. pools maps pool key to its items and is
// not retained.
func NewRegistry(ctx context.Context, store Store, pools map[string][]string, opts ...Option) *Registry {
	o := buildOptions(opts)
	cp := make(map[string][]string, len(pools))
	for k, v := range pools {
		cp[k] = append([]string(nil), v...)
	}
	return &Registry{
		pools: cp,
		sels:  map[string]*Selector{},
		led:   loadLedger(ctx, store),
		rng:   &lockedRand{r: o.rng},
		opts:  o,
	}
}

// Keys returns the known pool keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.pools))
	for k := range r.pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key has a pool.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pools[key]
	return ok
}

// Selector returns the selector for key, creating it on first use.
//
// A persist failure during creation is returned alongside a usable selector.
func (r *Registry) Selector(ctx context.Context, key string) (*Selector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sels[key]; ok {
		return s, nil
	}
	pool, ok := r.pools[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, key)
	}
	s, err := newSelector(ctx, pool, key, r.led, r.rng, r.opts)
	r.sels[key] = s
	return s, err
}

// Draw returns the next item of the pool under key.
func (r *Registry) Draw(ctx context.Context, key string) (string, error) {
	s, err := r.Selector(ctx, key)
	if s == nil {
		return "", err
	}
	if err != nil {
		r.opts.log.Warn("state persist failed on selector init", logx.String("pool", key), logx.Err(err))
	}
	item, err := s.Next(ctx)
	if err != nil && item == "" {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return item, err
}

// Reset starts a fresh cycle for each key; no keys means every known pool.
func (r *Registry) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = r.Keys()
	}
	for _, k := range keys {
		s, err := r.Selector(ctx, k)
		if s == nil {
			return err
		}
		if err := s.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", k, err)
		}
	}
	return nil
}

// PoolStatus describes one pool for operators.
type PoolStatus struct {
	Key       string `json:"key"`
	Size      int    `json:"size"`
	Remaining int    `json:"remaining"`
}

// Status lists every known pool with its remaining count. Pools without a selector are
// reported from the stored state and are not written: a pool with no stored cycle
// counts as a full one.
func (r *Registry) Status(_ context.Context) []PoolStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.pools))
	for k := range r.pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PoolStatus, 0, len(keys))
	for _, k := range keys {
		pool := r.pools[k]
		st := PoolStatus{Key: k, Size: len(pool)}
		if s, ok := r.sels[k]; ok {
			st.Remaining = len(s.Remaining())
		} else if stored, ok := r.led.get(k); ok {
			kept, _ := reconcile(stored, pool)
			st.Remaining = len(kept)
		} else {
			st.Remaining = len(pool)
		}
		out = append(out, st)
	}
	return out
}
