package selector

import (
	"context"
	"sync"

	"postar/internal/storage"
)

// Store is the subset of storage.Store the selectors need.
type Store interface {
	Load(ctx context.Context) storage.State
	Save(ctx context.Context, st storage.State) error
}

// ledger is the in-memory copy of the shared state record. Every selector writes its
// own key and then persists the whole record.
//
// Keys this ledger never wrote are refreshed from the store before each save, so
// ledgers that share a store only overwrite their own keys.
type ledger struct {
	mu    sync.Mutex
	store Store
	state storage.State
	owned map[string]struct{}
}

func loadLedger(ctx context.Context, store Store) *ledger {
	st := store.Load(ctx)
	if st == nil {
		st = storage.State{}
	}
	return &ledger{store: store, state: st, owned: map[string]struct{}{}}
}

func (l *ledger) get(key string) ([]string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.state[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), v...), true
}

// put records remaining for key and persists the whole record.
// The in-memory copy is updated even when Save fails.
func (l *ledger) put(ctx context.Context, key string, remaining []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state[key] = append(make([]string, 0, len(remaining)), remaining...)
	l.owned[key] = struct{}{}

	merged := l.store.Load(ctx)
	if merged == nil {
		merged = storage.State{}
	}
	for k := range l.owned {
		merged[k] = l.state[k]
	}
	l.state = merged
	return l.store.Save(ctx, merged.Clone())
}
