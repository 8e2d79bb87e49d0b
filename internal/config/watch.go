package config

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "postar/pkg/logx"
)

const (
	reloadDebounce = 250 * time.Millisecond
	watchRetryMin  = 250 * time.Millisecond
	watchRetryMax  = 5 * time.Second
)

// Watch reloads the config whenever its file changes, until ctx is done.
//
// The parent directory is watched rather than the file, so editors that save by
// rename keep working. A broken watcher is rebuilt with jittered backoff.
func (m *Manager) Watch(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	retry := watchRetryMin
	for {
		healthy, err := m.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if healthy {
			retry = watchRetryMin
		}
		wait := retry + time.Duration(rng.Int63n(int64(retry/2)+1))
		m.log.Warn("config watcher stopped; restarting", logx.Duration("in", wait), logx.Err(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		retry = min(retry*2, watchRetryMax)
	}
}

// watchOnce runs one watcher until it breaks. healthy reports whether the
// watcher got as far as receiving events.
func (m *Manager) watchOnce(ctx context.Context) (healthy bool, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer w.Close()

	dir, name := filepath.Dir(m.path), filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return false, err
	}
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", name))

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case <-debounce.C:
			m.reload()
		case ev, ok := <-w.Events:
			if !ok {
				return true, errors.New("event channel closed")
			}
			if filepath.Base(ev.Name) == name &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce.Reset(reloadDebounce)
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return true, errors.New("error channel closed")
			}
			if errors.Is(werr, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watcher overflow; forcing reload")
				debounce.Reset(reloadDebounce)
				continue
			}
			m.log.Warn("config watcher error", logx.Err(werr))
		}
	}
}
