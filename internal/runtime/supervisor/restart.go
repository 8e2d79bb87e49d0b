package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	logx "postar/pkg/logx"
)

// healthyRun is how long a run must last for the backoff to start over.
const healthyRun = 30 * time.Second

type restartPolicy struct {
	minWait, maxWait time.Duration
	maxRestarts      int // 0 means unlimited
	restartOnNil     bool
}

type RestartOption func(*restartPolicy)

// WithRestartBackoff bounds the exponential wait between runs.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.minWait = min
		}
		if max > 0 {
			p.maxWait = max
		}
	}
}

// WithMaxRestarts gives up after n restarts and records a failure.
func WithMaxRestarts(n int) RestartOption {
	return func(p *restartPolicy) { p.maxRestarts = max(n, 0) }
}

// WithStopOnCleanExit controls whether a nil return ends the loop (the default)
// or counts as a crash.
func WithStopOnCleanExit(stop bool) RestartOption {
	return func(p *restartPolicy) { p.restartOnNil = !stop }
}

// GoRestart runs fn again after each failure or panic, waiting with jittered
// exponential backoff, until the context is canceled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{minWait: 250 * time.Millisecond, maxWait: 30 * time.Second}
	for _, opt := range opts {
		opt(&p)
	}
	p.maxWait = max(p.maxWait, p.minWait)

	s.Go(name, func(ctx context.Context) error {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		wait := p.minWait
		for restarts := 0; ; restarts++ {
			began := time.Now()
			err := runSafe(ctx, fn)
			switch {
			case ctx.Err() != nil, errors.Is(err, context.Canceled):
				return nil
			case err == nil && !p.restartOnNil:
				return nil
			case err == nil:
				err = errors.New("returned without error")
			}

			if p.maxRestarts > 0 && restarts >= p.maxRestarts {
				return fmt.Errorf("gave up after %d restarts: %w", restarts, err)
			}
			if time.Since(began) >= healthyRun {
				wait = p.minWait
			}
			sleep := wait + time.Duration(rng.Int63n(int64(wait/5)+1))
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", sleep), logx.Err(err))

			t := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			wait = min(wait*2, p.maxWait)
		}
	})
}
