package schedule

import (
	"math/rand"
	"sync"
	"time"
)

// JitterPolicy draws the random delivery delay inside a trigger window.
type JitterPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitterPolicy uses rng, or a time-seeded source when rng is nil.
func NewJitterPolicy(rng *rand.Rand) *JitterPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &JitterPolicy{rng: rng}
}

// DelayMinutes is uniform over [0, 2*jitter]. A jitter of zero or less yields 0.
func (p *JitterPolicy) DelayMinutes(jitter int) int {
	if jitter <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(2*jitter + 1)
}

// Delay is DelayMinutes as a duration.
func (p *JitterPolicy) Delay(jitter int) time.Duration {
	return time.Duration(p.DelayMinutes(jitter)) * time.Minute
}

// Window is a trigger window in minutes after midnight. Latest may exceed one day
// when the window crosses midnight.
type Window struct {
	Earliest int
	Latest   int
}

// Window returns the realized delivery window of e.
func (p *JitterPolicy) Window(e Entry) Window { return WindowOf(e) }

// WindowOf returns [max(0, nominal-jitter), earliest+2*jitter].
func WindowOf(e Entry) Window {
	j := max(e.Jitter, 0)
	earliest := max(e.Nominal()-j, 0)
	return Window{Earliest: earliest, Latest: earliest + 2*j}
}
