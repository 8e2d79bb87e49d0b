package schedule

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
	f.mu.Unlock()
	return ctx.Err()
}

var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // a Monday

func runUntil(t *testing.T, c *Coordinator, ctx context.Context) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("coordinator did not stop")
	}
}

func TestCoordinator_JitterWindow1000Firings(t *testing.T) {
	clock := &fakeClock{now: monday}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []time.Time
	deliver := func(ctx context.Context, f Fire) error {
		got = append(got, clock.Now())
		if len(got) == 1000 {
			cancel()
		}
		return nil
	}
	c, err := New([]Entry{{Hour: 14, Minute: 0, Jitter: 10}}, deliver, Options{
		Location: time.UTC,
		Clock:    clock,
		Jitter:   NewJitterPolicy(rand.New(rand.NewSource(9))),
	})
	require.NoError(t, err)
	runUntil(t, c, ctx)

	require.Len(t, got, 1000)
	lo, hi := 13*60+50, 14*60+10
	buckets := map[int]int{}
	sum := 0
	for i, at := range got {
		m := at.Hour()*60 + at.Minute()
		require.GreaterOrEqual(t, m, lo, "firing %d at %s", i, at)
		require.LessOrEqual(t, m, hi, "firing %d at %s", i, at)
		buckets[m]++
		sum += m
		if i > 0 {
			assert.Equal(t, 24*time.Hour, at.Truncate(24*time.Hour).Sub(got[i-1].Truncate(24*time.Hour)), "one delivery per day")
		}
	}
	assert.Len(t, buckets, 21, "every minute of the window is reachable")
	assert.InDelta(t, 14*60, float64(sum)/1000, 1.0)
}

func TestCoordinator_WeekdayRestricted(t *testing.T) {
	clock := &fakeClock{now: monday}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var days []time.Weekday
	deliver := func(ctx context.Context, f Fire) error {
		days = append(days, clock.Now().Weekday())
		assert.Equal(t, f.Day.Std(), clock.Now().Weekday())
		if len(days) == 6 {
			cancel()
		}
		return nil
	}
	c, err := New([]Entry{{Hour: 9, Minute: 0, Days: []Weekday{Wednesday, Monday}}}, deliver, Options{Location: time.UTC, Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, []string{"0 9 * * 3", "0 9 * * 1"}, c.Specs())
	runUntil(t, c, ctx)

	assert.Equal(t, []time.Weekday{
		time.Monday, time.Wednesday, time.Monday, time.Wednesday, time.Monday, time.Wednesday,
	}, days)
}

func TestCoordinator_FailuresDoNotStopTimeline(t *testing.T) {
	clock := &fakeClock{now: monday}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	deliver := func(ctx context.Context, f Fire) error {
		calls++
		switch calls {
		case 1:
			return errors.New("send failed")
		case 2:
			panic("boom")
		case 4:
			cancel()
		}
		return nil
	}
	obs := &recObserver{}
	c, err := New([]Entry{{Hour: 8, Minute: 0}}, deliver, Options{Location: time.UTC, Clock: clock, Observer: obs})
	require.NoError(t, err)
	runUntil(t, c, ctx)

	assert.Equal(t, 4, calls)
	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.errs, 4)
	assert.Error(t, obs.errs[0])
	assert.ErrorContains(t, obs.errs[1], "panic")
	assert.NoError(t, obs.errs[2])
}

func TestCoordinator_SerializesAndCatchesUp(t *testing.T) {
	clock := &fakeClock{now: monday}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type rec struct {
		label string
		at    time.Time
	}
	var recs []rec
	deliver := func(ctx context.Context, f Fire) error {
		recs = append(recs, rec{f.Label, clock.Now()})
		if f.Label == "09:00" {
			// A slow delivery that runs past the next trigger.
			_ = clock.Sleep(ctx, 20*time.Minute)
		}
		if len(recs) == 4 {
			cancel()
		}
		return nil
	}
	c, err := New([]Entry{{Hour: 9, Minute: 0}, {Hour: 9, Minute: 5}}, deliver, Options{Location: time.UTC, Clock: clock})
	require.NoError(t, err)
	runUntil(t, c, ctx)

	require.Len(t, recs, 4)
	assert.Equal(t, "09:00", recs[0].label)
	assert.Equal(t, "09:05", recs[1].label)
	assert.Equal(t, monday.Add(9*time.Hour+20*time.Minute), recs[1].at, "late trigger fires right after the slow one")
	assert.Equal(t, "09:00", recs[2].label)
	assert.Equal(t, "09:05", recs[3].label)
	assert.Equal(t, monday.Add(33*time.Hour+20*time.Minute), recs[3].at.Add(0), "catch-up happens once per day")
	for i := 1; i < len(recs); i++ {
		assert.False(t, recs[i].at.Before(recs[i-1].at))
	}
}

func TestCoordinator_TestMode(t *testing.T) {
	clock := &fakeClock{now: monday}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var at []time.Time
	deliver := func(ctx context.Context, f Fire) error {
		assert.Equal(t, "test", f.Label)
		at = append(at, clock.Now())
		if len(at) == 3 {
			cancel()
		}
		return nil
	}
	c, err := New(nil, deliver, Options{Clock: clock, TestMode: true, TestInterval: 10 * time.Second})
	require.NoError(t, err)
	runUntil(t, c, ctx)

	assert.Equal(t, []time.Time{monday, monday.Add(10 * time.Second), monday.Add(20 * time.Second)}, at)
	assert.Empty(t, c.Preview(monday, 3))
}

func TestCoordinator_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := New([]Entry{{Hour: 3, Minute: 0}}, func(context.Context, Fire) error { return nil }, Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCoordinator_Preview(t *testing.T) {
	c, err := New([]Entry{
		{Hour: 14, Minute: 0, Jitter: 10},
		{Hour: 8, Minute: 30, Days: []Weekday{Tuesday}},
	}, func(context.Context, Fire) error { return nil }, Options{Location: time.UTC})
	require.NoError(t, err)

	ups := c.Preview(monday.Add(12*time.Hour), 4)
	require.Len(t, ups, 4)
	assert.Equal(t, "14:00", ups[0].Label)
	assert.Equal(t, monday.Add(13*time.Hour+50*time.Minute), ups[0].Earliest)
	assert.Equal(t, monday.Add(14*time.Hour+10*time.Minute), ups[0].Latest)
	assert.Equal(t, "08:30", ups[1].Label)
	assert.Equal(t, monday.Add(24*time.Hour+8*time.Hour+30*time.Minute), ups[1].Earliest)
	assert.Equal(t, "14:00", ups[2].Label)
	assert.Equal(t, "14:00", ups[3].Label)

	assert.Contains(t, FormatPreview(ups[:1]), "14:00 Mon 2026-01-05 13:50-14:10")
}

func TestNew_Validation(t *testing.T) {
	_, err := New([]Entry{{Hour: 1}}, nil, Options{})
	assert.Error(t, err)
	_, err = New(nil, func(context.Context, Fire) error { return nil }, Options{})
	assert.Error(t, err)
}

type recObserver struct {
	mu    sync.Mutex
	armed int
	errs  []error
}

func (r *recObserver) TriggerArmed(string, time.Time) {
	r.mu.Lock()
	r.armed++
	r.mu.Unlock()
}

func (r *recObserver) DeliveryFinished(_ string, err error, _ time.Duration) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}
