package schedule

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayMinutes_Bounds(t *testing.T) {
	t.Parallel()
	p := NewJitterPolicy(rand.New(rand.NewSource(1)))

	for _, j := range []int{0, -3} {
		for i := 0; i < 100; i++ {
			assert.Zero(t, p.DelayMinutes(j))
		}
	}

	const (
		j = 10
		n = 20000
	)
	sum := 0
	hits := make([]int, 2*j+1)
	for i := 0; i < n; i++ {
		d := p.DelayMinutes(j)
		require.GreaterOrEqual(t, d, 0)
		require.LessOrEqual(t, d, 2*j)
		hits[d]++
		sum += d
	}
	mean := float64(sum) / n
	assert.InDelta(t, float64(j), mean, 0.3)
	for d, c := range hits {
		assert.Positive(t, c, "delay %d never drawn", d)
	}
}

func TestWindowOf(t *testing.T) {
	t.Parallel()
	cases := []struct {
		e    Entry
		want Window
	}{
		{Entry{Hour: 14, Minute: 0, Jitter: 10}, Window{Earliest: 13*60 + 50, Latest: 14*60 + 10}},
		{Entry{Hour: 9, Minute: 30}, Window{Earliest: 9*60 + 30, Latest: 9*60 + 30}},
		{Entry{Hour: 0, Minute: 5, Jitter: 10}, Window{Earliest: 0, Latest: 20}},
		{Entry{Hour: 23, Minute: 55, Jitter: 10}, Window{Earliest: 23*60 + 45, Latest: 24*60 + 5}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WindowOf(c.e), c.e.Label())
	}
	p := NewJitterPolicy(nil)
	assert.Equal(t, cases[0].want, p.Window(cases[0].e))
}

func TestParseEntries(t *testing.T) {
	t.Parallel()
	es, err := ParseEntries([]string{"09:00", " 18:45"}, 5, []Weekday{Monday})
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, "18:45", es[1].Label())
	assert.Equal(t, 18*60+45, es[1].Nominal())
	assert.Equal(t, 5, es[1].Jitter)

	_, err = ParseEntries([]string{"25:00"}, 0, nil)
	assert.Error(t, err)
	_, err = ParseEntries([]string{"10:00"}, -1, nil)
	assert.Error(t, err)
}
