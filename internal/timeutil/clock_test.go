package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	t.Parallel()

	var c Clock = RealClock{}
	before := time.Now()
	got := c.Now()
	assert.False(t, got.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

func TestMockClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now(), "zero Step must not advance")

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
	assert.Equal(t, time.Minute, c.Since(start))

	c.Set(start)
	c.Step = time.Second
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())
}
