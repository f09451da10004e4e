package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClockAdvance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixed(base)
	assert.Equal(t, base, c.Now())

	c.Advance(5 * time.Minute)
	assert.Equal(t, base.Add(5*time.Minute), c.Now())

	other := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c.Set(other)
	assert.Equal(t, other, c.Now())
}

func TestSystemClockMonotonicallyAdvances(t *testing.T) {
	c := System()
	first := c.Now()
	time.Sleep(time.Millisecond)
	second := c.Now()
	assert.True(t, second.After(first) || second.Equal(first))
}
