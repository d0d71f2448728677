package hostadapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockNowMsStartsNearZeroAndAdvances(t *testing.T) {
	c := NewClock()
	first := c.NowMs()
	assert.GreaterOrEqual(t, first, 0.0)

	time.Sleep(2 * time.Millisecond)
	second := c.NowMs()
	assert.Greater(t, second, first)
}

func TestClockUptimeSecondsAdvances(t *testing.T) {
	c := NewClock()
	first := c.UptimeSeconds()

	time.Sleep(2 * time.Millisecond)
	second := c.UptimeSeconds()
	assert.GreaterOrEqual(t, second, first)
}

func TestClockMonotonicCrossCheckReportsPositiveReading(t *testing.T) {
	c := NewClock()
	time.Sleep(2 * time.Millisecond)

	cross, err := c.MonotonicCrossCheck()
	if err != nil {
		t.Skipf("CLOCK_MONOTONIC unavailable on this platform: %v", err)
	}
	assert.Greater(t, cross, 0.0)
}
