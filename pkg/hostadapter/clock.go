// Package hostadapter implements the host interface the kernel core
// consumes (spec.md §6 "Host interface"): monotonic time, a real console,
// snapshot persistence, and boot configuration. None of it is reachable
// from inside the sandboxed process model; it is the glue a binary like
// cmd/axebergcored wires in to drive pkg/kernel from outside.
package hostadapter

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock supplies monotonic_now() in milliseconds, per spec.md's host
// interface contract. It is backed by time.Now()'s monotonic reading, with
// an x/sys/unix clock_gettime(CLOCK_MONOTONIC) cross-check available for
// callers that want to validate the two clocks haven't drifted apart (they
// share a source on Linux, but diverge trivially on other GOOS values).
type Clock struct {
	boot time.Time
}

// NewClock creates a Clock whose epoch is the moment of construction.
func NewClock() *Clock {
	return &Clock{boot: time.Now()}
}

// NowMs implements the kernel's monotonic_now(): milliseconds since the
// Clock was constructed.
func (c *Clock) NowMs() float64 {
	return float64(time.Since(c.boot)) / float64(time.Millisecond)
}

// UptimeSeconds implements syntheticfs.Clock, backing /proc/uptime.
func (c *Clock) UptimeSeconds() float64 {
	return time.Since(c.boot).Seconds()
}

// MonotonicCrossCheck reads the host's CLOCK_MONOTONIC directly via
// clock_gettime and returns it in seconds. The reading counts from the
// host clock's own origin (typically host boot), not from this Clock's
// construction, so it is not directly comparable with NowMs/UptimeSeconds.
func (c *Clock) MonotonicCrossCheck() (float64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, err
	}
	return float64(ts.Sec) + float64(ts.Nsec)/1e9, nil
}
