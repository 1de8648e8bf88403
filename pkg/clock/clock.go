// Package clock abstracts wall-clock reads and scheduled callbacks so
// that timing code can be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(start) and call Advance to
// move time forward; AfterFunc callbacks whose deadline is reached fire
// synchronously inside Advance.
package clock

import "time"

// Clock is the time source injected into the tracker.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// AfterFunc calls f once after d has elapsed. The returned Timer
	// cancels the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. It reports whether the call was
// prevented; false means it already fired or was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stopFunc: t.Stop}
}
