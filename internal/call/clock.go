// Package call implements the per-call recognition orchestrator: a state
// machine that coordinates prompt playback, an external VAD sensor, a duplex
// streaming recognition session, DTMF collection, a battery of interlocking
// timers and a batch fallback path, converging every asynchronous event
// source into one decision per call.
//
// All call state is owned by a single goroutine draining the call's mailbox;
// external events enter as enqueued messages and are handled in arrival
// order.
package call

import "time"

// Clock abstracts wall-clock time so orchestrator and timer tests can run on
// a fake clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a single armed timer. Stop reports whether the call prevented the
// callback from firing.
type Timer interface {
	Stop() bool
}

// NewClock returns a Clock backed by the runtime timers.
func NewClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }
