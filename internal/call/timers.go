package call

import (
	"sync"
	"time"
)

// TimerName identifies one of the call's timers. The set is closed: every
// timeout in the system flows through the registry under one of these names,
// so cancellation on cleanup is total.
type TimerName string

const (
	TimerBargeIn               TimerName = "bargeIn"
	TimerNoSpeechBegin         TimerName = "noSpeechBegin"
	TimerInitialStreamIdle     TimerName = "initialStreamIdle"
	TimerSpeechEndSilence      TimerName = "speechEndSilence"
	TimerMaxRecognition        TimerName = "maxRecognition"
	TimerVADInitialSilence     TimerName = "vadInitialSilence"
	TimerVADActivationDelay    TimerName = "vadActivationDelay"
	TimerVADMaxWaitAfterPrompt TimerName = "vadMaxWaitAfterPrompt"
	TimerDTMFInterDigit        TimerName = "dtmfInterDigit"
	TimerDTMFFinal             TimerName = "dtmfFinal"
)

// TimerRegistry arms, replaces and cancels the named timers of one call.
//
// Fire callbacks never run on the scheduler goroutine: when a timer elapses,
// the registry enqueues the callback through exec (the call mailbox). A
// Cancel processed before the enqueued fire message dequeues suppresses it —
// each arm carries a generation number and the fire message checks it is
// still current before running. Together this gives the contract: if Cancel
// returns before onFire would have run, onFire does not run; otherwise it
// runs exactly once.
type TimerRegistry struct {
	clock Clock
	exec  func(func()) bool

	mu    sync.Mutex
	armed map[TimerName]*armedTimer
	gen   uint64
}

type armedTimer struct {
	gen   uint64
	timer Timer
}

// NewTimerRegistry creates a registry that schedules on clock and runs fire
// callbacks through exec.
func NewTimerRegistry(clock Clock, exec func(func()) bool) *TimerRegistry {
	return &TimerRegistry{
		clock: clock,
		exec:  exec,
		armed: make(map[TimerName]*armedTimer),
	}
}

// Arm schedules onFire to run after d, replacing any prior instance of the
// same name. A non-positive d fires on the next mailbox tick.
func (r *TimerRegistry) Arm(name TimerName, d time.Duration, onFire func()) {
	r.mu.Lock()
	if prior, ok := r.armed[name]; ok {
		prior.timer.Stop()
	}
	r.gen++
	gen := r.gen
	at := &armedTimer{gen: gen}
	r.armed[name] = at
	at.timer = r.clock.AfterFunc(d, func() {
		r.exec(func() { r.fire(name, gen, onFire) })
	})
	r.mu.Unlock()
}

// fire runs on the call mailbox. It only invokes onFire if the arm that
// scheduled it is still the current one.
func (r *TimerRegistry) fire(name TimerName, gen uint64, onFire func()) {
	r.mu.Lock()
	at, ok := r.armed[name]
	if !ok || at.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.armed, name)
	r.mu.Unlock()

	onFire()
}

// Cancel disarms name. Idempotent; cancelling an unarmed timer is a no-op.
func (r *TimerRegistry) Cancel(name TimerName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.armed[name]; ok {
		at.timer.Stop()
		delete(r.armed, name)
	}
}

// CancelAll disarms every timer.
func (r *TimerRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, at := range r.armed {
		at.timer.Stop()
		delete(r.armed, name)
	}
}

// IsArmed reports whether name currently has an armed instance.
func (r *TimerRegistry) IsArmed(name TimerName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.armed[name]
	return ok
}

// ArmedCount returns the number of armed timers.
func (r *TimerRegistry) ArmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}
