package call

import "time"

// DTMFCollector accumulates keypad digits and runs the two chained timers
// that decide when the sequence is complete. Every digit rechains both
// timers; only the final timer's expiry finalizes the sequence — the
// inter-digit timer expiring on its own is a no-op.
//
// All methods run on the call mailbox.
type DTMFCollector struct {
	timers *TimerRegistry

	// durations reads the current inter-digit and final windows. Read at arm
	// time, so a mid-call config patch applies to future arms only.
	durations func() (interDigit, final time.Duration)

	// onFinal receives the collected digits exactly once.
	onFinal func(digits, reason string)

	digits    []rune
	finalized bool
}

// NewDTMFCollector wires a collector to the call's timer registry.
func NewDTMFCollector(timers *TimerRegistry, durations func() (time.Duration, time.Duration), onFinal func(digits, reason string)) *DTMFCollector {
	return &DTMFCollector{timers: timers, durations: durations, onFinal: onFinal}
}

// OnDigit appends d to the buffer and rechains both timers.
func (c *DTMFCollector) OnDigit(d rune) {
	if c.finalized {
		return
	}
	c.timers.Cancel(TimerDTMFInterDigit)
	c.timers.Cancel(TimerDTMFFinal)

	c.digits = append(c.digits, d)

	interDigit, final := c.durations()
	// The inter-digit expiry carries no action of its own; the final timer
	// governs. It is still armed through the registry so cleanup is total.
	c.timers.Arm(TimerDTMFInterDigit, interDigit, func() {})
	c.timers.Arm(TimerDTMFFinal, final, func() {
		c.Finalize("dtmf_final_timeout")
	})
}

// Finalize publishes the accumulated digits with the given reason. Safe to
// call more than once; only the first call publishes.
func (c *DTMFCollector) Finalize(reason string) {
	if c.finalized {
		return
	}
	c.finalized = true
	c.timers.Cancel(TimerDTMFInterDigit)
	c.timers.Cancel(TimerDTMFFinal)
	c.onFinal(c.Digits(), reason)
}

// Digits returns the digits collected so far, in arrival order.
func (c *DTMFCollector) Digits() string { return string(c.digits) }
