package call

import (
	"testing"
	"time"
)

func newTestCollector(clock *fakeClock, interDigit, final time.Duration) (*DTMFCollector, *[]string) {
	r := NewTimerRegistry(clock, runInline)
	var results []string
	c := NewDTMFCollector(r,
		func() (time.Duration, time.Duration) { return interDigit, final },
		func(digits, reason string) { results = append(results, digits+"/"+reason) },
	)
	return c, &results
}

func TestDTMFFinalTimerFinalizes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, results := newTestCollector(clock, 3*time.Second, 5*time.Second)

	c.OnDigit('1')
	c.OnDigit('2')
	c.OnDigit('3')

	clock.Advance(5 * time.Second)
	if len(*results) != 1 || (*results)[0] != "123/dtmf_final_timeout" {
		t.Errorf("results = %v, want [123/dtmf_final_timeout]", *results)
	}
}

func TestDTMFDigitRechainsTimers(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, results := newTestCollector(clock, 3*time.Second, 5*time.Second)

	c.OnDigit('1')
	clock.Advance(4 * time.Second) // inter-digit fires (no-op), final still pending
	c.OnDigit('2')
	clock.Advance(4 * time.Second)
	if len(*results) != 0 {
		t.Fatalf("finalized early: %v", *results)
	}
	clock.Advance(time.Second)
	if len(*results) != 1 || (*results)[0] != "12/dtmf_final_timeout" {
		t.Errorf("results = %v, want [12/dtmf_final_timeout]", *results)
	}
}

func TestDTMFInterDigitExpiryAloneDoesNotFinalize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, results := newTestCollector(clock, time.Second, 10*time.Second)

	c.OnDigit('7')
	clock.Advance(2 * time.Second)
	if len(*results) != 0 {
		t.Errorf("inter-digit expiry finalized: %v", *results)
	}
	if got := c.Digits(); got != "7" {
		t.Errorf("Digits() = %q, want %q", got, "7")
	}
}

func TestDTMFFinalizeIsOnceOnly(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, results := newTestCollector(clock, time.Second, 2*time.Second)

	c.OnDigit('9')
	c.Finalize("cleanup")
	c.Finalize("cleanup")
	clock.Advance(5 * time.Second)

	if len(*results) != 1 || (*results)[0] != "9/cleanup" {
		t.Errorf("results = %v, want exactly [9/cleanup]", *results)
	}
	// Digits after finalization are ignored.
	c.OnDigit('0')
	if got := c.Digits(); got != "9" {
		t.Errorf("Digits() = %q after finalize, want %q", got, "9")
	}
}
