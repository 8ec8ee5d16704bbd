// Package scanloop provides the shared stop-channel loop used by the
// monitoring engine and other periodic workers.
package scanloop

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultMinInterval is the engine's idle tick between scan passes.
	DefaultMinInterval = time.Second
)

// Run executes fn immediately and then at a jittered interval until stopCh
// is closed. The interval is: minInterval + random([0, jitterRange)).
// Jitter is zero for the engine tick; background workers use it to avoid
// thundering in lockstep.
func Run(stopCh <-chan struct{}, minInterval, jitterRange time.Duration, fn func()) {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if jitterRange < 0 {
		jitterRange = 0
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C // drain initial fire

	for {
		select {
		case <-stopCh:
			return
		default:
		}
		fn()

		interval := minInterval
		if jitterRange > 0 {
			interval += time.Duration(rand.Int64N(int64(jitterRange)))
		}

		timer.Reset(interval)
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
	}
}
