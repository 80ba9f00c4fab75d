package process

import "time"

// ValveTargetForTest exposes the package-private reflux duty-cycle
// helper to process_test without widening the public API.
func ValveTargetForTest(now, cycleStart time.Time, period time.Duration, ratio float64) (bool, CyclePhase) {
	return valveTarget(now, cycleStart, period, ratio)
}
