package process

import "time"

// CyclePhase names the two halves of a reflux cycle.
type CyclePhase int

const (
	Refluxing CyclePhase = iota
	Drawing
)

func (p CyclePhase) String() string {
	if p == Drawing {
		return "drawing"
	}
	return "refluxing"
}

// RefluxCycle is the observable reflux-cycler state.
type RefluxCycle struct {
	PeriodS       int
	Ratio         float64
	Phase         CyclePhase
	CycleStart    time.Time
}

// valveTarget is the pure, unit-testable reflux cycler core: during a
// period of length P, the valve is open ("drawing") for P/(1+R) seconds
// and closed ("refluxing") otherwise.
func valveTarget(now, cycleStart time.Time, period time.Duration, ratio float64) (open bool, phase CyclePhase) {
	if period <= 0 {
		return false, Refluxing
	}
	drawDuration := time.Duration(float64(period) / (1 + ratio))
	elapsed := now.Sub(cycleStart)
	if elapsed < 0 {
		elapsed = 0
	}
	within := elapsed % period
	if within < drawDuration {
		return true, Drawing
	}
	return false, Refluxing
}
