// Package actuator implements the actuator façade: the sole writer of
// the heater, pump and valve outputs.
package actuator

import (
	"go.uber.org/zap"

	"github.com/stillwright/srs/hal"
)

// State is the latched, observable actuator state.
type State struct {
	HeaterPercent    float64
	PumpFlowMlPerMin float64
	ValveOpen        bool
}

// HeaterWatts derives commanded watts from percent and the configured
// maximum.
func (s State) HeaterWatts(maxWatts float64) float64 {
	return s.HeaterPercent * maxWatts / 100
}

// Facade owns the current commanded actuator state and is the only
// component that writes to the physical heater/pump/valve.
type Facade struct {
	log    *zap.Logger
	heater hal.HeaterDriver
	pump   hal.PumpDriver
	valve  hal.ValveDriver

	maxHeaterWatts float64
	state          State
	latched        bool
	latchReason    string
}

// NewFacade wires the façade to its driver collaborators.
func NewFacade(log *zap.Logger, heater hal.HeaterDriver, pump hal.PumpDriver, valve hal.ValveDriver, maxHeaterWatts float64) *Facade {
	return &Facade{
		log:            log.Named("actuator"),
		heater:         heater,
		pump:           pump,
		valve:          valve,
		maxHeaterWatts: maxHeaterWatts,
	}
}

// SetMaxHeaterWatts updates the conversion constant used by
// SetHeaterWatts and HeaterWatts (settings can change it at runtime).
func (f *Facade) SetMaxHeaterWatts(watts float64) {
	f.maxHeaterWatts = watts
}

// Latched reports whether the supervisor's emergency latch is set; while
// true, positive commands from an engine are rejected.
func (f *Facade) Latched() bool {
	return f.latched
}

// State returns the currently latched (commanded) actuator state.
func (f *Facade) State() State {
	return f.state
}

// SetHeaterPercent commands heater power as a percentage in [0,100].
// No-op while latched.
func (f *Facade) SetHeaterPercent(percent float64) error {
	if f.latched {
		return nil
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	f.state.HeaterPercent = percent
	return f.heater.SetPercent(percent)
}

// SetHeaterWatts commands heater power in watts, converted via the
// configured maximum.
func (f *Facade) SetHeaterWatts(watts float64) error {
	if f.maxHeaterWatts <= 0 {
		return f.SetHeaterPercent(0)
	}
	return f.SetHeaterPercent(watts * 100 / f.maxHeaterWatts)
}

// SetPumpFlow commands the metering pump flow rate in ml/min. No-op
// while latched.
func (f *Facade) SetPumpFlow(mlPerMin float64) error {
	if f.latched {
		return nil
	}
	if mlPerMin < 0 {
		mlPerMin = 0
	}
	f.state.PumpFlowMlPerMin = mlPerMin
	return f.pump.SetFlow(mlPerMin)
}

// PumpStop stops the pump unconditionally from the engine's point of
// view (it still respects the latch, since it is a "positive command"
// shortcut, but it always commands zero so the latch check is moot in
// practice).
func (f *Facade) PumpStop() error {
	return f.SetPumpFlow(0)
}

// ValveOpenCmd opens the reflux valve. No-op while latched.
func (f *Facade) ValveOpenCmd() error {
	if f.latched {
		return nil
	}
	f.state.ValveOpen = true
	return f.valve.SetOpen(true)
}

// ValveClose closes the reflux valve.
func (f *Facade) ValveClose() error {
	if f.latched {
		return nil
	}
	f.state.ValveOpen = false
	return f.valve.SetOpen(false)
}

// IsPumpRunning reports whether the pump is currently commanded on.
func (f *Facade) IsPumpRunning() bool {
	return f.state.PumpFlowMlPerMin > 0
}

// IsValveOpen reports the latched valve state.
func (f *Facade) IsValveOpen() bool {
	return f.state.ValveOpen
}

// EmergencyAllOff unconditionally drives (0, stopped, closed), sets the
// latch, and logs the reason. No subsequent positive command from an
// engine takes effect until Reset clears the latch.
func (f *Facade) EmergencyAllOff(reason string) {
	f.driveZero()
	f.latched = true
	f.latchReason = reason
	f.log.Warn("emergency all-off", zap.String("reason", reason))
}

// Stop drives the actuators to zero without setting the latch — the
// non-latching variant used by an engine's synchronous Stop().
func (f *Facade) Stop() {
	wasLatched := f.latched
	f.latched = false
	f.driveZero()
	f.latched = wasLatched
}

// Reset clears the emergency latch. Callers must have already confirmed
// with the safety supervisor that a reset is permitted.
func (f *Facade) Reset() {
	f.latched = false
	f.latchReason = ""
}

func (f *Facade) driveZero() {
	f.state = State{}
	_ = f.heater.SetPercent(0)
	_ = f.pump.SetFlow(0)
	_ = f.valve.SetOpen(false)
}
