// Package process implements the distillation and rectification phase
// machines as variants of one abstract "phase-driven process"
// capability, so the two engines share their run bookkeeping instead
// of duplicating it.
package process

import (
	"time"

	"github.com/google/uuid"
)

// Engine is the capability both the Distillation and Rectification
// engines implement.
type Engine interface {
	Tick(now time.Time)
	Phase() int
	PhaseName() string
	Name() string
	Start() bool
	Stop()
	Pause() bool
	Resume() bool
	IsRunning() bool
	IsPaused() bool
	UptimeS(now time.Time) float64
	PhaseTimeS(now time.Time) float64
}

// volumes tracks the disjoint fraction counters shared by both engines.
// Invariant: Heads+Body+Tails == Total at every observation.
type volumes struct {
	HeadsML float64
	BodyML  float64
	TailsML float64
}

func (v volumes) Total() float64 {
	return v.HeadsML + v.BodyML + v.TailsML
}

// integrate accumulates ml collected by running at mlPerMin for dt,
// open-loop from the commanded pump flow.
func integrate(mlPerMin float64, dt time.Duration) float64 {
	if mlPerMin <= 0 || dt <= 0 {
		return 0
	}
	return mlPerMin * dt.Minutes()
}

// runState is the shared bookkeeping both engines embed: start/phase
// timers, pause flag, and a per-run correlation ID.
type runState struct {
	running        bool
	paused         bool
	startTime      time.Time
	phaseEntryTime time.Time
	lastTick       time.Time
	runID          uuid.UUID
}

func (r *runState) begin(now time.Time) {
	r.running = true
	r.paused = false
	r.startTime = now
	r.phaseEntryTime = now
	r.lastTick = now
	r.runID = uuid.New()
}

func (r *runState) end() {
	r.running = false
	r.paused = false
}

func (r *runState) enterPhase(now time.Time) {
	r.phaseEntryTime = now
}

func (r *runState) UptimeS(now time.Time) float64 {
	if !r.running {
		return 0
	}
	return now.Sub(r.startTime).Seconds()
}

func (r *runState) PhaseTimeS(now time.Time) float64 {
	if !r.running {
		return 0
	}
	return now.Sub(r.phaseEntryTime).Seconds()
}

// RunID returns the current run's correlation ID, or the zero UUID if
// no run has started yet.
func (r *runState) RunID() uuid.UUID {
	return r.runID
}
