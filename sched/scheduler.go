// Package sched drives the fixed per-tick order (Sensor Sampler, Safety
// Supervisor, active Process Engine) and is kept separate from package
// core so that core.Context stays a dependency-free leaf type both
// safety and process can import without a cycle.
package sched

import (
	"time"

	"go.uber.org/zap"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sensors"
)

// Engine is the subset of process.Engine the scheduler needs; kept here
// (rather than importing package process) to avoid a dependency cycle,
// since process imports core for the shared Context.
type Engine interface {
	Tick(now time.Time)
	IsRunning() bool
}

// Scheduler drives the fixed per-tick order: Sensor Sampler, then
// Safety Supervisor, then the active Process Engine. There is no
// separate Actuator Façade flush stage; the façade applies each command
// as it is issued. Tick takes the current time as an argument rather
// than reading the clock, so tests can drive it with a synthetic clock.
type Scheduler struct {
	log        *zap.Logger
	ctx        *core.Context
	sampler    *sensors.Sampler
	supervisor *safety.Supervisor
	facade     *actuator.Facade
	engines    map[core.ProcessKind]Engine
}

// NewScheduler wires the four always-present components. Engines are
// registered separately via RegisterEngine once constructed, since they
// in turn depend on the scheduler's Context.
func NewScheduler(log *zap.Logger, ctx *core.Context, sampler *sensors.Sampler, supervisor *safety.Supervisor, facade *actuator.Facade) *Scheduler {
	return &Scheduler{
		log:        log.Named("scheduler"),
		ctx:        ctx,
		sampler:    sampler,
		supervisor: supervisor,
		facade:     facade,
		engines:    make(map[core.ProcessKind]Engine),
	}
}

// RegisterEngine associates a process.Engine with the ProcessKind it
// drives Context.Active to.
func (s *Scheduler) RegisterEngine(kind core.ProcessKind, e Engine) {
	s.engines[kind] = e
}

// Tick runs one scheduler iteration at the given time. No operation
// performed here blocks.
func (s *Scheduler) Tick(now time.Time) {
	s.sampler.Tick(now)
	s.supervisor.Tick(s.ctx, now)

	if e, ok := s.engines[s.ctx.Active]; ok {
		e.Tick(now)
	}
	// The actuator façade has no separate flush step: every Facade
	// setter already checks the supervisor's latch synchronously, so
	// an emergency raised earlier in this same tick has already taken
	// effect before any engine command below it could apply.
}

// Run drives Tick on a fixed-interval ticker until stop is closed.
// cmd/srsd does not use it: it runs its own ticker loop so it can
// publish telemetry after each Tick. Tests call Tick directly with
// synthetic clocks.
func (s *Scheduler) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}
