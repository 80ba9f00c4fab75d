package process

import (
	"time"

	"go.uber.org/zap"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
)

// DistillationPhase enumerates the distillation engine's phases.
type DistillationPhase int

const (
	DistIdle DistillationPhase = iota
	DistHeating
	DistCollecting
	DistCompleted
	DistError
)

func (p DistillationPhase) String() string {
	switch p {
	case DistHeating:
		return "heating"
	case DistCollecting:
		return "collecting"
	case DistCompleted:
		return "completed"
	case DistError:
		return "error"
	default:
		return "idle"
	}
}

// maintenanceHeaterPercent is the heater level held while paused: low
// enough to avoid a cold cube on resume, too low to meaningfully
// progress the boil.
const maintenanceHeaterPercent = 10.0

// Distillation implements the single vaporise-and-collect pass with an
// optional heads sub-phase.
type Distillation struct {
	runState

	log       *zap.Logger
	ctx       *core.Context
	sampler   *sensors.Sampler
	facade    *actuator.Facade
	supervisor *safety.Supervisor
	cfg       settings.DistillationSettings

	phase     DistillationPhase
	headsMode bool
	vols      volumes

	prePausePercent float64
}

// NewDistillation wires the engine to its collaborators.
func NewDistillation(log *zap.Logger, ctx *core.Context, sampler *sensors.Sampler, facade *actuator.Facade, supervisor *safety.Supervisor, cfg settings.DistillationSettings) *Distillation {
	return &Distillation{
		log:        log.Named("distillation"),
		ctx:        ctx,
		sampler:    sampler,
		facade:     facade,
		supervisor: supervisor,
		cfg:        cfg,
		phase:      DistIdle,
	}
}

// SetSettings replaces the distillation parameter set; takes effect on
// the next tick.
func (d *Distillation) SetSettings(cfg settings.DistillationSettings) {
	d.cfg = cfg
}

func (d *Distillation) Name() string       { return "distillation" }
func (d *Distillation) Phase() int         { return int(d.phase) }
func (d *Distillation) PhaseName() string  { return d.phase.String() }
func (d *Distillation) IsRunning() bool    { return d.running }
func (d *Distillation) IsPaused() bool     { return d.paused }
func (d *Distillation) IsHeadsMode() bool  { return d.headsMode }
func (d *Distillation) HeadsVolumeML() float64 { return d.vols.HeadsML }
func (d *Distillation) BodyVolumeML() float64  { return d.vols.BodyML }
func (d *Distillation) TotalVolumeML() float64 { return d.vols.Total() }

// Start begins a distillation run. Rejected if any process is already
// active.
func (d *Distillation) Start() bool {
	if d.ctx.Active != core.NoProcess {
		return false
	}
	now := time.Now()
	d.ctx.Active = core.DistillationProcess
	d.begin(now)
	d.vols = volumes{}
	d.headsMode = d.cfg.SeparateHeads
	d.setPhase(DistHeating, now)
	d.supervisor.OnProcessStart()
	_ = d.facade.SetHeaterWatts(float64(d.cfg.HeatingPowerWatts))
	return true
}

// Stop is the synchronous cancellation path: phase resets to Idle,
// actuators go to a non-latching zero, and volume counters clear on
// the next Start.
func (d *Distillation) Stop() {
	if !d.running && d.phase == DistIdle {
		return
	}
	d.end()
	d.phase = DistIdle
	d.headsMode = false
	d.facade.Stop()
	if d.ctx.Active == core.DistillationProcess {
		d.ctx.Active = core.NoProcess
	}
	d.supervisor.OnProcessEnd()
}

// Pause drives the heater to a maintenance level and stops pump/valve,
// without losing phase or volume state.
func (d *Distillation) Pause() bool {
	if !d.running || d.paused {
		return false
	}
	d.paused = true
	d.prePausePercent = d.facade.State().HeaterPercent
	_ = d.facade.SetHeaterPercent(maintenanceHeaterPercent)
	_ = d.facade.PumpStop()
	_ = d.facade.ValveClose()
	return true
}

// Resume restores the pre-pause power; the pump restarts on the next
// tick per the current phase.
func (d *Distillation) Resume() bool {
	if !d.running || !d.paused {
		return false
	}
	d.paused = false
	_ = d.facade.SetHeaterPercent(d.prePausePercent)
	return true
}

// Tick advances the state machine.
func (d *Distillation) Tick(now time.Time) {
	if !d.running {
		return
	}
	dt := now.Sub(d.lastTick)
	d.lastTick = now

	if d.phase == DistCompleted || d.phase == DistError {
		return
	}
	if !d.supervisor.IsSafetyOK() {
		d.setPhase(DistError, now)
		return
	}
	if d.paused {
		return
	}

	switch d.phase {
	case DistHeating:
		d.tickHeating(now)
	case DistCollecting:
		d.tickCollecting(now, dt)
	}
}

func (d *Distillation) tickHeating(now time.Time) {
	cubeTemp, connected := d.sampler.Temperature(sensors.Cube)
	if !connected {
		return
	}
	if cubeTemp >= d.cfg.StartCollectingTemp {
		d.headsMode = d.cfg.SeparateHeads
		d.setPhase(DistCollecting, now)
		_ = d.facade.SetHeaterWatts(float64(d.cfg.DistillationPowerWatts))
	}
}

func (d *Distillation) tickCollecting(now time.Time, dt time.Duration) {
	cubeTemp, connected := d.sampler.Temperature(sensors.Cube)
	if !connected {
		return
	}

	if cubeTemp >= d.cfg.MaxCubeTemp {
		d.supervisor.EmergencyStop("distillation: cube temperature exceeded process limit")
		d.setPhase(DistError, now)
		return
	}
	if cubeTemp >= d.cfg.EndTemp {
		d.setPhase(DistCompleted, now)
		_ = d.facade.SetHeaterPercent(0)
		_ = d.facade.PumpStop()
		return
	}

	flow := d.cfg.FlowRate
	if d.headsMode {
		flow = d.cfg.HeadsFlowRate
	}
	_ = d.facade.SetPumpFlow(flow)

	collected := integrate(flow, dt)
	if d.headsMode {
		d.vols.HeadsML += collected
		if d.vols.HeadsML >= float64(d.cfg.HeadsVolumeML) {
			d.headsMode = false
		}
	} else {
		d.vols.BodyML += collected
	}
}

func (d *Distillation) setPhase(p DistillationPhase, now time.Time) {
	if p == d.phase {
		return
	}
	d.phase = p
	d.enterPhase(now)
	if p == DistError {
		_ = d.facade.SetHeaterPercent(0)
		_ = d.facade.PumpStop()
	}
	d.log.Info("phase transition", zap.String("phase", p.String()), zap.String("run_id", d.runID.String()))
}
