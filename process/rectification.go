package process

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
)

// RectificationPhase enumerates the rectification engine's phases.
type RectificationPhase int

const (
	RectIdle RectificationPhase = iota
	RectHeating
	RectStabilising
	RectHeads
	RectPostHeadsStabilising
	RectBody
	RectTails
	RectCompleted
	RectError
)

func (p RectificationPhase) String() string {
	switch p {
	case RectHeating:
		return "heating"
	case RectStabilising:
		return "stabilising"
	case RectHeads:
		return "heads"
	case RectPostHeadsStabilising:
		return "post_heads_stabilising"
	case RectBody:
		return "body"
	case RectTails:
		return "tails"
	case RectCompleted:
		return "completed"
	case RectError:
		return "error"
	default:
		return "idle"
	}
}

// Rectification implements the reflux-column process: heads / body /
// tails fractions with periodic reflux cycling.
type Rectification struct {
	runState

	log        *zap.Logger
	ctx        *core.Context
	sampler    *sensors.Sampler
	facade     *actuator.Facade
	supervisor *safety.Supervisor
	cfg        settings.RectificationSettings
	pumpCfg    settings.PumpSettings

	phase      RectificationPhase
	vols       volumes
	cycle      RefluxCycle
	minReflux  float64

	prePausePercent float64
}

// NewRectification wires the engine to its collaborators.
func NewRectification(log *zap.Logger, ctx *core.Context, sampler *sensors.Sampler, facade *actuator.Facade, supervisor *safety.Supervisor, cfg settings.RectificationSettings, pumpCfg settings.PumpSettings) *Rectification {
	return &Rectification{
		log:        log.Named("rectification"),
		ctx:        ctx,
		sampler:    sampler,
		facade:     facade,
		supervisor: supervisor,
		cfg:        cfg,
		pumpCfg:    pumpCfg,
		phase:      RectIdle,
	}
}

// SetSettings replaces the rectification and pump parameter sets; takes
// effect on the next tick.
func (r *Rectification) SetSettings(cfg settings.RectificationSettings, pumpCfg settings.PumpSettings) {
	r.cfg = cfg
	r.pumpCfg = pumpCfg
}

func (r *Rectification) Name() string      { return "rectification" }
func (r *Rectification) Phase() int        { return int(r.phase) }
func (r *Rectification) PhaseName() string { return r.phase.String() }
func (r *Rectification) IsRunning() bool   { return r.running }
func (r *Rectification) IsPaused() bool    { return r.paused }
func (r *Rectification) HeadsVolumeML() float64 { return r.vols.HeadsML }
func (r *Rectification) BodyVolumeML() float64  { return r.vols.BodyML }
func (r *Rectification) TailsVolumeML() float64 { return r.vols.TailsML }
func (r *Rectification) TotalVolumeML() float64 { return r.vols.Total() }
func (r *Rectification) RefluxCycleState() RefluxCycle { return r.cycle }

// Start begins a rectification run. Rejected if any process is already
// active.
func (r *Rectification) Start() bool {
	if r.ctx.Active != core.NoProcess {
		return false
	}
	now := time.Now()
	r.ctx.Active = core.RectificationProcess
	r.begin(now)
	r.vols = volumes{}
	r.setPhase(RectHeating, now)
	r.supervisor.OnProcessStart()
	_ = r.facade.SetHeaterWatts(float64(r.cfg.HeatingPowerWatts))
	_ = r.facade.ValveClose()
	return true
}

// Stop is the synchronous cancellation path.
func (r *Rectification) Stop() {
	if !r.running && r.phase == RectIdle {
		return
	}
	r.end()
	r.phase = RectIdle
	r.facade.Stop()
	if r.ctx.Active == core.RectificationProcess {
		r.ctx.Active = core.NoProcess
	}
	r.supervisor.OnProcessEnd()
}

// Pause drives the heater to a maintenance level and stops pump/valve.
func (r *Rectification) Pause() bool {
	if !r.running || r.paused {
		return false
	}
	r.paused = true
	r.prePausePercent = r.facade.State().HeaterPercent
	_ = r.facade.SetHeaterPercent(maintenanceHeaterPercent)
	_ = r.facade.PumpStop()
	_ = r.facade.ValveClose()
	return true
}

// Resume restores the pre-pause power and restarts the reflux cycle
// clock so the duty cycle resumes cleanly.
func (r *Rectification) Resume() bool {
	if !r.running || !r.paused {
		return false
	}
	r.paused = false
	r.cycle.CycleStart = time.Now()
	_ = r.facade.SetHeaterPercent(r.prePausePercent)
	return true
}

// Tick advances the state machine.
func (r *Rectification) Tick(now time.Time) {
	if !r.running {
		return
	}
	dt := now.Sub(r.lastTick)
	r.lastTick = now

	if r.phase == RectCompleted || r.phase == RectError {
		return
	}
	if !r.supervisor.IsSafetyOK() {
		r.setPhase(RectError, now)
		return
	}
	if r.paused {
		return
	}

	cubeTemp, cubeConnected := r.sampler.Temperature(sensors.Cube)
	if cubeConnected && cubeTemp >= r.cfg.MaxCubeTemp {
		r.supervisor.EmergencyStop("rectification: cube temperature exceeded process limit")
		r.setPhase(RectError, now)
		return
	}

	switch r.phase {
	case RectHeating:
		r.tickHeating(now)
	case RectStabilising:
		r.tickStabilising(now)
	case RectHeads:
		r.tickHeads(now, dt)
	case RectPostHeadsStabilising:
		r.tickPostHeadsStabilising(now)
	case RectBody:
		r.tickBody(now, dt)
	case RectTails:
		r.tickTails(now, dt, cubeTemp, cubeConnected)
	}
}

func (r *Rectification) tickHeating(now time.Time) {
	refluxTemp, connected := r.sampler.Temperature(sensors.Reflux)
	if !connected {
		return
	}
	if refluxTemp >= r.cfg.HeadsTemp {
		r.setPhase(RectStabilising, now)
		_ = r.facade.SetHeaterWatts(float64(r.cfg.StabilizationPowerWatts))
		_ = r.facade.ValveClose()
		_ = r.facade.PumpStop()
	}
}

func (r *Rectification) tickStabilising(now time.Time) {
	if r.PhaseTimeS(now) >= float64(r.cfg.StabilizationTimeMin*60) {
		r.setPhase(RectHeads, now)
		_ = r.facade.SetHeaterWatts(float64(r.cfg.BodyPowerWatts))
		r.startRefluxCycle(now)
	}
}

func (r *Rectification) tickHeads(now time.Time, dt time.Duration) {
	r.runRefluxCycle(now, dt, r.pumpCfg.HeadsFlowRate, &r.vols.HeadsML)
	if r.vols.HeadsML >= float64(r.cfg.HeadsVolumeML) {
		r.setPhase(RectPostHeadsStabilising, now)
		_ = r.facade.SetHeaterWatts(float64(r.cfg.StabilizationPowerWatts))
		_ = r.facade.ValveClose()
		_ = r.facade.PumpStop()
	}
}

func (r *Rectification) tickPostHeadsStabilising(now time.Time) {
	if r.PhaseTimeS(now) >= float64(r.cfg.PostHeadsStabilizationMin*60) {
		r.setPhase(RectBody, now)
		_ = r.facade.SetHeaterWatts(float64(r.cfg.BodyPowerWatts))
		r.startRefluxCycle(now)
		r.minReflux = math.Inf(1)
	}
}

func (r *Rectification) tickBody(now time.Time, dt time.Duration) {
	r.runRefluxCycle(now, dt, r.pumpCfg.BodyFlowRate, &r.vols.BodyML)

	refluxTemp, refluxConnected := r.sampler.Temperature(sensors.Reflux)
	cubeTemp, cubeConnected := r.sampler.Temperature(sensors.Cube)
	if refluxConnected && refluxTemp < r.minReflux {
		r.minReflux = refluxTemp
	}

	done := r.vols.BodyML >= float64(r.cfg.BodyVolumeML)
	if refluxConnected && refluxTemp >= r.cfg.TailsTemp {
		done = true
	}
	if cubeConnected && cubeTemp >= r.cfg.TailsCubeTemp {
		done = true
	}
	if r.cfg.Model == settings.ModelAlternative && refluxConnected && refluxTemp-r.minReflux >= r.cfg.TempDeltaEndBody {
		done = true
	}
	if done {
		r.setPhase(RectTails, now)
		_ = r.facade.SetHeaterWatts(float64(r.cfg.TailsPowerWatts))
		r.startRefluxCycle(now)
	}
}

func (r *Rectification) tickTails(now time.Time, dt time.Duration, cubeTemp float64, cubeConnected bool) {
	flow := r.pumpCfg.TailsFlowRate
	if r.cfg.UseSameFlowForTails {
		flow = r.pumpCfg.BodyFlowRate
	}
	r.runRefluxCycle(now, dt, flow, &r.vols.TailsML)

	refluxTemp, refluxConnected := r.sampler.Temperature(sensors.Reflux)
	done := false
	if refluxConnected && refluxTemp >= r.cfg.EndTemp {
		done = true
	}
	if cubeConnected && cubeTemp >= r.cfg.EndTemp {
		done = true
	}
	if done {
		r.setPhase(RectCompleted, now)
		_ = r.facade.SetHeaterPercent(0)
		_ = r.facade.PumpStop()
		_ = r.facade.ValveClose()
	}
}

func (r *Rectification) startRefluxCycle(now time.Time) {
	r.cycle = RefluxCycle{
		PeriodS: r.cfg.RefluxPeriodS,
		Ratio:   r.cfg.RefluxRatio,
	}
	r.cycle.CycleStart = now
}

// runRefluxCycle drives the valve per valveTarget and, while drawing,
// commands flow and integrates collected volume into the given
// fraction counter.
func (r *Rectification) runRefluxCycle(now time.Time, dt time.Duration, flow float64, fraction *float64) {
	period := time.Duration(r.cfg.RefluxPeriodS) * time.Second
	open, phase := valveTarget(now, r.cycle.CycleStart, period, r.cfg.RefluxRatio)
	r.cycle.Phase = phase

	if open {
		_ = r.facade.ValveOpenCmd()
		_ = r.facade.SetPumpFlow(flow)
		*fraction += integrate(flow, dt)
	} else {
		_ = r.facade.ValveClose()
		_ = r.facade.PumpStop()
	}
}

func (r *Rectification) setPhase(p RectificationPhase, now time.Time) {
	if p == r.phase {
		return
	}
	r.phase = p
	r.enterPhase(now)
	if p == RectError {
		_ = r.facade.SetHeaterPercent(0)
		_ = r.facade.PumpStop()
		_ = r.facade.ValveClose()
	}
	r.log.Info("phase transition", zap.String("phase", p.String()), zap.String("run_id", r.runID.String()))
}
