package process_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/hal"
	"github.com/stillwright/srs/process"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
)

type distRig struct {
	ctx        *core.Context
	sampler    *sensors.Sampler
	facade     *actuator.Facade
	supervisor *safety.Supervisor
	cube       *hal.SimulatedProbe
	waterOut   *hal.SimulatedProbe
	engine     *process.Distillation
}

func newDistRig(t *testing.T) *distRig {
	log := zaptest.NewLogger(t)
	ctx := &core.Context{}
	sampler := sensors.NewSampler(log, time.Millisecond)
	cube := &hal.SimulatedProbe{Connected: true, Celsius: 20}
	waterOut := &hal.SimulatedProbe{Connected: true, Celsius: 15}
	sampler.SetDriver(sensors.Cube, cube, true)
	sampler.SetDriver(sensors.WaterOut, waterOut, true)

	facade := actuator.NewFacade(log, &hal.SimulatedHeater{}, &hal.SimulatedPump{}, &hal.SimulatedValve{}, 2000)
	safetyCfg := settings.Defaults().Safety
	supervisor := safety.NewSupervisor(log, sampler, facade, nil, safetyCfg)
	supervisor.Init()

	cfg := settings.Defaults().Distillation
	engine := process.NewDistillation(log, ctx, sampler, facade, supervisor, cfg)

	return &distRig{ctx: ctx, sampler: sampler, facade: facade, supervisor: supervisor, cube: cube, waterOut: waterOut, engine: engine}
}

func (r *distRig) sample(now time.Time) {
	r.sampler.Tick(now)
}

func TestDistillationHeatingToCollecting(t *testing.T) {
	r := newDistRig(t)
	now := time.Now()

	require.True(t, r.engine.Start())
	require.Equal(t, core.DistillationProcess, r.ctx.Active)
	require.Equal(t, "heating", r.engine.PhaseName())

	r.cube.Celsius = 71
	r.sample(now)
	r.engine.Tick(now)

	require.Equal(t, "collecting", r.engine.PhaseName())
	require.True(t, r.engine.IsHeadsMode())
}

func TestDistillationCollectsHeadsThenBody(t *testing.T) {
	r := newDistRig(t)
	now := time.Now()
	r.engine.Start()

	r.cube.Celsius = 71
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "collecting", r.engine.PhaseName())
	require.True(t, r.engine.IsHeadsMode())

	// Heads flow rate defaults to 200 ml/min; run long enough to exceed
	// the 200 ml heads volume and flip out of heads mode.
	for i := 0; i < 70; i++ {
		now = now.Add(time.Second)
		r.sample(now)
		r.engine.Tick(now)
	}

	require.False(t, r.engine.IsHeadsMode())
	require.GreaterOrEqual(t, r.engine.HeadsVolumeML(), 200.0)
}

func TestDistillationCompletesAtEndTemp(t *testing.T) {
	r := newDistRig(t)
	now := time.Now()
	r.engine.Start()

	r.cube.Celsius = 71
	r.sample(now)
	r.engine.Tick(now)

	r.cube.Celsius = 97.5
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)

	require.Equal(t, "completed", r.engine.PhaseName())
	require.Zero(t, r.facade.State().HeaterPercent)
	require.Zero(t, r.facade.State().PumpFlowMlPerMin)
}

func TestDistillationEmergencyStopsAtMaxCubeTemp(t *testing.T) {
	r := newDistRig(t)
	now := time.Now()
	r.engine.Start()

	r.cube.Celsius = 71
	r.sample(now)
	r.engine.Tick(now)

	r.cube.Celsius = 102
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)

	require.Equal(t, "error", r.engine.PhaseName())
	require.True(t, r.facade.Latched())
	require.False(t, r.supervisor.IsSafetyOK())
}

func TestDistillationCannotStartWhileAnotherProcessActive(t *testing.T) {
	r := newDistRig(t)
	r.ctx.Active = core.RectificationProcess
	require.False(t, r.engine.Start())
}

func TestDistillationPauseResumeHoldsState(t *testing.T) {
	r := newDistRig(t)
	now := time.Now()
	r.engine.Start()
	r.cube.Celsius = 71
	r.sample(now)
	r.engine.Tick(now)

	require.True(t, r.engine.Pause())
	require.True(t, r.engine.IsPaused())
	require.Equal(t, maintenanceHeaterPercentForTest, r.facade.State().HeaterPercent)

	require.True(t, r.engine.Resume())
	require.False(t, r.engine.IsPaused())
}

const maintenanceHeaterPercentForTest = 10.0
