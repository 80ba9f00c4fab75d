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

type rectRig struct {
	ctx        *core.Context
	sampler    *sensors.Sampler
	facade     *actuator.Facade
	supervisor *safety.Supervisor
	cube       *hal.SimulatedProbe
	reflux     *hal.SimulatedProbe
	valve      *hal.SimulatedValve
	engine     *process.Rectification
}

func newRectRig(t *testing.T) *rectRig {
	log := zaptest.NewLogger(t)
	ctx := &core.Context{}
	sampler := sensors.NewSampler(log, time.Millisecond)
	cube := &hal.SimulatedProbe{Connected: true, Celsius: 20}
	reflux := &hal.SimulatedProbe{Connected: true, Celsius: 20}
	sampler.SetDriver(sensors.Cube, cube, true)
	sampler.SetDriver(sensors.Reflux, reflux, true)

	valve := &hal.SimulatedValve{}
	facade := actuator.NewFacade(log, &hal.SimulatedHeater{}, &hal.SimulatedPump{}, valve, 1800)
	safetyCfg := settings.Defaults().Safety
	supervisor := safety.NewSupervisor(log, sampler, facade, nil, safetyCfg)
	supervisor.Init()

	def := settings.Defaults()
	engine := process.NewRectification(log, ctx, sampler, facade, supervisor, def.Rectification, def.Pump)

	return &rectRig{ctx: ctx, sampler: sampler, facade: facade, supervisor: supervisor, cube: cube, reflux: reflux, valve: valve, engine: engine}
}

func (r *rectRig) sample(now time.Time) {
	r.sampler.Tick(now)
}

func TestRectificationHeatingToStabilisingToHeads(t *testing.T) {
	r := newRectRig(t)
	now := time.Now()
	require.True(t, r.engine.Start())
	require.Equal(t, "heating", r.engine.PhaseName())

	r.reflux.Celsius = 78.5
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "stabilising", r.engine.PhaseName())

	// Stabilisation default is 30 minutes; fast-forward the phase clock.
	now = now.Add(31 * time.Minute)
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "heads", r.engine.PhaseName())
}

func TestRectificationRefluxCyclesDuringHeads(t *testing.T) {
	r := newRectRig(t)
	now := time.Now()
	r.engine.Start()

	r.reflux.Celsius = 78.5
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)

	now = now.Add(31 * time.Minute)
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "heads", r.engine.PhaseName())

	// Default reflux ratio 3, period 60s: first 15s of each minute draws.
	now = now.Add(5 * time.Second)
	r.sample(now)
	r.engine.Tick(now)
	require.True(t, r.facade.IsValveOpen())

	now = now.Add(20 * time.Second)
	r.sample(now)
	r.engine.Tick(now)
	require.False(t, r.facade.IsValveOpen())
}

func TestRectificationAdvancesPastHeadsOnceVolumeCollected(t *testing.T) {
	r := newRectRig(t)
	now := time.Now()
	r.engine.Start()

	r.reflux.Celsius = 78.5
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)
	now = now.Add(31 * time.Minute)
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "heads", r.engine.PhaseName())

	// Default heads volume is 150 ml at a heads flow rate of 50 ml/min;
	// the pump only runs during the 15 s draw of each 60 s reflux period,
	// so that takes about 12 minutes; run long enough to exceed it.
	for i := 0; i < 900 && r.engine.PhaseName() == "heads"; i++ {
		now = now.Add(time.Second)
		r.sample(now)
		r.engine.Tick(now)
	}

	require.Equal(t, "post_heads_stabilising", r.engine.PhaseName())
	require.GreaterOrEqual(t, r.engine.HeadsVolumeML(), 150.0)
}

func TestRectificationClosesValveOnFaultDuringRefluxDraw(t *testing.T) {
	r := newRectRig(t)
	now := time.Now()
	r.engine.Start()

	r.reflux.Celsius = 78.5
	now = now.Add(time.Second)
	r.sample(now)
	r.engine.Tick(now)
	now = now.Add(31 * time.Minute)
	r.sample(now)
	r.engine.Tick(now)
	require.Equal(t, "heads", r.engine.PhaseName())

	// Default reflux ratio 3, period 60s: first 15s of each minute draws.
	now = now.Add(5 * time.Second)
	r.sample(now)
	r.engine.Tick(now)
	require.True(t, r.facade.IsValveOpen())

	// A soft fault (sensor disconnect) does not itself force the
	// actuators; the engine must close the valve on its own.
	r.reflux.Connected = false
	now = now.Add(time.Second)
	r.sample(now)
	r.supervisor.Tick(r.ctx, now)
	require.False(t, r.supervisor.IsSafetyOK())

	r.engine.Tick(now)
	require.Equal(t, "error", r.engine.PhaseName())
	require.False(t, r.facade.IsValveOpen())
	require.False(t, r.facade.State().ValveOpen)
}

func TestRectificationCannotStartWhileAnotherProcessActive(t *testing.T) {
	r := newRectRig(t)
	r.ctx.Active = core.DistillationProcess
	require.False(t, r.engine.Start())
}
