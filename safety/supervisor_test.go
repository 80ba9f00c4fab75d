package safety_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/hal"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
)

type supervisorRig struct {
	sampler  *sensors.Sampler
	facade   *actuator.Facade
	sup      *safety.Supervisor
	cube     *hal.SimulatedProbe
	waterOut *hal.SimulatedProbe
}

func newSupervisorRig(t *testing.T) *supervisorRig {
	log := zaptest.NewLogger(t)
	sampler := sensors.NewSampler(log, time.Millisecond)
	cube := &hal.SimulatedProbe{Connected: true, Celsius: 20}
	waterOut := &hal.SimulatedProbe{Connected: true, Celsius: 15}
	sampler.SetDriver(sensors.Cube, cube, true)
	sampler.SetDriver(sensors.WaterOut, waterOut, true)

	facade := actuator.NewFacade(log, &hal.SimulatedHeater{}, &hal.SimulatedPump{}, &hal.SimulatedValve{}, 2000)
	cfg := settings.Defaults().Safety
	sup := safety.NewSupervisor(log, sampler, facade, nil, cfg)
	sup.Init()
	t.Cleanup(sup.Shutdown)

	return &supervisorRig{sampler: sampler, facade: facade, sup: sup, cube: cube, waterOut: waterOut}
}

func TestSupervisorStaysSafeWithNoActiveProcess(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sampler.Tick(now)

	r.sup.Tick(&core.Context{Active: core.NoProcess}, now)

	require.True(t, r.sup.IsSafetyOK())
}

func TestSupervisorTripsOnMaxCubeTemp(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sup.OnProcessStart()

	r.cube.Celsius = 110
	r.sampler.Tick(now)
	r.sup.Tick(&core.Context{Active: core.DistillationProcess}, now)

	require.False(t, r.sup.IsSafetyOK())
	require.Equal(t, safety.TempHigh, r.sup.Status().ErrorCode)
	require.True(t, r.facade.Latched(), "a hard fault must trip the actuator emergency latch")
}

func TestSupervisorTripsOnSensorDisconnectWithoutLatchingActuators(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sup.OnProcessStart()

	r.cube.Connected = false
	r.sampler.Tick(now)
	r.sup.Tick(&core.Context{Active: core.DistillationProcess}, now)

	require.False(t, r.sup.IsSafetyOK())
	require.Equal(t, safety.SensorDisconnect, r.sup.Status().ErrorCode)
	require.True(t, r.sup.Status().Categories.Sensor)
	require.False(t, r.facade.Latched(), "sensor disconnect is soft and must not trip the emergency latch")
}

func TestSupervisorRectificationRequiresRefluxProbe(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sup.OnProcessStart()
	// No reflux probe driver is wired for this rig at all, so it reads
	// as disconnected.
	r.sampler.Tick(now)

	r.sup.Tick(&core.Context{Active: core.RectificationProcess}, now)

	require.False(t, r.sup.IsSafetyOK())
	require.Equal(t, safety.SensorDisconnect, r.sup.Status().ErrorCode)
}

func TestEmergencyStopIsSticky(t *testing.T) {
	r := newSupervisorRig(t)
	r.sup.EmergencyStop("operator abort")

	require.False(t, r.sup.Reset(), "EmergencyStop must require external re-arming, not the periodic checker")
	require.False(t, r.sup.IsSafetyOK())
}

func TestResetClearsNonStickyFaultAndUnlatchesFacade(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sup.OnProcessStart()

	r.cube.Celsius = 110
	r.sampler.Tick(now)
	r.sup.Tick(&core.Context{Active: core.DistillationProcess}, now)
	require.False(t, r.sup.IsSafetyOK())

	r.cube.Celsius = 20
	require.True(t, r.sup.Reset())
	require.True(t, r.sup.IsSafetyOK())
	require.False(t, r.facade.Latched())
}

func TestTickRespectsMinimumCheckInterval(t *testing.T) {
	r := newSupervisorRig(t)
	now := time.Now()
	r.sup.OnProcessStart()
	r.sampler.Tick(now)
	r.sup.Tick(&core.Context{Active: core.DistillationProcess}, now)

	r.cube.Celsius = 110
	r.sampler.Tick(now.Add(time.Millisecond))
	r.sup.Tick(&core.Context{Active: core.DistillationProcess}, now.Add(time.Millisecond))

	require.True(t, r.sup.IsSafetyOK(), "a second Tick inside the minimum check interval must not re-evaluate")
}
