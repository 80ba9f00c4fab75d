package safety

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/hal"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
)

// Status is the observable safety state.
type Status struct {
	IsSafe        bool
	ErrorCode     ErrorCode
	ErrorTimeMS   int64
	Description   string
	Categories    CategoryFlags
	WatchdogReset bool
}

// markerPath records that a watchdog reset is pending detection on the
// next boot, standing in for the MCU-specific reset-reason register a
// non-embedded target has no equivalent of.
const markerPath = "srs-watchdog.marker"

var (
	tripCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "srs_safety_trips_total",
		Help: "Safety faults raised, by error code.",
	}, []string{"code"})
	safeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "srs_safety_is_safe",
		Help: "1 when the safety supervisor considers the system safe.",
	})
)

func init() {
	prometheus.MustRegister(tripCounter, safeGauge)
}

// Supervisor evaluates the safety invariants every tick and can force
// actuators to a safe state.
type Supervisor struct {
	log      *zap.Logger
	sampler  *sensors.Sampler
	facade   *actuator.Facade
	watchdog hal.Watchdog

	cfg              settings.SafetySettings
	minCheckInterval time.Duration
	lastCheckAt      time.Time

	status           Status
	processRunning   bool
	processStartTime time.Time
}

// NewSupervisor wires the supervisor to its collaborators.
func NewSupervisor(log *zap.Logger, sampler *sensors.Sampler, facade *actuator.Facade, watchdog hal.Watchdog, cfg settings.SafetySettings) *Supervisor {
	return &Supervisor{
		log:              log.Named("safety"),
		sampler:          sampler,
		facade:           facade,
		watchdog:         watchdog,
		cfg:              cfg,
		minCheckInterval: time.Duration(cfg.TickIntervalMS) * time.Millisecond,
		status:           Status{IsSafe: true},
	}
}

// SetSettings replaces the threshold configuration (e.g. after a config
// save) without disturbing current status.
func (s *Supervisor) SetSettings(cfg settings.SafetySettings) {
	s.cfg = cfg
	s.minCheckInterval = time.Duration(cfg.TickIntervalMS) * time.Millisecond
}

// Init resets in-memory status and detects a pending watchdog-reset
// marker from a prior run.
func (s *Supervisor) Init() {
	s.status = Status{IsSafe: true}
	if _, err := os.Stat(markerPath); err == nil {
		s.status.WatchdogReset = true
		s.log.Warn("detected watchdog reset from prior run")
		_ = os.Remove(markerPath)
	}
	_ = os.WriteFile(markerPath, []byte("running"), 0o600)
	safeGauge.Set(1)
}

// Shutdown clears the watchdog marker on a clean exit so the next Init
// does not falsely report a watchdog reset.
func (s *Supervisor) Shutdown() {
	_ = os.Remove(markerPath)
}

// OnProcessStart registers the start of a process run for max-runtime
// tracking and clears stale (non-sticky) faults.
func (s *Supervisor) OnProcessStart() {
	s.processRunning = true
	s.processStartTime = time.Now()
	s.resetNonSticky()
}

// OnProcessEnd unregisters runtime tracking.
func (s *Supervisor) OnProcessEnd() {
	s.processRunning = false
}

// Status returns the current safety status snapshot.
func (s *Supervisor) Status() Status {
	return s.status
}

// IsSafetyOK reports the current safety verdict without re-evaluating.
func (s *Supervisor) IsSafetyOK() bool {
	return s.status.IsSafe
}

// Reset clears non-sticky faults. Returns false for EmergencyStop or
// SensorDisconnect, which require external re-arming.
func (s *Supervisor) Reset() bool {
	if s.status.Categories.Emergency || s.status.Categories.Sensor {
		return false
	}
	s.resetNonSticky()
	s.facade.Reset()
	return true
}

func (s *Supervisor) resetNonSticky() {
	if isSticky(s.status.ErrorCode) {
		return
	}
	s.status = Status{IsSafe: true, WatchdogReset: s.status.WatchdogReset}
	safeGauge.Set(1)
}

// EmergencyStop forces an operator-initiated emergency stop: sticky,
// hard, and drives the actuators to zero immediately.
func (s *Supervisor) EmergencyStop(reason string) {
	s.raise(EmergencyStop, reason, time.Now())
	s.facade.EmergencyAllOff(reason)
}

// Tick evaluates every safety invariant at most once per
// minCheckInterval.
func (s *Supervisor) Tick(ctx *core.Context, now time.Time) {
	if s.watchdog != nil {
		s.watchdog.Pet()
	}

	if !s.lastCheckAt.IsZero() && now.Sub(s.lastCheckAt) < s.minCheckInterval {
		return
	}
	s.lastCheckAt = now

	if !s.processRunning {
		return
	}

	var code ErrorCode
	switch ctx.Active {
	case core.RectificationProcess:
		code = s.checkRectification(now)
	default:
		code = s.checkDistillation(now)
	}

	if code == Ok {
		return
	}
	s.raise(code, Describe(code), now)
	if isHard(code) {
		s.facade.EmergencyAllOff(s.status.Description)
	}
}

// checkDistillation runs the common safety checks for a distillation
// run; distillation has no sensor beyond the common set.
func (s *Supervisor) checkDistillation(now time.Time) ErrorCode {
	if code := s.checkCommon(now); code != Ok {
		return code
	}
	return Ok
}

// checkRectification additionally requires the reflux probe to be
// connected. Dispatching on the actually-active engine means a
// distillation run is never held to a rectification-only requirement.
func (s *Supervisor) checkRectification(now time.Time) ErrorCode {
	if !s.sampler.IsConnected(sensors.Reflux) {
		return SensorDisconnect
	}
	if code := s.checkCommon(now); code != Ok {
		return code
	}
	return Ok
}

func (s *Supervisor) checkCommon(now time.Time) ErrorCode {
	if !s.sampler.IsConnected(sensors.Cube) {
		return SensorDisconnect
	}
	cubeTemp, _ := s.sampler.Temperature(sensors.Cube)
	if cubeTemp > s.cfg.MaxCubeTemp {
		return TempHigh
	}
	if rate := s.sampler.RiseRate(sensors.Cube); rate > s.cfg.MaxTempRiseRate {
		return TempRise
	}
	if s.sampler.IsConnected(sensors.WaterOut) {
		waterTemp, _ := s.sampler.Temperature(sensors.WaterOut)
		if waterTemp > s.cfg.MaxWaterOutTemp {
			return WaterFlowLow
		}
	}
	if s.processRunning {
		maxRuntime := time.Duration(s.cfg.MaxRuntimeHours) * time.Hour
		if now.Sub(s.processStartTime) >= maxRuntime {
			return MaxRuntime
		}
	}
	return Ok
}

func (s *Supervisor) raise(code ErrorCode, description string, at time.Time) {
	s.status = Status{
		IsSafe:        false,
		ErrorCode:     code,
		ErrorTimeMS:   at.UnixMilli(),
		Description:   description,
		Categories:    categoryFor(code),
		WatchdogReset: s.status.WatchdogReset,
	}
	tripCounter.WithLabelValues(code.String()).Inc()
	safeGauge.Set(0)
	s.log.Warn("safety fault", zap.String("code", code.String()), zap.String("description", description))
}
