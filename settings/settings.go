// Package settings implements the versioned, persistent configuration
// record consumed by every other component.
package settings

import "github.com/stillwright/srs/sensors"

// Version gates on-disk compatibility; a mismatch resets to factory
// defaults.
const Version uint32 = 1

// ProbeSettings holds one probe's persisted identity, enable flag and
// calibration offset.
type ProbeSettings struct {
	Address     [8]byte `msgpack:"address"`
	Enabled     bool    `msgpack:"enabled"`
	Calibration float64 `msgpack:"calibration"`
}

// HeaterSettings holds the heater's rated power and supply voltage.
type HeaterSettings struct {
	MaxPowerWatts float64 `msgpack:"max_power_watts"`
	Volts         int     `msgpack:"volts"`
}

// PumpSettings holds the per-fraction pump flow rates and a shared
// calibration factor.
type PumpSettings struct {
	HeadsFlowRate     float64 `msgpack:"heads_flow_rate"`
	BodyFlowRate      float64 `msgpack:"body_flow_rate"`
	TailsFlowRate     float64 `msgpack:"tails_flow_rate"`
	CalibrationFactor float64 `msgpack:"calibration_factor"`
}

// RectificationSettings parameterises every threshold and timing value
// the rectification engine reads on each tick.
type RectificationSettings struct {
	Model                      int     `msgpack:"model"`
	HeatingPowerWatts          int     `msgpack:"heating_power_watts"`
	StabilizationPowerWatts    int     `msgpack:"stabilization_power_watts"`
	BodyPowerWatts             int     `msgpack:"body_power_watts"`
	TailsPowerWatts            int     `msgpack:"tails_power_watts"`
	HeadsTemp                  float64 `msgpack:"heads_temp"`
	BodyTemp                   float64 `msgpack:"body_temp"`
	TailsTemp                  float64 `msgpack:"tails_temp"`
	EndTemp                    float64 `msgpack:"end_temp"`
	MaxCubeTemp                float64 `msgpack:"max_cube_temp"`
	TailsCubeTemp              float64 `msgpack:"tails_cube_temp"`
	TempDeltaEndBody           float64 `msgpack:"temp_delta_end_body"`
	StabilizationTimeMin       int     `msgpack:"stabilization_time_min"`
	PostHeadsStabilizationMin  int     `msgpack:"post_heads_stabilization_min"`
	HeadsVolumeML              int     `msgpack:"heads_volume_ml"`
	BodyVolumeML               int     `msgpack:"body_volume_ml"`
	RefluxRatio                float64 `msgpack:"reflux_ratio"`
	RefluxPeriodS              int     `msgpack:"reflux_period_s"`
	UseSameFlowForTails        bool    `msgpack:"use_same_flow_for_tails"`
}

// Model selects the rectification engine's Body-phase termination rule:
// ModelClassical ends Body on volume or temperature thresholds alone;
// ModelAlternative also ends it once the reflux temperature has risen
// TempDeltaEndBody above its observed minimum for the run.
const (
	ModelClassical   = 0
	ModelAlternative = 1
)

// DistillationSettings parameterises every threshold and timing value
// the distillation engine reads on each tick.
type DistillationSettings struct {
	HeatingPowerWatts      int     `msgpack:"heating_power_watts"`
	DistillationPowerWatts int     `msgpack:"distillation_power_watts"`
	StartCollectingTemp    float64 `msgpack:"start_collecting_temp"`
	EndTemp                float64 `msgpack:"end_temp"`
	MaxCubeTemp            float64 `msgpack:"max_cube_temp"`
	SeparateHeads          bool    `msgpack:"separate_heads"`
	HeadsVolumeML          int     `msgpack:"heads_volume_ml"`
	FlowRate               float64 `msgpack:"flow_rate"`
	HeadsFlowRate          float64 `msgpack:"heads_flow_rate"`
}

// SafetySettings parameterises the thresholds the safety supervisor
// evaluates every tick.
type SafetySettings struct {
	MaxRuntimeHours       int     `msgpack:"max_runtime_hours"`
	MaxCubeTemp           float64 `msgpack:"max_cube_temp"`
	MaxTempRiseRate       float64 `msgpack:"max_temp_rise_rate"`
	MinWaterOutTemp       float64 `msgpack:"min_water_out_temp"`
	MaxWaterOutTemp       float64 `msgpack:"max_water_out_temp"`
	EmergencyStopEnabled  bool    `msgpack:"emergency_stop_enabled"`
	WatchdogEnabled       bool    `msgpack:"watchdog_enabled"`
	TickIntervalMS        int     `msgpack:"tick_interval_ms"`
	WatchdogTimeoutS      int     `msgpack:"watchdog_timeout_s"`
}

// WifiSettings holds the access-point credentials an onboard display or
// setup wizard would configure; the process-control engine itself never
// reads these fields.
type WifiSettings struct {
	SSID     string `msgpack:"ssid"`
	Password string `msgpack:"password"`
	APMode   bool   `msgpack:"ap_mode"`
}

// Settings is the single versioned record consumed by every other
// component.
type Settings struct {
	Version          uint32                                `msgpack:"version"`
	Probes           [sensors.ProbeCount]ProbeSettings      `msgpack:"probes"`
	Heater           HeaterSettings                         `msgpack:"heater"`
	Pump             PumpSettings                           `msgpack:"pump"`
	Rectification    RectificationSettings                  `msgpack:"rectification"`
	Distillation     DistillationSettings                   `msgpack:"distillation"`
	Safety           SafetySettings                         `msgpack:"safety"`
	Wifi             WifiSettings                           `msgpack:"wifi"`
}

// Defaults returns the factory-default settings record.
func Defaults() Settings {
	s := Settings{
		Version: Version,
		Heater: HeaterSettings{
			MaxPowerWatts: 2000,
			Volts:         220,
		},
		Pump: PumpSettings{
			HeadsFlowRate:     50,
			BodyFlowRate:      250,
			TailsFlowRate:     350,
			CalibrationFactor: 1.0,
		},
		Rectification: RectificationSettings{
			Model:                     ModelClassical,
			HeatingPowerWatts:         1800,
			StabilizationPowerWatts:   1200,
			BodyPowerWatts:            1000,
			TailsPowerWatts:           1200,
			HeadsTemp:                 78.0,
			BodyTemp:                  78.3,
			TailsTemp:                 92.0,
			EndTemp:                   97.0,
			MaxCubeTemp:               101.0,
			TailsCubeTemp:             95.0,
			TempDeltaEndBody:          0.5,
			StabilizationTimeMin:      30,
			PostHeadsStabilizationMin: 10,
			HeadsVolumeML:             150,
			BodyVolumeML:              2000,
			RefluxRatio:               3.0,
			RefluxPeriodS:             60,
			UseSameFlowForTails:       true,
		},
		Distillation: DistillationSettings{
			HeatingPowerWatts:      2000,
			DistillationPowerWatts: 1500,
			StartCollectingTemp:   70.0,
			EndTemp:               97.0,
			MaxCubeTemp:           101.0,
			SeparateHeads:         true,
			HeadsVolumeML:         200,
			FlowRate:              800.0,
			HeadsFlowRate:         200.0,
		},
		Safety: SafetySettings{
			MaxRuntimeHours:      12,
			MaxCubeTemp:          105.0,
			MaxTempRiseRate:      5.0,
			MinWaterOutTemp:      5.0,
			MaxWaterOutTemp:      50.0,
			EmergencyStopEnabled: true,
			WatchdogEnabled:      true,
			TickIntervalMS:       1000,
			WatchdogTimeoutS:     30,
		},
		Wifi: WifiSettings{
			SSID:   "Distiller",
			APMode: true,
		},
	}
	return s
}
