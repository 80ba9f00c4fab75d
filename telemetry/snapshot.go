// Package telemetry mirrors core state to an external MQTT broker,
// distinct from the out-of-scope HTTP/WebSocket interface (SPEC_FULL.md
// §4.7). Nothing in this package can block the scheduler tick.
package telemetry

import (
	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/safety"
)

// Snapshot is the JSON payload published after every scheduler tick.
type Snapshot struct {
	AtMS         int64          `json:"at_ms"`
	RunID        string         `json:"run_id,omitempty"`
	ActiveKind   string         `json:"active_process"`
	Phase        string         `json:"phase,omitempty"`
	UptimeS      float64        `json:"uptime_s,omitempty"`
	HeadsML      float64        `json:"heads_ml,omitempty"`
	BodyML       float64        `json:"body_ml,omitempty"`
	TailsML      float64        `json:"tails_ml,omitempty"`
	TotalML      float64        `json:"total_ml,omitempty"`
	Actuators    actuator.State `json:"actuators"`
	Safety       SafetyView     `json:"safety"`
}

// SafetyView is the wire-friendly projection of safety.Status.
type SafetyView struct {
	IsSafe        bool   `json:"is_safe"`
	ErrorCode     string `json:"error_code"`
	Description   string `json:"description,omitempty"`
	WatchdogReset bool   `json:"watchdog_reset"`
}

func safetyView(s safety.Status) SafetyView {
	return SafetyView{
		IsSafe:        s.IsSafe,
		ErrorCode:     s.ErrorCode.String(),
		Description:   s.Description,
		WatchdogReset: s.WatchdogReset,
	}
}

// BuildSnapshot assembles a Snapshot from the scheduler's current
// component states. runID and phase/volumes are supplied by the caller
// since they come from whichever engine is active, if any (core.Context
// only knows the kind).
func BuildSnapshot(atMS int64, active core.ProcessKind, runID, phase string, uptimeS, headsML, bodyML, tailsML float64, act actuator.State, status safety.Status) Snapshot {
	return Snapshot{
		AtMS:       atMS,
		RunID:      runID,
		ActiveKind: active.String(),
		Phase:      phase,
		UptimeS:    uptimeS,
		HeadsML:    headsML,
		BodyML:     bodyML,
		TailsML:    tailsML,
		TotalML:    headsML + bodyML + tailsML,
		Actuators:  act,
		Safety:     safetyView(status),
	}
}
