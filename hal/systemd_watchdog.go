package hal

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

// SystemdWatchdog pets systemd's WATCHDOG=1 notification for hosts
// actually supervised by systemd, as the non-simulated counterpart to
// SimulatedWatchdog. Falls back to acting as a no-op Watchdog if
// WatchdogSec= was not set for the unit, so srsd can run the same way
// under a plain shell.
type SystemdWatchdog struct {
	log     *zap.Logger
	timeout time.Duration
	enabled bool
}

// NewSystemdWatchdog queries systemd for the unit's configured watchdog
// interval via sd_watchdog_enabled(3). If systemd did not set one,
// the returned Watchdog still satisfies the interface but Pet is a
// no-op.
func NewSystemdWatchdog(log *zap.Logger) *SystemdWatchdog {
	interval, err := daemon.SdWatchdogEnabled(false)
	w := &SystemdWatchdog{log: log.Named("watchdog")}
	if err != nil {
		w.log.Warn("sd_watchdog_enabled failed", zap.Error(err))
		return w
	}
	if interval == 0 {
		w.log.Info("no systemd watchdog configured for this unit")
		return w
	}
	w.timeout = interval
	w.enabled = true
	return w
}

// Pet notifies systemd that the service is alive. No-op if the unit has
// no WatchdogSec= configured.
func (w *SystemdWatchdog) Pet() {
	if !w.enabled {
		return
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		w.log.Warn("sd_notify watchdog failed", zap.Error(err))
	}
}

// Timeout returns the watchdog interval systemd configured, or 0 if
// none was configured.
func (w *SystemdWatchdog) Timeout() time.Duration {
	return w.timeout
}

// Enabled reports whether a real systemd watchdog interval was found.
func (w *SystemdWatchdog) Enabled() bool {
	return w.enabled
}
