// Command srsctl is a read-only developer shim over the core's observer
// surface: it opens the same settings database srsd uses and prints the
// persisted configuration and factory-default comparison. It does not
// reach into a running srsd process — there is no supervisory IPC in
// scope — so it reports on-disk state, not live state.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/stillwright/srs/settings"
)

func main() {
	dbPath := flag.String("db", "srs.db", "path to the settings database")
	flag.Parse()

	log := zap.NewNop()

	db, err := bbolt.Open(*dbPath, 0o600, &bbolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "srsctl: open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	store := settings.NewReadOnlyBoltStore(log, db)

	cfg, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "srsctl: load settings: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("settings version %d\n", cfg.Version)
	fmt.Printf("heater:        %sW max power\n", humanize.Comma(int64(cfg.Heater.MaxPowerWatts)))
	fmt.Printf("pump:          heads %s ml/min, body %s ml/min, tails %s ml/min\n",
		humanize.Comma(int64(cfg.Pump.HeadsFlowRate)),
		humanize.Comma(int64(cfg.Pump.BodyFlowRate)),
		humanize.Comma(int64(cfg.Pump.TailsFlowRate)))
	fmt.Printf("distillation:  start collecting at %.1f°C, end at %.1f°C, heads volume %s ml\n",
		cfg.Distillation.StartCollectingTemp, cfg.Distillation.EndTemp, humanize.Comma(int64(cfg.Distillation.HeadsVolumeML)))
	fmt.Printf("rectification: reflux ratio %.1f, period %s, body volume %s ml\n",
		cfg.Rectification.RefluxRatio,
		(time.Duration(cfg.Rectification.RefluxPeriodS) * time.Second).String(),
		humanize.Comma(int64(cfg.Rectification.BodyVolumeML)))
	fmt.Printf("safety:        max runtime %dh, max cube temp %.1f°C, watchdog %v\n",
		cfg.Safety.MaxRuntimeHours, cfg.Safety.MaxCubeTemp, cfg.Safety.WatchdogEnabled)
}
