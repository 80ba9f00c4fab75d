// Command srsd runs the still controller's core control loop: sensor
// sampling, safety supervision and whichever process engine is active,
// on a fixed tick, plus a best-effort MQTT telemetry side channel.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/stillwright/srs/actuator"
	"github.com/stillwright/srs/core"
	"github.com/stillwright/srs/hal"
	"github.com/stillwright/srs/process"
	"github.com/stillwright/srs/safety"
	"github.com/stillwright/srs/sched"
	"github.com/stillwright/srs/sensors"
	"github.com/stillwright/srs/settings"
	"github.com/stillwright/srs/telemetry"
)

func main() {
	dbPath := flag.String("db", "srs.db", "path to the settings database")
	mqttBroker := flag.String("mqtt-broker", "", "MQTT broker URL for telemetry, e.g. tcp://localhost:1883 (disabled if empty)")
	instanceID := flag.String("instance-id", "still-1", "instance identifier used in the telemetry topic")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := bbolt.Open(*dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		log.Fatal("open settings database", zap.Error(err))
	}
	defer db.Close()

	store, err := settings.NewBoltStore(log, db)
	if err != nil {
		log.Fatal("open settings store", zap.Error(err))
	}
	restored, err := store.Init()
	if err != nil {
		log.Fatal("initialize settings", zap.Error(err))
	}
	if !restored {
		log.Warn("settings reset to factory defaults")
	}
	cfg, err := store.Load()
	if err != nil {
		log.Fatal("load settings", zap.Error(err))
	}

	sampler := sensors.NewSampler(log, time.Second)
	for i := 0; i < sensors.ProbeCount; i++ {
		p := sensors.Probe(i)
		probeCfg := cfg.Probes[i]
		sampler.SetDriver(p, &hal.SimulatedProbe{Connected: true}, probeCfg.Enabled)
		sampler.Calibrate(p, probeCfg.Calibration)
	}

	facade := actuator.NewFacade(log, &hal.SimulatedHeater{}, &hal.SimulatedPump{}, &hal.SimulatedValve{}, cfg.Heater.MaxPowerWatts)

	var watchdog hal.Watchdog
	if cfg.Safety.WatchdogEnabled {
		sysWatchdog := hal.NewSystemdWatchdog(log)
		if sysWatchdog.Enabled() {
			watchdog = sysWatchdog
		} else {
			watchdog = hal.NewSimulatedWatchdog(time.Duration(cfg.Safety.WatchdogTimeoutS) * time.Second)
		}
	}

	supervisor := safety.NewSupervisor(log, sampler, facade, watchdog, cfg.Safety)
	supervisor.Init()
	defer supervisor.Shutdown()

	ctx := &core.Context{}
	scheduler := sched.NewScheduler(log, ctx, sampler, supervisor, facade)

	distillation := process.NewDistillation(log, ctx, sampler, facade, supervisor, cfg.Distillation)
	rectification := process.NewRectification(log, ctx, sampler, facade, supervisor, cfg.Rectification, cfg.Pump)
	scheduler.RegisterEngine(core.DistillationProcess, distillation)
	scheduler.RegisterEngine(core.RectificationProcess, rectification)

	var publisher *telemetry.Publisher
	if *mqttBroker != "" {
		publisher = telemetry.NewPublisher(log, *mqttBroker, *instanceID, telemetry.DefaultTopic(*instanceID))
		publisher.Start()
		defer publisher.Stop(2 * time.Second)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	tickInterval := time.Duration(cfg.Safety.TickIntervalMS) * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Info("srsd starting", zap.Duration("tick_interval", tickInterval))
	for {
		select {
		case <-stop:
			log.Info("srsd shutting down")
			return
		case now := <-ticker.C:
			scheduler.Tick(now)
			if publisher != nil {
				publisher.Publish(buildSnapshot(now, ctx, distillation, rectification, facade, supervisor))
			}
		}
	}
}

func buildSnapshot(now time.Time, ctx *core.Context, d *process.Distillation, r *process.Rectification, facade *actuator.Facade, supervisor *safety.Supervisor) telemetry.Snapshot {
	var runID, phase string
	var uptimeS, headsML, bodyML, tailsML float64

	switch ctx.Active {
	case core.DistillationProcess:
		phase = d.PhaseName()
		uptimeS = d.UptimeS(now)
		headsML, bodyML = d.HeadsVolumeML(), d.BodyVolumeML()
		runID = d.RunID().String()
	case core.RectificationProcess:
		phase = r.PhaseName()
		uptimeS = r.UptimeS(now)
		headsML, bodyML, tailsML = r.HeadsVolumeML(), r.BodyVolumeML(), r.TailsVolumeML()
		runID = r.RunID().String()
	}

	return telemetry.BuildSnapshot(now.UnixMilli(), ctx.Active, runID, phase, uptimeS, headsML, bodyML, tailsML, facade.State(), supervisor.Status())
}
