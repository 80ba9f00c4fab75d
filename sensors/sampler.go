// Package sensors implements the sensor sampling and rise-rate
// estimation substrate shared by the safety supervisor and the process
// engines.
package sensors

import (
	"time"

	"go.uber.org/zap"

	"github.com/stillwright/srs/hal"
)

const defaultHistoryCapacity = 10

// riseRateMinSpanMS and riseRateMaxSpanMS bound the window rise-rate is
// allowed to use.
const (
	riseRateMinSpanMS = 30_000
	riseRateMaxSpanMS = 300_000
)

// Sampler periodically reads the configured probes, applies calibration,
// and maintains each probe's history ring.
type Sampler struct {
	log              *zap.Logger
	updateIntervalMS int64
	lastSampleMS     int64

	drivers      [ProbeCount]hal.TempProbeReader
	enabled      [ProbeCount]bool
	calibration  [ProbeCount]float64
	histories    [ProbeCount]*ring
}

// NewSampler builds a Sampler with the default 10-entry history ring per
// probe and the given update interval.
func NewSampler(log *zap.Logger, updateInterval time.Duration) *Sampler {
	s := &Sampler{
		log:              log.Named("sensors"),
		updateIntervalMS: updateInterval.Milliseconds(),
	}
	for i := range s.histories {
		s.histories[i] = newRing(defaultHistoryCapacity)
	}
	return s
}

// SetDriver wires the hardware (or simulated) reader for a probe and
// whether it is currently enabled.
func (s *Sampler) SetDriver(p Probe, driver hal.TempProbeReader, enabled bool) {
	s.drivers[p] = driver
	s.enabled[p] = enabled
}

// Calibrate persists a calibration offset for a probe, applied to all
// subsequent reads.
func (s *Sampler) Calibrate(p Probe, offset float64) {
	s.calibration[p] = offset
}

// Tick samples all enabled probes if the update interval has elapsed.
// Idempotent across interval boundaries: calling Tick more than once
// within the same interval is a no-op after the first call.
func (s *Sampler) Tick(now time.Time) {
	nowMS := now.UnixMilli()
	if s.lastSampleMS != 0 && nowMS-s.lastSampleMS < s.updateIntervalMS {
		return
	}
	s.lastSampleMS = nowMS

	for i := 0; i < ProbeCount; i++ {
		p := Probe(i)
		if !s.enabled[p] || s.drivers[p] == nil {
			continue
		}
		raw, connected := s.drivers[p].ReadCelsius()
		entry := Entry{AtMS: nowMS, Connected: connected}
		if connected {
			entry.Celsius = raw + s.calibration[p]
		}
		s.histories[p].push(entry)
	}
}

// Temperature returns the most recent calibrated reading for a probe,
// and whether it is connected.
func (s *Sampler) Temperature(p Probe) (celsius float64, connected bool) {
	e, ok := s.histories[p].latest()
	if !ok || !e.Connected {
		return 0, false
	}
	return e.Celsius, true
}

// IsConnected reports the most recent connection state for a probe.
func (s *Sampler) IsConnected(p Probe) bool {
	_, connected := s.Temperature(p)
	return connected
}

// RiseRate returns the probe's derivative in degrees Celsius per minute:
// the oldest valid entry whose age relative to the newest sample lies in
// [30s, 300s], differenced against the newest sample. Returns 0 when no
// entry falls in that window.
func (s *Sampler) RiseRate(p Probe) float64 {
	newest, ok := s.histories[p].latest()
	if !ok || !newest.Connected {
		return 0
	}

	var oldest Entry
	found := false
	s.histories[p].forEach(func(e Entry) {
		if found || !e.Connected {
			return
		}
		age := newest.AtMS - e.AtMS
		if age < riseRateMinSpanMS || age > riseRateMaxSpanMS {
			return
		}
		oldest = e
		found = true
	})
	if !found {
		return 0
	}

	dtMinutes := float64(newest.AtMS-oldest.AtMS) / 60_000.0
	if dtMinutes <= 0 {
		return 0
	}
	return (newest.Celsius - oldest.Celsius) / dtMinutes
}
