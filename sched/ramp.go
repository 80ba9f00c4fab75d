package sched

// rampSegment is shared by the scheduler's own tests and any future
// tooling that wants to drive a synthetic sensor trace; kept in the
// package (not _test.go) so it is a normal, reusable type rather than
// test-only scaffolding duplicated per test file.
type rampSegment struct {
	FromCelsius     float64 `yaml:"from_celsius"`
	ToCelsius       float64 `yaml:"to_celsius"`
	RateCelsiusPerS float64 `yaml:"rate_celsius_per_s"`
	HoldSeconds     float64 `yaml:"hold_seconds"`
}

// ValueAt returns the ramp's temperature after elapsedS seconds. Once
// elapsedS exceeds every segment's duration, the value holds at the
// last segment's ToCelsius indefinitely.
func ValueAt(segments []rampSegment, elapsedS float64) float64 {
	if len(segments) == 0 {
		return 0
	}
	remaining := elapsedS
	for _, seg := range segments {
		rampDur := 0.0
		if seg.RateCelsiusPerS != 0 {
			rampDur = absF(seg.ToCelsius-seg.FromCelsius) / seg.RateCelsiusPerS
		}
		segDur := rampDur + seg.HoldSeconds

		if remaining <= rampDur {
			if rampDur == 0 {
				return seg.FromCelsius
			}
			frac := remaining / rampDur
			return seg.FromCelsius + frac*(seg.ToCelsius-seg.FromCelsius)
		}
		if remaining <= segDur {
			return seg.ToCelsius
		}
		remaining -= segDur
	}
	return segments[len(segments)-1].ToCelsius
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
