package plot

import (
	"fmt"
	"math"
)

// Mode selects how the visible subset of a series is computed.
type Mode int

const (
	// Continuous shows a trailing window of the most recent samples.
	Continuous Mode = iota
	// Cyclic simulates an oscilloscope sweep of period equal to the window
	// length, wrapping the trace instead of scrolling it.
	Cyclic
)

func (m Mode) String() string {
	if m == Cyclic {
		return "cyclic"
	}
	return "continuous"
}

// ParseMode maps a configuration string to a Mode value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "continuous":
		return Continuous, nil
	case "cyclic":
		return Cyclic, nil
	}
	return Continuous, fmt.Errorf("invalid plot mode %q, must be one of: continuous, cyclic", s)
}

// Visible computes the bounded visible subset of a series for the given
// mode, window length (seconds) and latest timestamp. The full history is
// rescanned per query; retention keeps that bounded.
func Visible(series []Sample, mode Mode, window, tNow float64) []Sample {
	if window <= 0 || len(series) == 0 {
		return nil
	}

	var out []Sample
	switch mode {
	case Cyclic:
		sub := math.Mod(tNow, window)
		split := tNow - sub
		start := split - (window - sub)

		// New partial sweep, drawn at its original time.
		for _, smp := range series {
			if smp.T > split {
				out = append(out, smp)
			}
		}
		// Previous sweep, shifted forward one full period so it renders
		// contiguously to the right of the new sweep.
		for _, smp := range series {
			if smp.T >= start && smp.T < split {
				out = append(out, Sample{T: smp.T + window, V: smp.V})
			}
		}
	default:
		for _, smp := range series {
			if tNow-smp.T <= window {
				out = append(out, smp)
			}
		}
	}
	return out
}

// SweepBoundary returns the most recent sweep-cycle boundary at or before
// tNow. The cyclic-mode marker is drawn at tNow itself; both derive from
// the same modulus.
func SweepBoundary(tNow, window float64) float64 {
	if window <= 0 {
		return tNow
	}
	return tNow - math.Mod(tNow, window)
}
