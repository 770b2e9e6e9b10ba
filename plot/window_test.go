package plot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rampSeries(from, to, step float64) []Sample {
	var out []Sample
	for t := from; t <= to; t += step {
		out = append(out, Sample{T: t, V: t * 10})
	}
	return out
}

func times(samples []Sample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.T)
	}
	return out
}

func TestContinuousWindowExactSet(t *testing.T) {
	series := rampSeries(0, 10, 1)

	visible := Visible(series, Continuous, 3, 10)
	require.Equal(t, []float64{7, 8, 9, 10}, times(visible))

	// Boundary sample (tNow - t == W) is included.
	visible = Visible(series, Continuous, 10, 10)
	require.Len(t, visible, 11)
}

func TestContinuousWindowShrinkMonotonic(t *testing.T) {
	series := rampSeries(0, 20, 0.5)

	prev := len(Visible(series, Continuous, 20, 20))
	for w := 19.0; w >= 0.5; w -= 0.5 {
		n := len(Visible(series, Continuous, w, 20))
		require.LessOrEqual(t, n, prev, "window %v", w)
		prev = n
	}
}

func TestCyclicWindowSweeps(t *testing.T) {
	// History t=0..24 step 1, window 10, query at tNow=24:
	// sub=4, split=20, start=14. New sweep (20,24] at original time, old
	// sweep [14,20) remapped one period forward to [24,30).
	series := rampSeries(0, 24, 1)

	visible := Visible(series, Cyclic, 10, 24)
	require.Equal(t, []float64{21, 22, 23, 24, 24, 25, 26, 27, 28, 29}, times(visible))

	// Remapped samples keep their original values.
	last := visible[len(visible)-1]
	require.Equal(t, 190.0, last.V)

	require.Equal(t, 20.0, SweepBoundary(24, 10))
}

func TestCyclicWindowIdempotent(t *testing.T) {
	series := rampSeries(0, 17, 0.25)

	a := Visible(series, Cyclic, 5, 17)
	b := Visible(series, Cyclic, 5, 17)
	require.Equal(t, a, b)
}

func TestCyclicExactBoundary(t *testing.T) {
	// tNow on a sweep boundary: sub=0, split=tNow, start=tNow-W. The
	// whole previous sweep is remapped, nothing is "new".
	series := rampSeries(0, 20, 1)

	visible := Visible(series, Cyclic, 10, 20)
	require.Equal(t, []float64{20, 21, 22, 23, 24, 25, 26, 27, 28, 29}, times(visible))
}

func TestVisibleDegenerate(t *testing.T) {
	require.Nil(t, Visible(nil, Continuous, 5, 10))
	require.Nil(t, Visible(rampSeries(0, 5, 1), Continuous, 0, 5))
	require.Nil(t, Visible(rampSeries(0, 5, 1), Cyclic, 0, 5))
}
