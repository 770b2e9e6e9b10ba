package plot

import "fmt"

// ScaleMode selects how a plot's vertical bounds are chosen. The horizontal
// bound is always fit to the visible window.
type ScaleMode int

const (
	// ScaleAuto delegates both axes to fit-to-visible-data.
	ScaleAuto ScaleMode = iota
	// ScaleAutoMax widens a persistent per-plot accumulator with the
	// visible range and never narrows it until explicitly reset.
	ScaleAutoMax
	// ScaleManual uses the configured bounds as supplied.
	ScaleManual
)

func (m ScaleMode) String() string {
	switch m {
	case ScaleAutoMax:
		return "auto_max"
	case ScaleManual:
		return "manual"
	default:
		return "auto"
	}
}

// ParseScaleMode maps a configuration string to a ScaleMode value.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch s {
	case "", "auto":
		return ScaleAuto, nil
	case "auto_max":
		return ScaleAutoMax, nil
	case "manual":
		return ScaleManual, nil
	}
	return ScaleAuto, fmt.Errorf("invalid scale mode %q, must be one of: auto, auto_max, manual", s)
}

// Bounds is a vertical axis range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Accumulator is the running (min, max) used by ScaleAutoMax. It only ever
// widens until Reset.
type Accumulator struct {
	valid bool
	min   float64
	max   float64
}

// Merge widens the accumulator with an observed range.
func (a *Accumulator) Merge(min, max float64) {
	if !a.valid {
		a.min, a.max = min, max
		a.valid = true
		return
	}
	if min < a.min {
		a.min = min
	}
	if max > a.max {
		a.max = max
	}
}

// Bounds returns the accumulated range, false if nothing merged yet.
func (a *Accumulator) Bounds() (Bounds, bool) {
	if !a.valid {
		return Bounds{}, false
	}
	return Bounds{Min: a.min, Max: a.max}, true
}

// Reset clears the accumulator; the next Merge restarts from the observed
// range.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Config is the window/scale configuration shared by all plots. Mutable at
// any time; takes effect on the next view query. The configuration surface
// is responsible for keeping YMin <= YMax.
type Config struct {
	Mode   Mode
	Window float64
	Scale  ScaleMode
	YMin   float64
	YMax   float64
}

// Plot is one logical plot: a named view over the shared series history
// with its own hidden set and scale accumulator.
type Plot struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Hidden  []int   `json:"hidden"`
	Height  float32 `json:"height"`
	Console bool    `json:"console"`

	acc Accumulator
}

// IsHidden reports whether series index i is hidden in this plot's legend.
func (p *Plot) IsHidden(i int) bool {
	for _, h := range p.Hidden {
		if h == i {
			return true
		}
	}
	return false
}

// ToggleHidden flips the hidden state of series index i. Hidden series are
// excluded from AutoMax but remain in the underlying history.
func (p *Plot) ToggleHidden(i int) {
	for j, h := range p.Hidden {
		if h == i {
			p.Hidden = append(p.Hidden[:j], p.Hidden[j+1:]...)
			return
		}
	}
	p.Hidden = append(p.Hidden, i)
}

// ResetScale clears the AutoMax accumulator.
func (p *Plot) ResetScale() {
	p.acc.Reset()
}

// SeriesView is the visible slice of one series within a plot view.
type SeriesView struct {
	Index   int      `json:"index"`
	Hidden  bool     `json:"hidden"`
	Samples []Sample `json:"samples"`
}

// View is the bounded result of one windowing query for a plot.
type View struct {
	Series    []SeriesView `json:"series"`
	YBounds   *Bounds      `json:"y_bounds,omitempty"`
	Marker    float64      `json:"marker,omitempty"`
	HasMarker bool         `json:"has_marker"`
}

// View computes the visible subset of every series per the active window
// mode, plus vertical bounds per the active scale mode. AutoMax merges the
// visible range of non-hidden series into the plot's accumulator.
func (p *Plot) View(store *Store, cfg Config) View {
	v := View{}

	tNow, ok := store.LatestTime()
	if !ok {
		if cfg.Scale == ScaleManual {
			v.YBounds = &Bounds{Min: cfg.YMin, Max: cfg.YMax}
		}
		return v
	}

	haveRange := false
	var lo, hi float64
	for i := 0; i < store.SeriesCount(); i++ {
		visible := Visible(store.Series(i), cfg.Mode, cfg.Window, tNow)
		hidden := p.IsHidden(i)
		v.Series = append(v.Series, SeriesView{Index: i, Hidden: hidden, Samples: visible})

		if hidden {
			continue
		}
		for _, smp := range visible {
			if !haveRange {
				lo, hi = smp.V, smp.V
				haveRange = true
				continue
			}
			if smp.V < lo {
				lo = smp.V
			}
			if smp.V > hi {
				hi = smp.V
			}
		}
	}

	switch cfg.Scale {
	case ScaleAutoMax:
		if haveRange {
			p.acc.Merge(lo, hi)
		}
		if b, ok := p.acc.Bounds(); ok {
			v.YBounds = &b
		}
	case ScaleManual:
		v.YBounds = &Bounds{Min: cfg.YMin, Max: cfg.YMax}
	}

	if cfg.Mode == Cyclic {
		v.Marker = tNow
		v.HasMarker = true
	}
	return v
}
