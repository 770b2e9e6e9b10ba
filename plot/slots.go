package plot

import (
	"fmt"
	"math"
)

// Slot is per-series display metadata: a stable index, a user-editable
// name and a deterministic default color, plus the most recent value for
// live readouts. Slots are created lazily and cleared in bulk on
// disconnect.
type Slot struct {
	Index int        `json:"index"`
	Name  string     `json:"name"`
	Color [3]float32 `json:"color"`
	Value float64    `json:"-"`
}

// DefaultSlotColor derives the default color for slot index i by stepping
// the hue in 0.15 increments around the wheel.
func DefaultSlotColor(i int) [3]float32 {
	h := float32(math.Mod(float64(i)*0.15, 1.0))
	return rgbFromHSV(h, 0.8, 0.8)
}

// EnsureSlots appends default slots until at least n exist.
func EnsureSlots(slots []Slot, n int) []Slot {
	for i := len(slots); i < n; i++ {
		slots = append(slots, Slot{
			Index: i,
			Name:  fmt.Sprintf("Slot %d", i+1),
			Color: DefaultSlotColor(i),
		})
	}
	return slots
}

// rgbFromHSV converts hue/saturation/value in [0,1] to RGB in [0,1].
func rgbFromHSV(h, s, v float32) [3]float32 {
	i := int(h * 6)
	f := h*6 - float32(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch i % 6 {
	case 0:
		return [3]float32{v, t, p}
	case 1:
		return [3]float32{q, v, p}
	case 2:
		return [3]float32{p, v, t}
	case 3:
		return [3]float32{p, q, v}
	case 4:
		return [3]float32{t, p, v}
	default:
		return [3]float32{v, p, q}
	}
}
