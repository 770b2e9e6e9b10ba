package plot

import "fmt"

// DefaultConsoleLines caps the console's raw-line retention.
const DefaultConsoleLines = 512

// Console is a bounded text log of recent raw lines, kept alongside (not
// inside) the numeric store. Oldest lines are evicted first.
type Console struct {
	max   int
	lines []string
}

func NewConsole(max int) *Console {
	if max <= 0 {
		max = DefaultConsoleLines
	}
	return &Console{max: max}
}

// Add appends a raw line with its timestamp prefix, evicting the oldest
// line when the cap is reached.
func (c *Console) Add(t float64, line string) {
	c.lines = append(c.lines, fmt.Sprintf("[%.2f] > %s", t, line))
	if len(c.lines) > c.max {
		c.lines = c.lines[1:]
	}
}

// Lines returns the retained lines, oldest first.
func (c *Console) Lines() []string {
	return c.lines
}

// Len returns the number of retained lines.
func (c *Console) Len() int {
	return len(c.lines)
}

// Clear drops all retained lines.
func (c *Console) Clear() {
	c.lines = nil
}
