// Package session ties the serial reader, the parser and the plot state
// together behind a single polling surface.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"serialmonitor/config"
	"serialmonitor/plot"
	"serialmonitor/serial"
	"serialmonitor/telemetry"
)

// StoredDuration is the minimum retention of numeric history, in seconds.
const StoredDuration = 60.0

var (
	ErrNotIdle  = errors.New("session already connected")
	ErrNoDevice = errors.New("no device selected")
	ErrNoPlot   = errors.New("no such plot")
)

// State is the session lifecycle state.
type State int

const (
	// StateIdle means no device handle is held.
	StateIdle State = iota
	// StateReading means the reader worker is running.
	StateReading
)

func (s State) String() string {
	if s == StateReading {
		return "reading"
	}
	return "idle"
}

// Severity classifies a notification surfaced by Tick.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Notification is a user-facing event produced while draining records.
type Notification struct {
	Severity Severity
	Message  string
	Time     time.Time
}

// lineSource is the reader surface the controller depends on. Production
// code uses serial.LineReader; tests substitute scripted sources.
type lineSource interface {
	Open(assertDTR bool) error
	BeginRead(trigger serial.StartTrigger) error
	PollNext() (serial.Record, bool)
	IsOpen() bool
	Close() error
}

// LineWriter receives every accepted raw line, typically an output.LineSink.
type LineWriter interface {
	WriteLine(line string) error
}

// Controller owns one acquisition session: connection lifecycle, record
// draining, schema parsing, slot/plot bookkeeping. All methods are safe for
// concurrent use; the expected pattern is a single ticking goroutine plus
// read-only status queries.
type Controller struct {
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	conn       config.ConnectionConfig
	plotCfg    plot.Config
	slots      []plot.Slot
	plots      []*plot.Plot
	nextPlotID int

	reader    lineSource
	newReader func(serial.Config, *slog.Logger) lineSource

	parser  *telemetry.Parser
	store   *plot.Store
	console *plot.Console
	sink    LineWriter

	paused bool
}

// NewController builds a controller from a validated configuration. Plot
// identifiers from a previous run are honored; the ID arena is reseeded
// past the largest one so new plots never collide.
func NewController(cfg *config.Config, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	plotCfg, err := cfg.Plot.Settings()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		logger:     logger,
		conn:       cfg.Connection,
		plotCfg:    plotCfg,
		nextPlotID: 1,
		parser:     telemetry.NewParser(),
		store:      plot.NewStore(),
		console:    plot.NewConsole(plot.DefaultConsoleLines),
	}
	c.newReader = func(sc serial.Config, l *slog.Logger) lineSource {
		return serial.NewLineReader(sc, l)
	}

	c.slots = append(c.slots, cfg.Slots...)
	for i := range cfg.Plots {
		p := cfg.Plots[i]
		c.plots = append(c.plots, &p)
		if p.ID >= c.nextPlotID {
			c.nextPlotID = p.ID + 1
		}
	}
	if len(c.plots) == 0 {
		c.plots = append(c.plots, &plot.Plot{ID: c.allocPlotID(), Name: "Plot 1"})
	}

	c.store.SetRetention(retentionFor(plotCfg.Window))
	return c, nil
}

// retentionFor keeps at least two window periods of history so a cyclic
// query always finds its previous sweep, with a floor for generous manual
// window changes.
func retentionFor(window float64) float64 {
	if r := 2 * window; r > StoredDuration {
		return r
	}
	return StoredDuration
}

func (c *Controller) allocPlotID() int {
	id := c.nextPlotID
	c.nextPlotID++
	return id
}

// SetSink installs the raw-line output. Pass nil to disable.
func (c *Controller) SetSink(sink LineWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Connect opens the configured device and starts the reader worker. On any
// failure the session stays idle with no handle held.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrNotIdle
	}
	if c.conn.Device == config.NoDevice || c.conn.Device == "" {
		return ErrNoDevice
	}

	sc, err := c.conn.SerialConfig()
	if err != nil {
		return err
	}
	trigger, err := c.conn.StartTrigger()
	if err != nil {
		return err
	}

	reader := c.newReader(sc, c.logger)
	if err := reader.Open(c.conn.AssertDTR()); err != nil {
		return err
	}
	if err := reader.BeginRead(trigger); err != nil {
		reader.Close()
		return err
	}

	c.reader = reader
	c.state = StateReading
	c.paused = false

	c.logger.Info("Connected",
		"device", c.conn.Device,
		"baud_rate", c.conn.BaudRate,
		"trigger", trigger.Mode.String())
	return nil
}

// Disconnect stops the worker, releases the device and clears the numeric
// state for the next connection. Slot names and plot layout persist.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Controller) teardownLocked() {
	if c.reader != nil {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Error closing reader", "error", err)
		}
		c.reader = nil
	}
	if c.state != StateIdle {
		c.logger.Info("Disconnected", "device", c.conn.Device)
	}
	c.state = StateIdle
	c.paused = false
	c.parser.Reset()
	c.store.Clear()
	c.console.Clear()
	for i := range c.slots {
		c.slots[i].Value = 0
	}
}

// Tick drains every queued record, ingesting accepted lines and converting
// stream errors into notifications. A fatal record tears the session down.
// While paused, lines are drained and discarded so the queue stays bounded.
func (c *Controller) Tick() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reader == nil {
		return nil
	}

	var notes []Notification
	for {
		rec, ok := c.reader.PollNext()
		if !ok {
			break
		}

		if rec.Err != nil {
			sev := SeverityError
			msg := fmt.Sprintf("stream error on %s: %v", c.conn.Device, rec.Err)
			if errors.Is(rec.Err, serial.ErrEndOfStream) {
				sev = SeverityWarning
				msg = fmt.Sprintf("%s closed the stream", c.conn.Device)
			}
			notes = append(notes, Notification{Severity: sev, Message: msg, Time: time.Now()})
			c.teardownLocked()
			break
		}

		if c.paused {
			continue
		}
		notes = append(notes, c.ingestLocked(rec.Line)...)
	}
	return notes
}

// ingestLocked routes one accepted line: console and sink always see it;
// numeric history only when it parses against the schema.
func (c *Controller) ingestLocked(line serial.Line) []Notification {
	c.console.Add(line.T, line.Content)
	if c.sink != nil {
		if err := c.sink.WriteLine(line.Content); err != nil {
			c.logger.Warn("Sink write failed", "error", err)
		}
	}

	values, err := c.parser.Parse(line.Content)
	if err != nil {
		return []Notification{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("dropped line at t=%.2f: %v", line.T, err),
			Time:     time.Now(),
		}}
	}
	if len(values) == 0 {
		return nil
	}

	c.store.Append(line.T, values)
	c.syncSlotsLocked()
	return nil
}

func (c *Controller) syncSlotsLocked() {
	c.slots = plot.EnsureSlots(c.slots, c.store.SeriesCount())
	for i := range c.slots {
		if smp, ok := c.store.Latest(i); ok {
			c.slots[i].Value = smp.V
		}
	}
}

// Pause suspends ingestion of accepted lines without releasing the device.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume re-enables ingestion.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetPlotConfig replaces the shared window/scale configuration and adjusts
// retention to cover the new window.
func (c *Controller) SetPlotConfig(cfg plot.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plotCfg = cfg
	c.store.SetRetention(retentionFor(cfg.Window))
}

// PlotConfig returns the shared window/scale configuration.
func (c *Controller) PlotConfig() plot.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plotCfg
}

// AddPlot appends a new plot named after its identifier. When a console
// plot exists it stays last.
func (c *Controller) AddPlot() *plot.Plot {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.allocPlotID()
	p := &plot.Plot{ID: id, Name: fmt.Sprintf("Plot %d", id)}

	n := len(c.plots)
	if n > 0 && c.plots[n-1].Console {
		c.plots = append(c.plots[:n-1], p, c.plots[n-1])
	} else {
		c.plots = append(c.plots, p)
	}
	return p
}

// AddConsole appends the console plot. At most one exists; asking again
// returns the existing one.
func (c *Controller) AddConsole() *plot.Plot {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.plots {
		if p.Console {
			return p
		}
	}
	p := &plot.Plot{ID: c.allocPlotID(), Name: "Console", Console: true}
	c.plots = append(c.plots, p)
	return p
}

// RemovePlot removes the plot with the given identifier.
func (c *Controller) RemovePlot(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.plots {
		if p.ID == id {
			c.plots = append(c.plots[:i], c.plots[i+1:]...)
			return nil
		}
	}
	return ErrNoPlot
}

// ResetPlot clears a console plot's lines, or a numeric plot's scale
// accumulator.
func (c *Controller) ResetPlot(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.plots {
		if p.ID != id {
			continue
		}
		if p.Console {
			c.console.Clear()
		} else {
			p.ResetScale()
		}
		return nil
	}
	return ErrNoPlot
}

// Plots returns a snapshot of the plot layout, in display order.
func (c *Controller) Plots() []plot.Plot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]plot.Plot, 0, len(c.plots))
	for _, p := range c.plots {
		out = append(out, *p)
	}
	return out
}

// View computes the windowed view of the plot with the given identifier.
func (c *Controller) View(id int) (plot.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.plots {
		if p.ID == id {
			return p.View(c.store, c.plotCfg), nil
		}
	}
	return plot.View{}, ErrNoPlot
}

// Slots returns a snapshot of the slot metadata with live values.
func (c *Controller) Slots() []plot.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]plot.Slot(nil), c.slots...)
}

// ConsoleLines returns a snapshot of the retained console lines.
func (c *Controller) ConsoleLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.console.Lines()...)
}

// SetDevice updates the configured device. Takes effect on the next
// Connect.
func (c *Controller) SetDevice(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Device = device
}

// Connection returns the active connection configuration.
func (c *Controller) Connection() config.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Devices enumerates the serial devices currently present.
func (c *Controller) Devices() ([]string, error) {
	return serial.ListDevices()
}

// ResetPortIfMissing clears the configured device when it is no longer
// present, so a stale selection does not survive an unplug.
func (c *Controller) ResetPortIfMissing() {
	devices, err := serial.ListDevices()
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn.Device == config.NoDevice {
		return
	}
	for _, d := range devices {
		if d == c.conn.Device {
			return
		}
	}
	c.logger.Warn("Configured device not present, resetting", "device", c.conn.Device)
	c.conn.Device = config.NoDevice
}

// Status is a point-in-time snapshot for the monitoring surface.
type Status struct {
	State       string  `json:"state"`
	Device      string  `json:"device"`
	Paused      bool    `json:"paused"`
	Columns     int     `json:"columns"`
	SeriesCount int     `json:"series_count"`
	LatestTime  float64 `json:"latest_time"`
	PlotCount   int     `json:"plot_count"`
	ConsoleLen  int     `json:"console_len"`
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest, _ := c.store.LatestTime()
	return Status{
		State:       c.state.String(),
		Device:      c.conn.Device,
		Paused:      c.paused,
		Columns:     c.parser.Columns(),
		SeriesCount: c.store.SeriesCount(),
		LatestTime:  latest,
		PlotCount:   len(c.plots),
		ConsoleLen:  c.console.Len(),
	}
}
