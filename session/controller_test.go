package session

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"serialmonitor/config"
	"serialmonitor/plot"
	"serialmonitor/serial"
)

// fakeSource is a scripted lineSource: records queued up front, drained by
// the controller's Tick.
type fakeSource struct {
	openErr  error
	beginErr error

	records []serial.Record

	opened  bool
	reading bool
	closed  bool
	dtr     bool
	trigger serial.StartTrigger
}

func (f *fakeSource) Open(assertDTR bool) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	f.dtr = assertDTR
	return nil
}

func (f *fakeSource) BeginRead(trigger serial.StartTrigger) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.reading = true
	f.trigger = trigger
	return nil
}

func (f *fakeSource) PollNext() (serial.Record, bool) {
	if len(f.records) == 0 {
		return serial.Record{}, false
	}
	rec := f.records[0]
	f.records = f.records[1:]
	return rec, true
}

func (f *fakeSource) IsOpen() bool { return f.opened && !f.closed }

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) feed(t float64, content string) {
	f.records = append(f.records, serial.Record{Line: serial.Line{T: t, Content: content}})
}

func (f *fakeSource) fail(err error) {
	f.records = append(f.records, serial.Record{Err: err})
}

func newTestController(t *testing.T) (*Controller, *fakeSource) {
	t.Helper()

	cfg := config.Default()
	cfg.Connection.Device = "/dev/ttyUSB0"

	c, err := NewController(cfg, nil)
	require.NoError(t, err)

	src := &fakeSource{}
	c.newReader = func(serial.Config, *slog.Logger) lineSource { return src }
	return c, src
}

func TestConnectRequiresDevice(t *testing.T) {
	cfg := config.Default()
	c, err := NewController(cfg, nil)
	require.NoError(t, err)

	require.ErrorIs(t, c.Connect(), ErrNoDevice)
	require.Equal(t, StateIdle, c.State())
}

func TestConnectLifecycle(t *testing.T) {
	c, src := newTestController(t)

	require.NoError(t, c.Connect())
	require.Equal(t, StateReading, c.State())
	require.True(t, src.opened)
	require.True(t, src.reading)
	require.True(t, src.dtr)
	require.Equal(t, serial.TriggerDelay, src.trigger.Mode)

	require.ErrorIs(t, c.Connect(), ErrNotIdle)

	c.Disconnect()
	require.Equal(t, StateIdle, c.State())
	require.True(t, src.closed)
}

func TestConnectOpenFailureStaysIdle(t *testing.T) {
	c, src := newTestController(t)
	src.openErr = errors.New("permission denied")

	require.Error(t, c.Connect())
	require.Equal(t, StateIdle, c.State())
}

func TestConnectBeginReadFailureClosesPort(t *testing.T) {
	c, src := newTestController(t)
	src.beginErr = errors.New("busy")

	require.Error(t, c.Connect())
	require.Equal(t, StateIdle, c.State())
	require.True(t, src.closed)
}

func TestTickIngestsLines(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	src.feed(0.1, "1.0, 10.0")
	src.feed(0.2, "2.0, 20.0")

	notes := c.Tick()
	require.Empty(t, notes)

	st := c.Status()
	require.Equal(t, 2, st.Columns)
	require.Equal(t, 2, st.SeriesCount)
	require.Equal(t, 0.2, st.LatestTime)

	slots := c.Slots()
	require.Len(t, slots, 2)
	require.Equal(t, "Slot 1", slots[0].Name)
	require.Equal(t, 2.0, slots[0].Value)
	require.Equal(t, 20.0, slots[1].Value)

	lines := c.ConsoleLines()
	require.Len(t, lines, 2)
	require.Equal(t, "[0.10] > 1.0, 10.0", lines[0])
}

func TestTickColumnMismatchIsWarning(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	src.feed(0.1, "1.0, 10.0")
	src.feed(0.2, "nonsense")
	src.feed(0.3, "3.0, 30.0")

	notes := c.Tick()
	require.Len(t, notes, 1)
	require.Equal(t, SeverityWarning, notes[0].Severity)

	// The session survives, the schema is intact, and the offending line
	// still reached the console.
	st := c.Status()
	require.Equal(t, "reading", st.State)
	require.Equal(t, 2, st.Columns)
	require.Len(t, c.ConsoleLines(), 3)
	require.Equal(t, 0.3, st.LatestTime)
}

func TestTickFatalErrorTearsDown(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	src.feed(0.1, "1.0")
	src.fail(errors.New("device unplugged"))

	notes := c.Tick()
	require.Len(t, notes, 1)
	require.Equal(t, SeverityError, notes[0].Severity)

	require.Equal(t, StateIdle, c.State())
	require.True(t, src.closed)

	// Numeric state is cleared for the next connection.
	st := c.Status()
	require.Equal(t, 0, st.Columns)
	require.Equal(t, 0, st.SeriesCount)
	require.Equal(t, 0, st.ConsoleLen)
}

func TestTickEndOfStreamIsWarning(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	src.fail(serial.ErrEndOfStream)

	notes := c.Tick()
	require.Len(t, notes, 1)
	require.Equal(t, SeverityWarning, notes[0].Severity)
	require.Equal(t, StateIdle, c.State())
}

func TestPauseDiscardsLines(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	c.Pause()
	src.feed(0.1, "1.0")
	require.Empty(t, c.Tick())
	require.Equal(t, 0, c.Status().SeriesCount)

	c.Resume()
	src.feed(0.2, "2.0")
	require.Empty(t, c.Tick())
	require.Equal(t, 1, c.Status().SeriesCount)
}

func TestSinkReceivesAcceptedLines(t *testing.T) {
	c, src := newTestController(t)

	var got []string
	c.SetSink(writerFunc(func(line string) error {
		got = append(got, line)
		return nil
	}))

	require.NoError(t, c.Connect())
	src.feed(0.1, "1.0, 2.0")
	src.feed(0.2, "not numbers at all")
	c.Tick()

	// Unparseable lines still reach the sink; only numeric history skips them.
	require.Equal(t, []string{"1.0, 2.0", "not numbers at all"}, got)
}

type writerFunc func(string) error

func (f writerFunc) WriteLine(line string) error { return f(line) }

func TestPlotManagement(t *testing.T) {
	cfg := config.Default()
	c, err := NewController(cfg, nil)
	require.NoError(t, err)

	// A fresh session starts with one default plot.
	plots := c.Plots()
	require.Len(t, plots, 1)
	require.Equal(t, "Plot 1", plots[0].Name)

	console := c.AddConsole()
	require.True(t, console.Console)
	require.Same(t, console, c.AddConsole())

	// New plots are inserted before the console.
	p := c.AddPlot()
	plots = c.Plots()
	require.Len(t, plots, 3)
	require.Equal(t, p.ID, plots[1].ID)
	require.True(t, plots[2].Console)

	require.NoError(t, c.RemovePlot(p.ID))
	require.ErrorIs(t, c.RemovePlot(p.ID), ErrNoPlot)
	require.Len(t, c.Plots(), 2)
}

func TestPlotIDsReseededFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Plots = []plot.Plot{
		{ID: 3, Name: "Plot 3"},
		{ID: 7, Name: "Renamed"},
	}

	c, err := NewController(cfg, nil)
	require.NoError(t, err)

	p := c.AddPlot()
	require.Equal(t, 8, p.ID)
	require.Equal(t, "Plot 8", p.Name)
}

func TestResetPlot(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())
	src.feed(0.1, "1.0")
	c.Tick()

	console := c.AddConsole()
	require.Equal(t, 1, c.Status().ConsoleLen)
	require.NoError(t, c.ResetPlot(console.ID))
	require.Equal(t, 0, c.Status().ConsoleLen)

	require.ErrorIs(t, c.ResetPlot(999), ErrNoPlot)
}

func TestViewReflectsIngestedData(t *testing.T) {
	c, src := newTestController(t)
	require.NoError(t, c.Connect())

	src.feed(0.0, "1.0")
	src.feed(1.0, "2.0")
	c.Tick()

	plots := c.Plots()
	v, err := c.View(plots[0].ID)
	require.NoError(t, err)
	require.Len(t, v.Series, 1)
	require.Len(t, v.Series[0].Samples, 2)

	_, err = c.View(999)
	require.ErrorIs(t, err, ErrNoPlot)
}

func TestSetPlotConfigAdjustsRetention(t *testing.T) {
	cfg := config.Default()
	c, err := NewController(cfg, nil)
	require.NoError(t, err)

	c.SetPlotConfig(plot.Config{Mode: plot.Cyclic, Window: 45, Scale: plot.ScaleAuto})
	require.Equal(t, plot.Cyclic, c.PlotConfig().Mode)
	require.Equal(t, 45.0, c.PlotConfig().Window)
}
