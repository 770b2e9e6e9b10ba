package serial

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Errors returned by LineReader operations. Contract violations (already
// open, not open, already reading) are returned rather than panicking since
// the controller runs on a single polling thread.
var (
	ErrAlreadyOpen         = errors.New("port already open")
	ErrAlreadyReading      = errors.New("already reading")
	ErrPortNotOpen         = errors.New("port not open")
	ErrWriteDTR            = errors.New("failed to assert DTR")
	ErrUnsupportedDataBits = errors.New("unsupported data bits")
	ErrUnsupportedStopBits = errors.New("unsupported stop bits")
	ErrEndOfStream         = errors.New("end of stream")
)

// DecodeError indicates a byte outside the accepted text range arrived on
// the wire, usually a wrong baud rate or a binary-mode device.
type DecodeError struct {
	Byte byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("non-text byte 0x%02X in stream", e.Byte)
}

// Parity is the parity bit setting for a connection.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "none"
	}
}

// FlowControl is the flow control setting for a connection. It is carried
// through configuration for device compatibility; the underlying driver
// accepts all variants.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowSoftware
	FlowHardware
)

func (f FlowControl) String() string {
	switch f {
	case FlowSoftware:
		return "software"
	case FlowHardware:
		return "hardware"
	default:
		return "none"
	}
}

// TriggerMode selects when accepted lines start being reported.
type TriggerMode int

const (
	// TriggerImmediate reports every line from the first byte.
	TriggerImmediate TriggerMode = iota
	// TriggerDelay reports lines once the elapsed time since worker start
	// reaches the configured delay. Reported timestamps are offset so that
	// t=0 aligns with the trigger time.
	TriggerDelay
	// TriggerMessage reports lines after a line ending with the configured
	// text has been observed. The matching line itself is not reported.
	TriggerMessage
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerDelay:
		return "delay"
	case TriggerMessage:
		return "message"
	default:
		return "immediate"
	}
}

// StartTrigger is the start policy for one reading session. It is fixed for
// the lifetime of the session; changing it requires reopening.
type StartTrigger struct {
	Mode    TriggerMode
	Delay   time.Duration
	Message string
}

// Line is one accepted record: elapsed seconds since trigger plus the
// trimmed content.
type Line struct {
	T       float64
	Content string
}

// Record is a single queue entry: either an accepted line or a fatal
// stream error.
type Record struct {
	Line Line
	Err  error
}

// DefaultReadTimeout bounds how long the worker blocks in a single read so
// the stop flag is observed with bounded latency.
const DefaultReadTimeout = 200 * time.Millisecond

// Config describes how to open a serial device.
type Config struct {
	Device      string
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    int
	FlowControl FlowControl
	ReadTimeout time.Duration
}

// Port is the device handle the reader works against. Satisfied by
// go.bug.st/serial ports; tests substitute scripted implementations.
type Port interface {
	io.Reader
	io.Closer
	SetDTR(dtr bool) error
	SetReadTimeout(t time.Duration) error
}

// LineReader owns an open serial device and a background worker that frames
// newline-terminated records, applies the start trigger, timestamps accepted
// records and publishes them to a queue drained by PollNext.
type LineReader struct {
	config Config
	logger *slog.Logger
	dial   func() (Port, error)

	mu      sync.Mutex
	port    Port
	reading bool

	stop atomic.Bool
	wg   sync.WaitGroup

	qmu     sync.Mutex
	records []Record
}

// NewLineReader creates a LineReader for the given device configuration.
// No I/O happens until Open.
func NewLineReader(cfg Config, logger *slog.Logger) *LineReader {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &LineReader{
		config: cfg,
		logger: logger,
	}
	r.dial = r.openPort
	return r
}

// openPort opens the device via go.bug.st/serial with the configured mode.
func (r *LineReader) openPort() (Port, error) {
	mode := &serial.Mode{
		BaudRate: r.config.BaudRate,
		DataBits: r.config.DataBits,
	}

	switch r.config.Parity {
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	switch r.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	port, err := serial.Open(r.config.Device, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Open opens the device and asserts the DTR line per the flag. The handle is
// held but no reading occurs until BeginRead.
func (r *LineReader) Open(assertDTR bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil || r.reading {
		return ErrAlreadyOpen
	}

	switch r.config.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedDataBits, r.config.DataBits)
	}
	switch r.config.StopBits {
	case 1, 2:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedStopBits, r.config.StopBits)
	}

	port, err := r.dial()
	if err != nil {
		return fmt.Errorf("open %s: %w", r.config.Device, err)
	}

	if err := port.SetDTR(assertDTR); err != nil {
		port.Close()
		return fmt.Errorf("%w: %v", ErrWriteDTR, err)
	}

	if err := port.SetReadTimeout(r.config.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", r.config.Device, err)
	}

	r.port = port
	return nil
}

// BeginRead spawns the worker goroutine. The device handle is owned by the
// worker from here until teardown.
func (r *LineReader) BeginRead(trigger StartTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reading {
		return ErrAlreadyReading
	}
	if r.port == nil {
		return ErrPortNotOpen
	}

	port := r.port
	r.port = nil
	r.reading = true
	r.stop.Store(false)

	r.wg.Add(1)
	go r.readLoop(port, trigger)

	return nil
}

// readLoop is the single background worker: byte-wise framing, trigger
// evaluation, timestamping, queue publishing. Byte-wise accumulation lets a
// decode failure be detected per byte instead of corrupting a whole record.
func (r *LineReader) readLoop(port Port, trigger StartTrigger) {
	defer r.wg.Done()
	defer port.Close()
	defer func() {
		r.mu.Lock()
		r.reading = false
		r.mu.Unlock()
		r.logger.Debug("reader worker stopped", "device", r.config.Device)
	}()

	r.logger.Debug("reader worker started",
		"device", r.config.Device,
		"trigger", trigger.Mode.String())

	start := time.Now()
	startOff := 0.0
	if trigger.Mode == TriggerDelay {
		startOff = trigger.Delay.Seconds()
	}
	started := trigger.Mode == TriggerImmediate

	buf := make([]byte, 0, 256)
	one := make([]byte, 1)

	for {
		if r.stop.Load() {
			return
		}

		n, err := port.Read(one)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.enqueue(Record{Err: ErrEndOfStream})
			} else {
				r.enqueue(Record{Err: fmt.Errorf("read %s: %w", r.config.Device, err)})
			}
			return
		}
		if n == 0 {
			// Read timeout; loop back so the stop flag is rechecked.
			continue
		}

		b := one[0]
		if !textByte(b) {
			r.enqueue(Record{Err: &DecodeError{Byte: b}})
			return
		}
		if b != '\n' {
			buf = append(buf, b)
			continue
		}

		rawLen := len(buf)
		content := strings.TrimSpace(string(buf))
		buf = buf[:0]
		t := time.Since(start).Seconds()

		switch trigger.Mode {
		case TriggerDelay:
			if !started && t >= trigger.Delay.Seconds() {
				started = true
			}
		case TriggerMessage:
			if !started {
				// The matching line arms the trigger but is not reported.
				if strings.HasSuffix(content, trigger.Message) {
					started = true
				}
				continue
			}
		}
		if !started {
			continue
		}

		if rawLen == 0 {
			r.enqueue(Record{Err: ErrEndOfStream})
			return
		}

		r.enqueue(Record{Line: Line{T: t - startOff, Content: content}})
	}
}

// textByte reports whether b is acceptable line content: printable ASCII
// plus TAB, CR and LF. Anything else is treated as a decode failure.
func textByte(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == 0x09 || b == 0x0A || b == 0x0D
}

func (r *LineReader) enqueue(rec Record) {
	r.qmu.Lock()
	r.records = append(r.records, rec)
	r.qmu.Unlock()
}

// PollNext returns the oldest queued record if one is present. It never
// blocks the caller.
func (r *LineReader) PollNext() (Record, bool) {
	r.qmu.Lock()
	defer r.qmu.Unlock()

	if len(r.records) == 0 {
		return Record{}, false
	}
	rec := r.records[0]
	r.records = r.records[1:]
	return rec, true
}

// IsOpen reports whether a handle is held or a worker is running.
func (r *LineReader) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port != nil || r.reading
}

// Close requests a cooperative stop, joins the worker and releases the
// device handle. No further records are queued after Close returns.
func (r *LineReader) Close() error {
	r.stop.Store(true)
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		err := r.port.Close()
		r.port = nil
		return err
	}
	return nil
}
