package output

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LineSink writes accepted raw lines to a rotating capture file and,
// optionally, publishes each line to NATS.
type LineSink struct {
	device      string
	logWriter   *lumberjack.Logger
	natsConn    *nats.Conn
	natsSubject string
	logger      *slog.Logger
	natsEnabled bool
	mu          sync.Mutex
}

// LineSinkConfig contains configuration for LineSink
type LineSinkConfig struct {
	Device        string
	BasePath      string
	MaxSizeMB     int
	MaxBackups    int
	Compress      bool
	NATSConn      *nats.Conn
	SubjectPrefix string
	Logger        *slog.Logger
}

// NewLineSink creates a new LineSink. The capture file is named after the
// device, with path separators flattened (e.g. /dev/ttyUSB0 -> dev-ttyUSB0.log).
func NewLineSink(cfg *LineSinkConfig) *LineSink {
	name := strings.Trim(strings.ReplaceAll(cfg.Device, "/", "-"), "-")
	logPath := filepath.Join(cfg.BasePath, name+".log")

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}

	subject := ""
	if cfg.NATSConn != nil {
		subject = cfg.SubjectPrefix + ".lines." + name
	}

	s := &LineSink{
		device:      cfg.Device,
		logWriter:   logWriter,
		natsConn:    cfg.NATSConn,
		natsSubject: subject,
		logger:      cfg.Logger,
		natsEnabled: cfg.NATSConn != nil,
	}

	cfg.Logger.Info("Initialized line sink",
		"device", cfg.Device,
		"log_path", logPath,
		"nats_subject", subject,
		"nats_enabled", s.natsEnabled)

	return s
}

// WriteLine writes a single line to the capture file and to NATS when
// enabled. A trailing newline is added if missing. The file is the primary
// output; a publish failure does not mask a successful file write.
func (s *LineSink) WriteLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error

	if _, err := io.WriteString(s.logWriter, line); err != nil {
		s.logger.Error("Failed to write to capture file",
			"device", s.device,
			"error", err)
		lastErr = err
	}

	if s.natsEnabled {
		if err := s.natsConn.Publish(s.natsSubject, []byte(line)); err != nil {
			s.logger.Warn("Failed to publish to NATS",
				"device", s.device,
				"subject", s.natsSubject,
				"error", err)
			if lastErr == nil {
				lastErr = err
			}
		}
	}

	return lastErr
}

// Close closes the capture file.
func (s *LineSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logWriter != nil {
		return s.logWriter.Close()
	}

	return nil
}

// NATSConnection manages NATS connection
type NATSConnection struct {
	conn   *nats.Conn
	url    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewNATSConnection creates a new NATS connection
func NewNATSConnection(url string, maxReconnects int, logger *slog.Logger) (*NATSConnection, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", "url", url)

	return &NATSConnection{
		conn:   conn,
		url:    url,
		logger: logger,
	}, nil
}

// Close closes the NATS connection
func (nc *NATSConnection) Close() {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.conn != nil {
		nc.conn.Close()
		nc.conn = nil
		nc.logger.Info("Closed NATS connection")
	}
}

// Publish sends data on the given subject.
func (nc *NATSConnection) Publish(subject string, data []byte) error {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.conn == nil {
		return nats.ErrConnectionClosed
	}
	return nc.conn.Publish(subject, data)
}

// Conn returns the underlying NATS connection
func (nc *NATSConnection) Conn() *nats.Conn {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.conn
}

// IsConnected returns true if connected to NATS
func (nc *NATSConnection) IsConnected() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.conn != nil && nc.conn.IsConnected()
}
