package output

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// HealthPublisher publishes periodic session heartbeats to NATS so a fleet
// of headless collectors can be watched from one place.
type HealthPublisher struct {
	conn      *NATSConnection
	subject   string
	startTime time.Time
	interval  time.Duration
	logger    *slog.Logger

	statsFunc func() HealthStats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// HealthStats contains the data needed for heartbeat messages, provided by
// the session controller via callback.
type HealthStats struct {
	State       string  `json:"state"`
	Device      string  `json:"device"`
	Paused      bool    `json:"paused"`
	Columns     int     `json:"columns"`
	SeriesCount int     `json:"series_count"`
	LatestTime  float64 `json:"latest_time"`
}

// HealthMessage is the JSON payload published to NATS
type HealthMessage struct {
	Version       int         `json:"v"`
	Timestamp     string      `json:"ts"`
	UptimeSec     int64       `json:"uptime_sec"`
	NATSConnected bool        `json:"nats_connected"`
	Session       HealthStats `json:"session"`
}

// HealthPublisherConfig contains configuration for HealthPublisher
type HealthPublisherConfig struct {
	Conn          *NATSConnection
	SubjectPrefix string        // e.g., "telemetry" -> "telemetry.health"
	Interval      time.Duration // How often to publish (default 60s)
	Logger        *slog.Logger
	StatsFunc     func() HealthStats
}

// NewHealthPublisher creates a new HealthPublisher
func NewHealthPublisher(cfg *HealthPublisherConfig) *HealthPublisher {
	interval := cfg.Interval
	if interval == 0 {
		interval = 60 * time.Second
	}

	return &HealthPublisher{
		conn:      cfg.Conn,
		subject:   cfg.SubjectPrefix + ".health",
		startTime: time.Now(),
		interval:  interval,
		logger:    cfg.Logger,
		statsFunc: cfg.StatsFunc,
		stopCh:    make(chan struct{}),
	}
}

// Start begins publishing heartbeats
func (h *HealthPublisher) Start() {
	h.wg.Add(1)
	go h.publishLoop()
	h.logger.Info("Health publisher started",
		"subject", h.subject,
		"interval", h.interval)
}

// Stop stops the health publisher
func (h *HealthPublisher) Stop() {
	close(h.stopCh)
	h.wg.Wait()
	h.logger.Info("Health publisher stopped")
}

func (h *HealthPublisher) publishLoop() {
	defer h.wg.Done()

	// Publish immediately on start
	h.publish()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			// Publish final message before stopping
			h.publish()
			return
		case <-ticker.C:
			h.publish()
		}
	}
}

func (h *HealthPublisher) publish() {
	if h.conn == nil || !h.conn.IsConnected() {
		h.logger.Debug("Skipping health publish - NATS not connected")
		return
	}

	msg := HealthMessage{
		Version:       1,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSec:     int64(time.Since(h.startTime).Seconds()),
		NATSConnected: true,
		Session:       h.statsFunc(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal health message", "error", err)
		return
	}

	if err := h.conn.Publish(h.subject, data); err != nil {
		h.logger.Warn("Failed to publish health message", "error", err)
		return
	}

	h.logger.Debug("Published health heartbeat",
		"subject", h.subject,
		"uptime_sec", msg.UptimeSec)
}
