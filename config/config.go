package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"serialmonitor/plot"
	"serialmonitor/serial"
)

// NoDevice is the placeholder device identifier meaning "nothing selected".
const NoDevice = "-"

// Config is the root configuration structure, persisted as JSON.
type Config struct {
	Connection ConnectionConfig `json:"connection"`
	Plot       PlotConfig       `json:"plot"`
	Slots      []plot.Slot      `json:"slots"`
	Plots      []plot.Plot      `json:"plots"`
	Logging    LoggingConfig    `json:"logging"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Publish    PublishConfig    `json:"publish"`
}

// ConnectionConfig describes the serial device and the start trigger.
type ConnectionConfig struct {
	Device       string `json:"device"`
	BaudRate     int    `json:"baud_rate"`
	DataBits     int    `json:"data_bits"`
	Parity       string `json:"parity"`
	StopBits     int    `json:"stop_bits"`
	FlowControl  string `json:"flow_control"`
	DTR          *bool  `json:"dtr"`
	StartMode    string `json:"start_mode"`
	StartDelayMS int    `json:"start_delay_ms"`
	StartMessage string `json:"start_message"`
}

// AssertDTR reports whether the ready signal should be asserted on open.
func (c *ConnectionConfig) AssertDTR() bool {
	if c.DTR == nil {
		return true
	}
	return *c.DTR
}

// SerialConfig converts the persisted form into the reader's configuration.
func (c *ConnectionConfig) SerialConfig() (serial.Config, error) {
	parity, err := serial.ParseParity(c.Parity)
	if err != nil {
		return serial.Config{}, err
	}
	flow, err := serial.ParseFlowControl(c.FlowControl)
	if err != nil {
		return serial.Config{}, err
	}
	return serial.Config{
		Device:      c.Device,
		BaudRate:    c.BaudRate,
		DataBits:    c.DataBits,
		Parity:      parity,
		StopBits:    c.StopBits,
		FlowControl: flow,
	}, nil
}

// StartTrigger converts the persisted start policy. The delay magnitude and
// trigger message are carried independently of the selected mode so the
// user's last values survive mode switches.
func (c *ConnectionConfig) StartTrigger() (serial.StartTrigger, error) {
	mode, err := serial.ParseTriggerMode(c.StartMode)
	if err != nil {
		return serial.StartTrigger{}, err
	}
	return serial.StartTrigger{
		Mode:    mode,
		Delay:   time.Duration(c.StartDelayMS) * time.Millisecond,
		Message: c.StartMessage,
	}, nil
}

// PlotConfig is the persisted window/scale configuration shared by plots.
type PlotConfig struct {
	Mode      string  `json:"mode"`
	Window    float64 `json:"window"`
	ScaleMode string  `json:"scale_mode"`
	YMin      float64 `json:"y_min"`
	YMax      float64 `json:"y_max"`
}

// Settings converts the persisted form into the windowing engine's
// configuration.
func (p *PlotConfig) Settings() (plot.Config, error) {
	mode, err := plot.ParseMode(p.Mode)
	if err != nil {
		return plot.Config{}, err
	}
	scale, err := plot.ParseScaleMode(p.ScaleMode)
	if err != nil {
		return plot.Config{}, err
	}
	return plot.Config{
		Mode:   mode,
		Window: p.Window,
		Scale:  scale,
		YMin:   p.YMin,
		YMax:   p.YMax,
	}, nil
}

// LoggingConfig contains application logging and rotation settings. An
// empty base path logs to stdout.
type LoggingConfig struct {
	BasePath   string `json:"base_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
	Level      string `json:"level"`
}

// MonitoringConfig contains HTTP status server settings.
type MonitoringConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// PublishConfig contains optional NATS publishing of accepted raw lines.
type PublishConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix"`
	MaxReconnects int    `json:"max_reconnects"`
}

// Default returns a configuration with all defaults applied, used when no
// config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses the configuration file, applying defaults and
// validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in default values for optional fields.
func (c *Config) setDefaults() {
	if c.Connection.Device == "" {
		c.Connection.Device = NoDevice
	}
	if c.Connection.BaudRate == 0 {
		c.Connection.BaudRate = 9600
	}
	if c.Connection.DataBits == 0 {
		c.Connection.DataBits = 8
	}
	if c.Connection.Parity == "" {
		c.Connection.Parity = "none"
	}
	if c.Connection.StopBits == 0 {
		c.Connection.StopBits = 1
	}
	if c.Connection.FlowControl == "" {
		c.Connection.FlowControl = "none"
	}
	if c.Connection.DTR == nil {
		dtr := true
		c.Connection.DTR = &dtr
	}
	if c.Connection.StartMode == "" {
		c.Connection.StartMode = "delay"
	}
	if c.Connection.StartDelayMS == 0 {
		c.Connection.StartDelayMS = 1000
	}
	if c.Connection.StartMessage == "" {
		c.Connection.StartMessage = "Start"
	}

	if c.Plot.Mode == "" {
		c.Plot.Mode = "continuous"
	}
	if c.Plot.Window == 0 {
		c.Plot.Window = 5.0
	}
	if c.Plot.ScaleMode == "" {
		c.Plot.ScaleMode = "auto"
	}
	if c.Plot.YMin == 0 && c.Plot.YMax == 0 {
		c.Plot.YMax = 1.0
	}

	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 8080
	}

	if c.Publish.URL == "" {
		c.Publish.URL = "nats://localhost:4222"
	}
	if c.Publish.SubjectPrefix == "" {
		c.Publish.SubjectPrefix = "telemetry"
	}
	if c.Publish.MaxReconnects == 0 {
		c.Publish.MaxReconnects = 10
	}
}
