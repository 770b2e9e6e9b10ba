package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.validateConnection(); err != nil {
		return err
	}
	if err := c.validatePlot(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMonitoring(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConnection() error {
	conn := &c.Connection

	if conn.Device == "" {
		return fmt.Errorf("connection.device must not be empty (use %q for none)", NoDevice)
	}
	if conn.BaudRate <= 0 {
		return fmt.Errorf("connection.baud_rate must be positive, got %d", conn.BaudRate)
	}
	if conn.DataBits < 5 || conn.DataBits > 9 {
		return fmt.Errorf("connection.data_bits must be between 5 and 9, got %d", conn.DataBits)
	}
	if conn.StopBits < 1 || conn.StopBits > 2 {
		return fmt.Errorf("connection.stop_bits must be 1 or 2, got %d", conn.StopBits)
	}
	if _, err := conn.SerialConfig(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	if _, err := conn.StartTrigger(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	if conn.StartDelayMS < 0 {
		return fmt.Errorf("connection.start_delay_ms must not be negative, got %d", conn.StartDelayMS)
	}
	return nil
}

func (c *Config) validatePlot() error {
	if c.Plot.Window <= 0 {
		return fmt.Errorf("plot.window must be positive, got %v", c.Plot.Window)
	}
	if _, err := c.Plot.Settings(); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if c.Plot.YMin > c.Plot.YMax {
		return fmt.Errorf("plot.y_min (%v) must not exceed plot.y_max (%v)", c.Plot.YMin, c.Plot.YMax)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging.max_backups must not be negative, got %d", c.Logging.MaxBackups)
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	if !c.Monitoring.Enabled {
		return nil
	}
	if c.Monitoring.Port < 1 || c.Monitoring.Port > 65535 {
		return fmt.Errorf("monitoring.port must be between 1 and 65535, got %d", c.Monitoring.Port)
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !c.Publish.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Publish.URL, "nats://") && !strings.HasPrefix(c.Publish.URL, "tls://") {
		return fmt.Errorf("publish.url must start with nats:// or tls://, got %q", c.Publish.URL)
	}
	if c.Publish.SubjectPrefix == "" {
		return fmt.Errorf("publish.subject_prefix must not be empty")
	}
	return nil
}
