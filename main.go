package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"serialmonitor/config"
	"serialmonitor/monitoring"
	"serialmonitor/output"
	"serialmonitor/session"
)

const (
	appName    = "SerialMonitor"
	appVersion = "1.0.0"

	// tickInterval paces queue draining. Records carry their own
	// timestamps, so the cadence only affects latency, not data.
	tickInterval = 50 * time.Millisecond
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	logger := setupLogging(cfg, *debug)
	logger.Info("Starting SerialMonitor",
		"version", appVersion,
		"device", cfg.Connection.Device,
		"config", *configPath)

	ctrl, err := session.NewController(cfg, logger)
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		os.Exit(1)
	}

	// Drop a configured device that is no longer plugged in.
	ctrl.ResetPortIfMissing()

	// Optional NATS publishing of accepted raw lines.
	var natsConn *output.NATSConnection
	if cfg.Publish.Enabled {
		natsConn, err = output.NewNATSConnection(cfg.Publish.URL, cfg.Publish.MaxReconnects, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsConn.Close()
	}

	// Raw-line capture file alongside the application log.
	var sink *output.LineSink
	if cfg.Logging.BasePath != "" && ctrl.Connection().Device != config.NoDevice {
		sinkCfg := &output.LineSinkConfig{
			Device:        ctrl.Connection().Device,
			BasePath:      cfg.Logging.BasePath,
			MaxSizeMB:     cfg.Logging.MaxSizeMB,
			MaxBackups:    cfg.Logging.MaxBackups,
			Compress:      cfg.Logging.Compress,
			SubjectPrefix: cfg.Publish.SubjectPrefix,
			Logger:        logger,
		}
		if natsConn != nil {
			sinkCfg.NATSConn = natsConn.Conn()
		}
		sink = output.NewLineSink(sinkCfg)
		defer sink.Close()
		ctrl.SetSink(sink)
	}

	// Optional session events and heartbeats over the same connection.
	var events *output.EventPublisher
	var health *output.HealthPublisher
	if natsConn != nil {
		events = output.NewEventPublisher(&output.EventPublisherConfig{
			Conn:          natsConn.Conn(),
			SubjectPrefix: cfg.Publish.SubjectPrefix,
			Logger:        logger,
		})
		events.PublishServiceStart(appVersion)

		health = output.NewHealthPublisher(&output.HealthPublisherConfig{
			Conn:          natsConn,
			SubjectPrefix: cfg.Publish.SubjectPrefix,
			Logger:        logger,
			StatsFunc: func() output.HealthStats {
				st := ctrl.Status()
				return output.HealthStats{
					State:       st.State,
					Device:      st.Device,
					Paused:      st.Paused,
					Columns:     st.Columns,
					SeriesCount: st.SeriesCount,
					LatestTime:  st.LatestTime,
				}
			},
		})
		health.Start()
	}

	var monServer *monitoring.Server
	if cfg.Monitoring.Enabled {
		monServer = monitoring.NewServer(&cfg.Monitoring, ctrl, logger)
		if err := monServer.Start(); err != nil {
			logger.Error("Failed to start monitoring server", "error", err)
			os.Exit(1)
		}
	}

	// Connect at startup when a device is configured. A failed or dropped
	// connection is reported, not retried; reconnecting is a deliberate
	// operator action.
	if ctrl.Connection().Device != config.NoDevice {
		if err := ctrl.Connect(); err != nil {
			logger.Error("Failed to connect", "device", ctrl.Connection().Device, "error", err)
			events.PublishError(ctrl.Connection().Device, err.Error())
		} else {
			events.PublishConnected(cfg.Connection.Device, cfg.Connection.BaudRate)
		}
	} else {
		logger.Info("No device configured, staying idle")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	wasReading := ctrl.State() == session.StateReading

	running := true
	for running {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", "signal", sig.String())
			running = false

		case <-ticker.C:
			notes := ctrl.Tick()
			sawError := false
			for _, note := range notes {
				switch note.Severity {
				case session.SeverityError:
					logger.Error(note.Message)
					events.PublishError(cfg.Connection.Device, note.Message)
					sawError = true
				default:
					logger.Warn(note.Message)
				}
			}

			// A reading session that fell back to idle ended on its own,
			// either orderly (end of stream) or on a fatal error.
			reading := ctrl.State() == session.StateReading
			if wasReading && !reading {
				if !sawError {
					events.PublishStreamEnded(cfg.Connection.Device)
				}
				events.PublishDisconnected(cfg.Connection.Device, "reader stopped")
			}
			wasReading = reading
		}
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if monServer != nil {
		if err := monServer.Stop(shutdownCtx); err != nil {
			logger.Warn("Error stopping monitoring server", "error", err)
		}
	}

	ctrl.Disconnect()

	events.PublishServiceStop("signal")
	if health != nil {
		health.Stop()
	}

	logger.Info("SerialMonitor stopped")
}

// setupLogging configures logging with optional file rotation
func setupLogging(cfg *config.Config, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler

	// If log base path is configured, write to rotating log file
	if cfg.Logging.BasePath != "" {
		if err := os.MkdirAll(cfg.Logging.BasePath, 0755); err != nil {
			log.Printf("Warning: failed to create log directory: %v", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			logPath := filepath.Join(cfg.Logging.BasePath, "serialmonitor.log")
			writer := &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				Compress:   cfg.Logging.Compress,
			}
			handler = slog.NewJSONHandler(writer, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
