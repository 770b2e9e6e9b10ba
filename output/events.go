package output

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types - these are the discrete events we publish
const (
	EventServiceStart = "service_start"
	EventServiceStop  = "service_stop"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventStreamEnded  = "stream_ended"
	EventError        = "error"
)

// Event is the base structure for all events published to NATS.
// Keep it simple and flat for easy querying.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Type      string         `json:"type"`
	Device    string         `json:"dev,omitempty"`
	Message   string         `json:"msg,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// EventPublisher publishes discrete session events to NATS.
// It's designed to be optional - if nil, nothing breaks.
type EventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// EventPublisherConfig contains configuration for EventPublisher
type EventPublisherConfig struct {
	Conn          *nats.Conn
	SubjectPrefix string // e.g., "telemetry" -> "telemetry.events"
	Logger        *slog.Logger
}

// NewEventPublisher creates a new EventPublisher.
// Returns nil if conn is nil (disabled mode).
func NewEventPublisher(cfg *EventPublisherConfig) *EventPublisher {
	if cfg == nil || cfg.Conn == nil {
		return nil
	}

	return &EventPublisher{
		conn:    cfg.Conn,
		subject: cfg.SubjectPrefix + ".events",
		logger:  cfg.Logger,
	}
}

// Publish sends an event to NATS. Safe to call on nil receiver.
func (e *EventPublisher) Publish(event Event) {
	if e == nil || e.conn == nil || !e.conn.IsConnected() {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}

	if err := e.conn.Publish(e.subject, data); err != nil {
		e.logger.Warn("Failed to publish event", "error", err, "type", event.Type)
		return
	}

	e.logger.Debug("Published event",
		"type", event.Type,
		"device", event.Device,
		"message", event.Message)
}

// PublishServiceStart publishes a service start event
func (e *EventPublisher) PublishServiceStart(version string) {
	e.Publish(Event{
		Type:    EventServiceStart,
		Message: "service started",
		Details: map[string]any{"version": version},
	})
}

// PublishServiceStop publishes a service stop event
func (e *EventPublisher) PublishServiceStop(reason string) {
	e.Publish(Event{
		Type:    EventServiceStop,
		Message: "service stopping",
		Details: map[string]any{"reason": reason},
	})
}

// PublishConnected publishes a device connection event
func (e *EventPublisher) PublishConnected(device string, baudRate int) {
	e.Publish(Event{
		Type:    EventConnected,
		Device:  device,
		Message: "reading started",
		Details: map[string]any{"baud_rate": baudRate},
	})
}

// PublishDisconnected publishes a device disconnection event
func (e *EventPublisher) PublishDisconnected(device, reason string) {
	e.Publish(Event{
		Type:    EventDisconnected,
		Device:  device,
		Message: reason,
	})
}

// PublishStreamEnded publishes an orderly end-of-stream event
func (e *EventPublisher) PublishStreamEnded(device string) {
	e.Publish(Event{
		Type:    EventStreamEnded,
		Device:  device,
		Message: "device closed the stream",
	})
}

// PublishError publishes an error event
func (e *EventPublisher) PublishError(device, errMsg string) {
	e.Publish(Event{
		Type:    EventError,
		Device:  device,
		Message: errMsg,
	})
}
