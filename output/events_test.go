package output

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventPublisherNilSafe(t *testing.T) {
	require.Nil(t, NewEventPublisher(nil))
	require.Nil(t, NewEventPublisher(&EventPublisherConfig{Logger: slog.Default()}))

	// A nil publisher swallows everything.
	var e *EventPublisher
	e.PublishServiceStart("1.0.0")
	e.PublishConnected("/dev/ttyUSB0", 9600)
	e.PublishDisconnected("/dev/ttyUSB0", "operator")
	e.PublishStreamEnded("/dev/ttyUSB0")
	e.PublishError("/dev/ttyUSB0", "boom")
	e.PublishServiceStop("test")
}

func TestHealthPublisherWithoutConnection(t *testing.T) {
	h := NewHealthPublisher(&HealthPublisherConfig{
		SubjectPrefix: "telemetry",
		Interval:      10 * time.Millisecond,
		Logger:        slog.Default(),
		StatsFunc:     func() HealthStats { return HealthStats{State: "idle"} },
	})

	// With no NATS connection every publish is skipped; the loop still
	// starts and stops cleanly.
	h.Start()
	time.Sleep(30 * time.Millisecond)
	h.Stop()
}
