// Package monitoring exposes read-only HTTP endpoints over a running
// session, for headless deployments and scripted checks.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"serialmonitor/config"
	"serialmonitor/session"
)

// Server provides HTTP monitoring endpoints
type Server struct {
	config  *config.MonitoringConfig
	session *session.Controller
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new monitoring server
func NewServer(cfg *config.MonitoringConfig, ctrl *session.Controller, logger *slog.Logger) *Server {
	return &Server{
		config:  cfg,
		session: ctrl,
		logger:  logger,
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/slots", s.handleSlots)
	mux.HandleFunc("/api/console", s.handleConsole)
	mux.HandleFunc("/api/devices", s.handleDevices)
	return mux
}

// Start starts the monitoring HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	s.logger.Info("Starting monitoring server", "port", s.config.Port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Monitoring server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the monitoring server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("Stopping monitoring server")
	return s.server.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns the session snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.session.Status())
}

// handleSlots returns slot metadata with live values
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	type slotValue struct {
		Index int     `json:"index"`
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	slots := s.session.Slots()
	out := make([]slotValue, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotValue{Index: sl.Index, Name: sl.Name, Value: sl.Value})
	}
	writeJSON(w, map[string]any{"slots": out})
}

// handleConsole returns the last N retained console lines.
// Query params: count (default 50, max 512)
func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	count := 50
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 {
			count = n
		}
	}
	if count > 512 {
		count = 512
	}

	lines := s.session.ConsoleLines()
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	writeJSON(w, map[string]any{"lines": lines, "count": len(lines)})
}

// handleDevices returns the serial devices currently present
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.session.Devices()
	if err != nil {
		s.logger.Warn("Device enumeration failed", "error", err)
		devices = []string{}
	}
	writeJSON(w, map[string]any{"devices": devices})
}
