// Package api serves a small control API for a running driver: its state,
// a stop request, a liveness probe and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benaskins/ghostwire/internal/procstat"
	"github.com/benaskins/ghostwire/internal/service"
)

// Driver is the part of *service.Service the API needs.
type Driver interface {
	Info() service.ProcessInfo
	ServiceURL() string
	Stop(ctx context.Context)
}

// DriverState is the JSON body of GET /v1/driver.
type DriverState struct {
	URL       string        `json:"url"`
	State     service.State `json:"state"`
	PID       int           `json:"pid,omitempty"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	Exited    bool          `json:"exited"`
	ExitCode  int           `json:"exit_code"`
	Error     string        `json:"error,omitempty"`

	// Usage is present while the process is alive.
	Usage *procstat.Usage `json:"usage,omitempty"`
}

// Server serves the ghostwire control API over TCP or a Unix socket.
type Server struct {
	driver Driver
	server *http.Server
	logger *slog.Logger
}

// NewServer creates an API server for d. When metrics is non-nil it is
// mounted at GET /metrics.
func NewServer(d Driver, metrics http.Handler) *Server {
	s := &Server{
		driver: d,
		logger: slog.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/driver", s.getDriver)
	mux.HandleFunc("POST /v1/driver/stop", s.stopDriver)
	mux.HandleFunc("GET /v1/health", s.health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// ListenUnix starts the server on a Unix socket.
func (s *Server) ListenUnix(path string) error {
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	s.logger.Info("API listening", "socket", path)
	return s.server.Serve(ln)
}

// ListenTCP starts the server on a TCP address.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("API listening", "addr", addr)
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) getDriver(w http.ResponseWriter, r *http.Request) {
	info := s.driver.Info()
	state := DriverState{
		URL:       s.driver.ServiceURL(),
		State:     info.State,
		PID:       info.PID,
		StartedAt: info.StartedAt,
		Exited:    info.Exited,
		ExitCode:  info.ExitCode,
		Error:     info.Error,
	}
	if info.PID != 0 && !info.Exited {
		if u, err := procstat.Sample(r.Context(), info.PID); err != nil {
			s.logger.Debug("sampling driver usage", "pid", info.PID, "error", err)
		} else {
			state.Usage = &u
		}
	}
	writeJSON(w, http.StatusOK, state)
}

// stopDriver answers immediately; Stop can take up to the stop timeout.
func (s *Server) stopDriver(w http.ResponseWriter, r *http.Request) {
	if info := s.driver.Info(); info.StopRequested {
		if info.State == service.StateStopped {
			writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
		} else {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
		}
		return
	}
	s.logger.Info("stop requested", "remote", r.RemoteAddr)
	go s.driver.Stop(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
