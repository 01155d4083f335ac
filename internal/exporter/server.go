package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics and /healthz.
type Server struct {
	httpServer *http.Server
	registry   *prometheus.Registry
	log        *zap.Logger
	listener   net.Listener
}

// NewServer registers collector on a fresh registry and prepares the HTTP
// server for addr. Use ":0" to let the OS pick a port.
func NewServer(addr string, collector *Collector, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	if err := collector.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}

	s := &Server{registry: reg, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Addr is the bound address once Start returned.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("exporter listen: %w", err)
	}
	s.listener = ln
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("exporter stopped", zap.Error(err))
		}
	}()
	s.log.Info("exporter listening", zap.String("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
