package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hvac-collector/internal/config"
	"hvac-collector/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// StatusSource is anything that can describe its internals as a JSON-able
// map. The collector implements it.
type StatusSource interface {
	Status() map[string]interface{}
}

// Server is the local observability surface: health, collector status and
// prometheus metrics. It exposes nothing that mutates collection state.
type Server struct {
	config *config.Config
	logger *logrus.Logger
	srv    *http.Server
}

func NewServer(cfg *config.Config, logger *logrus.Logger, source StatusSource, m *metrics.Metrics) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", handleStatus(source)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))

	return &Server{
		config: cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Status API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleStatus(source StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, source.Status())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
