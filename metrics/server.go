// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Pinger is anything whose liveness gates the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the scrape and health endpoints.
type Server struct {
	addr    string
	reg     *prometheus.Registry
	pingers map[string]Pinger
	log     logrus.FieldLogger
	srv     *http.Server
}

// NewServer creates a server with a fresh registry. Collectors register
// through Register before Start.
func NewServer(addr string, log logrus.FieldLogger) *Server {
	return &Server{
		addr:    addr,
		reg:     prometheus.NewRegistry(),
		pingers: make(map[string]Pinger),
		log:     log,
	}
}

// Register adds a collector to the scrape registry.
func (s *Server) Register(c prometheus.Collector) error {
	return s.reg.Register(c)
}

// AddPinger gates /health on the named dependency.
func (s *Server) AddPinger(name string, p Pinger) {
	s.pingers[name] = p
}

// Start begins serving. It returns once the listener is running; serve
// errors after that are logged.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("Metrics server stopped")
		}
	}()
	s.log.WithField("addr", s.addr).Info("Metrics server started")
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.log.WithError(err).WithField("dependency", name).Warn("Health check failed")
			http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
