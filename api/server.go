// Package api exposes the monitor's state over a small read-only HTTP
// surface, for dashboards.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/monitor"
)

type Server struct {
	monitor *monitor.Monitor
	logger  *logrus.Logger
	port    int
}

func NewServer(mon *monitor.Monitor, logger *logrus.Logger, port int) *Server {
	return &Server{
		monitor: mon,
		logger:  logger,
		port:    port,
	}
}

func (s *Server) Start() error {
	handler := corsMiddleware(s.Handler())

	s.logger.Infof("Starting API server on port %d", s.port)
	return http.ListenAndServe(":"+strconv.Itoa(s.port), handler)
}

// Handler builds the route table; exposed separately for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/positions", s.handlePositions)
	return mux
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSignals returns the latest evaluated tick per pair.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Latest())
}

// handleHistory returns recorded ticks for ?pair=ID.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pairID := r.URL.Query().Get("pair")
	if pairID == "" {
		http.Error(w, "missing pair parameter", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.History(pairID))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Alerts())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Positions())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
