package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatsSource exposes runtime counters from the orchestrator and the
// ingestion controller without coupling the HTTP layer to either.
type StatsSource interface {
	Stats() map[string]interface{}
}

// Server is the plain-HTTP surface next to the WebSocket endpoint: liveness
// and operator counters, no business logic.
type Server struct {
	realtime StatsSource
	ingest   StatsSource
	router   *http.ServeMux
}

// NewServer builds the API surface.
func NewServer(realtime StatsSource, ingest StatsSource) *Server {
	s := &Server{
		realtime: realtime,
		ingest:   ingest,
		router:   http.NewServeMux(),
	}
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.stats))))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HealthResponse is the liveness body. Liveness only: no dependency checks,
// so a degraded Redis or Kafka never flaps the process out of rotation.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// StatsResponse groups the operator counters by component.
type StatsResponse struct {
	Realtime  map[string]interface{} `json:"realtime"`
	Ingestion map[string]interface{} `json:"ingestion"`
	Timestamp time.Time              `json:"timestamp"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(StatsResponse{
		Realtime:  s.realtime.Stats(),
		Ingestion: s.ingest.Stats(),
		Timestamp: time.Now(),
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
