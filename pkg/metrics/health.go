package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ReadinessCheck reports one named readiness condition. Implementations must
// be fast; the handler runs them inline.
type ReadinessCheck func() (name string, ok bool, detail string)

// HealthServer provides the /health, /ready and /metrics HTTP endpoints every
// tradefleet process exposes on METRICS_PORT.
type HealthServer struct {
	mux     *http.ServeMux
	version string
	checks  []ReadinessCheck
}

// NewHealthServer creates a health server with the given readiness checks
func NewHealthServer(version string, checks ...ReadinessCheck) *HealthServer {
	hs := &HealthServer{
		mux:     http.NewServeMux(),
		version: version,
		checks:  checks,
	}
	hs.mux.HandleFunc("/health", hs.healthHandler)
	hs.mux.HandleFunc("/ready", hs.readyHandler)
	hs.mux.Handle("/metrics", Handler())
	return hs
}

// Start starts the HTTP server; blocks until the listener fails
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse represents the liveness check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// healthHandler is a simple liveness check - 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   hs.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler runs every registered readiness check; any failure yields 503
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string, len(hs.checks))
	ready := true
	for _, check := range hs.checks {
		name, ok, detail := check()
		if detail == "" {
			detail = "ok"
		}
		if !ok {
			ready = false
			if detail == "ok" {
				detail = "not ready"
			}
		}
		checks[name] = detail
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

// StoreCheck adapts a Store ping into a ReadinessCheck
func StoreCheck(ping func() error) ReadinessCheck {
	return func() (string, bool, string) {
		if err := ping(); err != nil {
			return "storage", false, fmt.Sprintf("error: %v", err)
		}
		return "storage", true, "ok"
	}
}
