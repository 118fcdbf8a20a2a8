package app

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// unitStatus is one unit's row in the /status response.
type unitStatus struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// healthHandler reports process liveness.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports a best-effort snapshot of every unit's flow state.
// Reads are not synchronized with the loop; the snapshot is for operator
// inspection only.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	eng := a.engine
	if eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}

	var statuses []unitStatus
	for _, u := range eng.Units() {
		s := unitStatus{
			Name:    u.Name,
			State:   u.Flow.State().String(),
			Running: u.Flow.Running(),
		}
		if err := u.Flow.Err(); err != nil {
			s.Error = err.Error()
		}
		statuses = append(statuses, s)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		a.logger.Error("Failed to encode status response", "error", err)
	}
}

// startHealthcheckServer initializes and runs the health check HTTP server.
func (a *App) startHealthcheckServer(port int) {
	a.logger.Debug("Configuring health check server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)

	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("Health check server failed", "error", err)
		}
	}()
}
