package scheduler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HTTPEntry provides the mountpoint for this service into the shared
// webserver routing tree.
func (s *Scheduler) HTTPEntry() chi.Router {
	r := chi.NewRouter()

	r.Get("/running", s.httpRunning)
	return r
}

func (s *Scheduler) httpRunning(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.InProgress())
}
