package heal

import (
	"encoding/json"
	"net/http"
)

// StatsHandler serves Orchestrator.Stats as JSON.
func StatsHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, o.Stats())
	}
}

// HistoryHandler serves the full healing history as JSON, oldest first.
func HistoryHandler(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := o.History()
		if entries == nil {
			entries = []Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"capacity": o.history.Cap(),
			"entries":  entries,
		})
	}
}

// ResetResponse is the JSON response of the reset handlers.
type ResetResponse struct {
	Dependency string `json:"dependency,omitempty"`
	Cleared    int    `json:"cleared"`
}

// ResetHandler clears healing state. With a name from nameOf it clears that
// dependency; with an empty name it clears every dependency. This is the
// manual override for dependencies stuck at max attempts.
func ResetHandler(p *Policy, nameOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if nameOf != nil {
			name = nameOf(r)
		}

		if name == "" {
			writeJSON(w, http.StatusOK, ResetResponse{Cleared: p.ResetAll()})
			return
		}

		resp := ResetResponse{Dependency: name}
		if p.Reset(name) {
			resp.Cleared = 1
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
