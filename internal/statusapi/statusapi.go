// Package statusapi serves the read-only HTTP status projection of the
// coordinator's state: GET/HEAD /status and GET/HEAD /source.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/baccuslab/blds/internal/coordinator"
	"github.com/baccuslab/blds/internal/source"
)

// Handlers serves the status endpoint over a Coordinator's channel-based
// read accessors. It holds no coordinator state of its own.
type Handlers struct {
	coord *coordinator.Coordinator
}

// NewHandlers builds the status endpoint's handlers over coord.
func NewHandlers(coord *coordinator.Coordinator) *Handlers {
	return &Handlers{coord: coord}
}

// NewServeMux builds the *http.ServeMux blds's HTTP status server listens
// with.
func (h *Handlers) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.Status)
	mux.HandleFunc("/source", h.Source)
	return mux
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		return
	}
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Status implements GET/HEAD /status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.writeJSON(w, r, h.coord.RequestStatus())
}

// Source implements GET/HEAD /source: a JSON projection of the current
// source-status map, 404 when no source exists.
func (h *Handlers) Source(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status, exists := h.coord.RequestSourceStatus()
	if !exists {
		h.writeError(w, http.StatusNotFound, "no data source exists")
		return
	}
	h.writeJSON(w, r, projectStatusMap(status))
}

// projectStatusMap renders a source.StatusMap as plain JSON values, since
// source.Value's tagged fields aren't directly JSON-friendly.
func projectStatusMap(m source.StatusMap) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v.Kind {
		case source.KindString, source.KindBytes, source.KindConfig:
			out[k] = v.String()
		case source.KindBool:
			out[k] = v.Bool
		case source.KindInt64:
			out[k] = v.Int
		case source.KindFloat64:
			out[k] = v.Float
		case source.KindFloat64Seq:
			out[k] = v.Seq
		}
	}
	return out
}
