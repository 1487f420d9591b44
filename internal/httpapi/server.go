// Package httpapi implements the control plane: a side-channel HTTP surface
// for operators to force a prompt-store reload without going through a chat
// turn (§4.8).
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"agentgw/internal/logging"
	"agentgw/internal/prompts"
)

// ReloadReport is the JSON body returned by GET /api/reload-prompts.
type ReloadReport struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

// Server exposes the control-plane HTTP endpoints. adminMu serializes
// reload requests so a slow remote fetch can't pile up concurrent reloads;
// a request that finds it locked fails fast with 503 rather than queuing.
type Server struct {
	prompts *prompts.Store
	adminMu sync.Mutex
	mux     *http.ServeMux
}

// NewServer constructs the control-plane server over the given prompt
// store, the same one wired into the Agent.
func NewServer(store *prompts.Store) *Server {
	s := &Server{prompts: store, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/reload-prompts", s.handleReloadPrompts)
}

func (s *Server) handleReloadPrompts(w http.ResponseWriter, r *http.Request) {
	log := logging.Component("httpapi")

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "local"
	}
	if source != "local" && source != "remote" && source != "both" {
		writeJSON(w, http.StatusBadRequest, ReloadReport{
			Message: "source must be one of: local, remote, both",
		})
		return
	}

	if !s.adminMu.TryLock() {
		writeJSON(w, http.StatusServiceUnavailable, ReloadReport{
			Message: "a reload is already in progress",
		})
		return
	}
	defer s.adminMu.Unlock()

	var details []string
	success := true

	if source == "local" || source == "both" {
		changed, err := s.prompts.ReloadIfLocalChanged()
		switch {
		case err != nil:
			success = false
			details = append(details, "Local reload failed: "+err.Error())
			log.Warn().Err(err).Msg("control_plane_local_reload_failed")
		case changed:
			details = append(details, "Local prompts reloaded")
		default:
			details = append(details, "Local prompts unchanged")
		}
	}

	if source == "remote" || source == "both" {
		changed, err := s.prompts.ForceReloadRemote()
		switch {
		case err != nil:
			success = false
			details = append(details, "Remote reload failed: "+err.Error())
			log.Warn().Err(err).Msg("control_plane_remote_reload_failed")
		case changed:
			details = append(details, "Remote prompts reloaded")
		default:
			details = append(details, "Remote unchanged")
		}
	}

	status := http.StatusOK
	message := "reload complete"
	if !success {
		status = http.StatusInternalServerError
		message = "reload failed"
	}
	writeJSON(w, status, ReloadReport{Success: success, Message: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, report ReloadReport) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
