package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rondo/internal/constants"
	"rondo/internal/security"
	"rondo/internal/types"
	"rondo/internal/utils"
)

// statusHandler builds the read-only status surface served on its own
// listener. Handlers only read snapshot copies; nothing here shares a
// lock with the enforcement path, so a slow dashboard can never stall
// connection brokering.
func (s *Server) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointHealth, s.handleHealth)
	mux.HandleFunc(constants.EndpointPeers, s.handlePeers)
	mux.HandleFunc(constants.EndpointBanRefresh, s.handleBanRefresh)
	mux.Handle(constants.EndpointMetrics, promhttp.Handler())

	var handler http.Handler = mux
	handler = s.requireAPIKey(handler)
	handler = RecoveryMiddleware(handler)
	handler = security.SecurityHeaders(handler)
	return handler
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || !utils.VerifyHash(key, s.apiKeyHash) {
			if s.Audit != nil {
				s.Audit.LogStatusAccess(security.GetClientIP(r), r.URL.Path, false)
			}
			writeError(w, http.StatusUnauthorized, constants.MsgUnauthorized)
			return
		}
		if s.Audit != nil {
			s.Audit.LogStatusAccess(security.GetClientIP(r), r.URL.Path, true)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// handlePeers projects the presence snapshot joined with ban state.
// Note carries the ban reason for banned devices.
func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}

	snap := s.Registry.Snapshot(s.Clock.Now())
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })

	peers := make([]types.PeerInfo, 0, len(snap))
	for _, p := range snap {
		info := types.PeerInfo{ID: p.ID, Online: p.Online}
		if rec, banned := s.Bans.Lookup(p.ID); banned {
			reason := rec.Reason
			if reason == "" {
				reason = "banned"
			}
			info.Note = &reason
		}
		peers = append(peers, info)
	}

	writeJSON(w, http.StatusOK, peers)
}

// handleBanRefresh is the invalidation hook for the dashboard: after a
// ban/unban write it can shrink the staleness window to one refresh
// instead of waiting out the polling interval.
func (s *Server) handleBanRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		return
	}

	s.Bans.Invalidate()
	log.Printf("🔄 Ban refresh requested via status API")
	writeJSON(w, http.StatusOK, "refresh scheduled")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.APIResponse{Success: false, Error: &msg})
}
