// Package adminserver provides a lightweight HTTP API for runtime
// inspection of a running looped server: process status, registered peers,
// and metrics.
//
// Endpoints:
//
//	GET /status   - uptime, listen addresses, peer/phrase counts
//	GET /peers    - registered peers and their outstanding delta size
//	GET /metrics  - metrics.Snapshot() as JSON
package adminserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/romasoletskyi/looped/internal/config"
	"github.com/romasoletskyi/looped/internal/graph"
	"github.com/romasoletskyi/looped/internal/logger"
	"github.com/romasoletskyi/looped/internal/metrics"
)

// Server is the admin/metrics API server.
type Server struct {
	cfg       *config.Config
	startTime time.Time
	database  func() *graph.Database // returns the live, shared graph
	metrics   *metrics.Metrics
	log       *logger.Logger
	token     string // bearer token for auth; empty = no auth
}

// New creates an admin server. database is called on every request to
// obtain the currently live graph; callers typically pass
// syncserver.Server.Database.
func New(cfg *config.Config, database func() *graph.Database, m *metrics.Metrics, log *logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		startTime: time.Now(),
		database:  database,
		metrics:   m,
		log:       log,
		token:     cfg.ManagementToken,
	}
	if s.token != "" {
		s.log.Info("init", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/peers", s.handlePeers)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		ListenAddress string `json:"listenAddress"`
		AdminAddress  string `json:"adminAddress"`
		Peers         int    `json:"peers"`
		Phrases       int    `json:"phrases"`
	}

	db := s.database()
	resp := response{
		Status:        "running",
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		ListenAddress: s.cfg.ListenAddress,
		AdminAddress:  s.cfg.AdminAddress,
		Peers:         len(db.Peers()),
		Phrases:       db.PhraseCount(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	type peerEntry struct {
		Peer    string `json:"peer"`
		Pending int    `json:"pending"`
	}

	db := s.database()
	peers := db.Peers()
	out := make([]peerEntry, 0, len(peers))
	for _, p := range peers {
		pending, ok := db.PendingPhrases(p)
		if !ok {
			continue
		}
		out = append(out, peerEntry{Peer: p, Pending: pending})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort write, client disconnects are not actionable
}
