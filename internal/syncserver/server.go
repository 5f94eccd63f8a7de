// Package syncserver exposes the conversation graph over HTTP so peers can
// pull and push deltas.
//
// Endpoints:
//
//	GET  /database  - returns a full clone of the graph, for cold-join
//	POST /database  - accepts a peer's delta, returns the server's delta back
package syncserver

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/romasoletskyi/looped/internal/graph"
	"github.com/romasoletskyi/looped/internal/logger"
	"github.com/romasoletskyi/looped/internal/metrics"
	"github.com/romasoletskyi/looped/internal/snapshot"
)

// Server holds the single shared Database and serializes access to it for
// the duration of one HTTP request.
type Server struct {
	mu       sync.Mutex
	database *graph.Database

	log     *logger.Logger
	metrics *metrics.Metrics
	store   snapshot.Store
}

// New creates a Server wrapping db. store may be nil, in which case no
// snapshot is ever saved by this package (the caller owns snapshotting).
func New(db *graph.Database, log *logger.Logger, m *metrics.Metrics, store snapshot.Store) *Server {
	return &Server{database: db, log: log, metrics: m, store: store}
}

// Database returns the live, shared graph. Callers outside the HTTP
// handlers (e.g. a periodic snapshot ticker) must still treat it as
// exclusively owned by the Server while a request is in flight.
func (s *Server) Database() *graph.Database {
	return s.database
}

// Handler returns the HTTP handler for the sync API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/database", s.recoverMiddleware(s.handleDatabase))
	return mux
}

// recoverMiddleware turns a panic in the wrapped handler into a 500, logging
// the failure instead of taking the process down.
func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Errorf("handler_panic", "panic handling %s %s from %s: %v", r.Method, r.URL.Path, r.RemoteAddr, rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handlePost(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	peer := r.RemoteAddr
	s.metrics.SyncGETTotal.Add(1)

	s.mu.Lock()
	clone := s.database.TotalClone()
	s.database.Updated(peer)
	s.mu.Unlock()

	s.log.Infof("database_get", "peer %s cloned %d phrases", peer, clone.PhraseCount())

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, clone.String()); err != nil {
		s.log.Warnf("database_get", "write response to %s: %v", peer, err)
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	peer := r.RemoteAddr
	s.metrics.SyncPOSTTotal.Add(1)

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		s.metrics.MergeErrorsTotal.Add(1)
		s.log.Errorf("database_merge", "read body from %s: %v", peer, err)
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	parsed, parseErr := graph.ParseDatabase(body)
	if parseErr != nil {
		s.metrics.MergeErrorsTotal.Add(1)
		s.log.Warnf("database_merge", "parse delta from %s: %v, skipping merge", peer, parseErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	diffStart := time.Now()
	diff := s.database.Difference(peer)
	s.metrics.RecordDifferenceLatency(time.Since(diffStart))

	if parseErr == nil {
		before := s.database.PhraseCount()
		mergeStart := time.Now()
		s.database.Merge(parsed)
		s.metrics.RecordMergeLatency(time.Since(mergeStart))
		after := s.database.PhraseCount()
		s.metrics.PhrasesMergedTotal.Add(int64(after - before))
		s.log.Infof("database_merge", "peer %s merged delta (%d new phrases), %d phrases outstanding", peer, after-before, diff.PhraseCount())
	}

	s.database.Updated(peer)

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.WriteString(w, diff.String()); err != nil {
		s.log.Warnf("database_merge", "write response to %s: %v", peer, err)
	}
}

// Save persists the current database state through the configured store, if
// any.
func (s *Server) Save() error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(s.database); err != nil {
		return fmt.Errorf("syncserver: save snapshot: %w", err)
	}
	return nil
}
