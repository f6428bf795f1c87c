// Package server implements the HTTP surface a collaborative session is
// reached through: the WebSocket upgrade endpoint, a plain-text snapshot
// endpoint, and a stats endpoint, hosted across internal/session.Manager's
// uuid-keyed multi-session table.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/tedsta/ted/internal/protocol"
	"github.com/tedsta/ted/internal/session"
	"github.com/tedsta/ted/pkg/logger"
	"github.com/tedsta/ted/pkg/transport"
)

// Stats is the JSON payload served at /api/stats.
type Stats struct {
	StartTime    int64 `json:"start_time"`
	NumSessions  int   `json:"num_sessions"`
	DatabaseSize int   `json:"database_size"`
}

// Server is the HTTP handler hosting every session reachable under this
// process.
type Server struct {
	manager   *session.Manager
	mux       *http.ServeMux
	codec     protocol.Codec
	startTime time.Time

	wsReadTimeout time.Duration

	dbCount func() (int, error)

	// shuttingDown guards against a double Shutdown call racing a signal
	// handler and a deferred cleanup both firing.
	shuttingDown atomic.Bool
}

// Options configures a Server beyond what the Manager itself needs.
type Options struct {
	Codec         protocol.Codec
	WSReadTimeout time.Duration
	// DBCount, if set, backs the /api/stats database_size field.
	DBCount func() (int, error)
}

// New creates an HTTP server hosting sessions through manager.
func New(manager *session.Manager, opts Options) *Server {
	if opts.Codec == nil {
		opts.Codec = protocol.NewCompressingCodec(protocol.BinaryCodec{}, 256*1024)
	}

	s := &Server{
		manager:       manager,
		mux:           http.NewServeMux(),
		codec:         opts.Codec,
		startTime:     time.Now(),
		wsReadTimeout: opts.WSReadTimeout,
		dbCount:       opts.DBCount,
	}

	s.mux.HandleFunc("/api/socket/", s.handleSocket)
	s.mux.HandleFunc("/api/text/", s.handleText)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/new", s.handleNew)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleNew creates a new hosted document and returns its id, the entry
// point `ted connect` and any web client use before opening a socket.
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	id := s.manager.Create()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(id))
}

// handleSocket upgrades to a WebSocket and runs the synchronization
// protocol for one client against the session named by the path,
// delegating the connection loop to pkg/transport.ServerConn.
// Route: /api/socket/{id}
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/socket/")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	sess, err := s.manager.Get(r.Context(), id)
	if err != nil {
		logger.Error("server: load session %s: %v", id, err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		logger.Error("server: websocket upgrade for %s: %v", id, err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sc := transport.NewServerConn(sess, conn, s.codec, s.wsReadTimeout)
	if err := sc.Handle(r.Context()); err != nil {
		logger.Debug("server: connection for session %s ended: %v", id, err)
	}
}

// handleText returns the current document text as plain text.
// Route: /api/text/{id}
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/text/")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}

	sess, err := s.manager.Get(r.Context(), id)
	if err != nil {
		logger.Error("server: load session %s: %v", id, err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(sess.Text()))
}

// handleStats returns server-wide statistics as JSON.
// Route: /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	dbSize := 0
	if s.dbCount != nil {
		if n, err := s.dbCount(); err == nil {
			dbSize = n
		}
	}

	stats := Stats{
		StartTime:    s.startTime.Unix(),
		NumSessions:  s.manager.Count(),
		DatabaseSize: dbSize,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	logger.Info("server: listening on %s", addr)
	return http.ListenAndServe(addr, s)
}

// Shutdown persists every hosted session through the configured store.
// It neither stops the listener nor disconnects sessions: ListenAndServe
// runs http.ListenAndServe, which keeps serving until the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	s.manager.Persist(ctx)
	return nil
}
