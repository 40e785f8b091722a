// Package statsserver exposes a running simulation's internal/stats
// snapshot over HTTP/3, for a dashboard or scraper running outside the
// simulator process. The handler only ever reads a snapshot copied under
// the recorder's lock; it never touches the manager's live state.
package statsserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"

	"github.com/hmmsim/hmmsim/internal/stats"
)

// SnapshotSource is anything that can hand back the latest stats
// snapshot. *stats.Recorder satisfies it directly.
type SnapshotSource interface {
	Snapshot() stats.Snapshot
}

// HistorySource optionally backs the /history endpoint. A *statsdb.Store
// is adapted to it with HistoryFunc; callers without a statsdb.Store can
// leave it nil and /history responds 404.
type HistorySource interface {
	History(limit int) ([]HistoryRecord, error)
}

// HistoryRecord is the minimal shape /history serializes; a caller
// backed by internal/statsdb adapts statsdb.Record to this with
// HistoryFunc.
type HistoryRecord struct {
	SimTime  uint64         `json:"simTime"`
	Snapshot stats.Snapshot `json:"snapshot"`
}

// HistoryFunc adapts a plain function (e.g. a closure around an
// internal/statsdb.Store) to HistorySource.
type HistoryFunc func(limit int) ([]HistoryRecord, error)

// History implements HistorySource.
func (f HistoryFunc) History(limit int) ([]HistoryRecord, error) { return f(limit) }

// Server serves a live stats.Snapshot as JSON over HTTP/3.
type Server struct {
	srv  *http3.Server
	pc   net.PacketConn
	errC chan error
}

// New builds a Server bound to addr, serving source's snapshot at
// /snapshot and, if history is non-nil, its records at /history. tlsCfg
// is bumped to TLS 1.3 and "h3" regardless of what the caller passes in.
func New(addr string, tlsCfg *tls.Config, source SnapshotSource, history HistorySource) *Server {
	cfg := tlsCfg.Clone()
	cfg.MinVersion = tls.VersionTLS13
	cfg.NextProtos = []string{"h3"}

	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(source.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			http.NotFound(w, r)
			return
		}
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		recs, err := history.History(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	})

	return &Server{
		srv: &http3.Server{
			Addr:      addr,
			TLSConfig: cfg,
			Handler:   mux,
		},
		errC: make(chan error, 1),
	}
}

// Start binds the UDP socket and serves in the background, returning the
// bound address (useful when addr ends in ":0").
func (s *Server) Start() (string, error) {
	pc, err := net.ListenPacket("udp", s.srv.Addr)
	if err != nil {
		return "", fmt.Errorf("statsserver: listen %s: %w", s.srv.Addr, err)
	}
	s.pc = pc
	go func() {
		if err := s.srv.Serve(pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}
	}()
	return pc.LocalAddr().String(), nil
}

// Stop shuts down the server and releases the UDP socket.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if s.pc != nil {
		s.pc.Close()
	}
	return err
}

// Error streams the first unexpected error from the background Serve
// goroutine, if any.
func (s *Server) Error() <-chan error { return s.errC }
