// Package status exposes a minimal read-only HTTP status endpoint:
// role, replication identity, key count, and uptime. Adapted from the
// teacher's internal/web/web.go StatsResponse/Start shape, trimmed to
// the read-only subset — no command-execution endpoint, no key
// browser, no auth token.
package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/lumendb/lumen/internal/config"
	"github.com/lumendb/lumen/internal/store"
	"github.com/lumendb/lumen/internal/version"
)

// Response is the JSON body served at GET /status.
type Response struct {
	Version          string `json:"version"`
	Role             string `json:"role"`
	MasterReplID     string `json:"master_replid"`
	MasterReplOffset int64  `json:"master_repl_offset"`
	Keys             int    `json:"keys"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// Server is the status HTTP server.
type Server struct {
	cfg       *config.Config
	keyspace  *store.Keyspace
	startTime time.Time
	server    *http.Server
}

// New builds a status Server bound to cfg and keyspace. It does not
// start listening until Start is called.
func New(cfg *config.Config, keyspace *store.Keyspace) *Server {
	s := &Server{cfg: cfg, keyspace: keyspace, startTime: time.Now()}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	s.server = &http.Server{Handler: mux}
	return s
}

// Start binds addr and serves until ctx is cancelled. An empty addr
// disables the endpoint entirely: Start returns a nil address and a nil
// error immediately. Otherwise Start returns the listener's bound
// address (useful when addr's port is 0).
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	if addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()
	go s.server.Serve(ln)
	return ln.Addr(), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Version:          version.Version,
		Role:             s.cfg.Role,
		MasterReplID:     s.cfg.MasterReplID,
		MasterReplOffset: s.cfg.MasterReplOffset,
		Keys:             s.keyspace.Len(),
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
