// Command lumen is a Redis-inspired in-memory key-value store with a
// subset of the RESP wire protocol, TTL expiry, RDB-style snapshots,
// and a minimal replica handshake (spec.md §1-§9).
//
// Usage:
//
//	lumen [flags]
//
// Flags:
//
//	--port int           TCP listen port (default 6379)
//	--dir string         directory for snapshot files (default "/tmp/redis-data")
//	--dbfilename string  snapshot filename within --dir (default "dump.rdb")
//	--replicaof string   run as replica of "<host> <port>"
//	--status-addr string address for the read-only status endpoint (default "127.0.0.1:0")
//	--seq-url string     optional Seq server URL for structured log shipping
//	-version             show version and exit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumendb/lumen/internal/config"
	"github.com/lumendb/lumen/internal/dispatch"
	"github.com/lumendb/lumen/internal/logging"
	"github.com/lumendb/lumen/internal/rdb"
	"github.com/lumendb/lumen/internal/replica"
	"github.com/lumendb/lumen/internal/server"
	"github.com/lumendb/lumen/internal/status"
	"github.com/lumendb/lumen/internal/store"
	"github.com/lumendb/lumen/internal/version"
)

func main() {
	for _, a := range os.Args[1:] {
		if a == "-version" || a == "--version" {
			fmt.Printf("lumen v%s (built %s)\n", version.Version, version.BuildTime)
			return
		}
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "lumen: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := logging.New(cfg.SeqURL)
	defer cleanup()

	fmt.Println(`
  _
 | |_   _ _ __ ___   ___ _ __
 | | | | | '_ ' _ \ / _ \ '_ \
 | | |_| | | | | | |  __/ | | |
 |_|\__,_|_| |_| |_|\___|_| |_|
                               `)
	logger.Info("lumen starting", "version", version.Version, "role", cfg.Role, "dir", cfg.Dir, "port", cfg.Port)

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		logger.Error("failed to create snapshot directory", "dir", cfg.Dir, "err", err)
		os.Exit(1)
	}

	ks := store.New()
	defer ks.Close()

	if _, err := os.Stat(cfg.SnapshotPath()); err == nil {
		if err := rdb.Load(cfg.SnapshotPath(), ks); err != nil {
			logger.Error("failed to load snapshot at startup", "path", cfg.SnapshotPath(), "err", err)
			os.Exit(1)
		}
		logger.Info("loaded snapshot", "path", cfg.SnapshotPath(), "keys", ks.Len())
	}

	d := dispatch.New(ks, cfg, logger)
	srv := server.New(fmt.Sprintf("127.0.0.1:%d", cfg.Port), d, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	statusSrv := status.New(cfg, ks)
	if addr, err := statusSrv.Start(ctx, cfg.StatusAddr); err != nil {
		logger.Error("status endpoint failed to start", "err", err)
	} else if addr != nil {
		logger.Info("status endpoint listening", "addr", addr.String())
	}

	if cfg.Role == config.RoleReplica {
		go func() {
			primaryAddr := fmt.Sprintf("%s:%d", cfg.MasterHost, cfg.MasterPort)
			if err := replica.Handshake(primaryAddr, cfg.Port, logger); err != nil {
				logger.Error("replication handshake failed", "primary", primaryAddr, "err", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}

	logger.Info("lumen shutdown complete")
}
