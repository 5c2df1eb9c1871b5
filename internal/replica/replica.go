// Package replica implements the replica-side replication handshake
// (spec.md §4.7): four fire-and-forget messages sent to the configured
// primary, awaiting a single-line reply between sends. It does not
// install a replication stream nor apply received commands.
package replica

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/lumendb/lumen/internal/protocol"
)

const dialTimeout = 5 * time.Second

// Handshake dials addr (the configured primary) and performs the
// four-message handshake in order: PING, REPLCONF listening-port,
// REPLCONF capa psync2, PSYNC ? -1. Each send awaits any single-line
// reply before the next. The connection is closed on return; the
// handshake exists only so that a primary implementing §4.6 can be
// tested against a conforming replica.
func Handshake(addr string, listeningPort int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("replica: dial %s: %w", addr, err)
	}
	defer conn.Close()

	w := protocol.NewWriter(conn)
	r := bufio.NewReader(conn)

	steps := []protocol.Frame{
		protocol.NewArray([]byte("PING")),
		protocol.NewArray([]byte("REPLCONF"), []byte("listening-port"), []byte(fmt.Sprintf("%d", listeningPort))),
		protocol.NewArray([]byte("REPLCONF"), []byte("capa"), []byte("psync2")),
		protocol.NewArray([]byte("PSYNC"), []byte("?"), []byte("-1")),
	}

	for _, step := range steps {
		if err := w.WriteFrame(step); err != nil {
			return fmt.Errorf("replica: send: %w", err)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("replica: await reply: %w", err)
		}
		logger.Debug("replica: handshake step reply", "reply", line)
	}

	logger.Info("replica: handshake complete", "primary", addr)
	return nil
}
