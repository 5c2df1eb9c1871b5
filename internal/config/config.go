// Package config builds the process-wide Configuration map (spec.md §3)
// from CLI flags and owns its one-time construction at startup. Once
// built, a Config is never mutated again.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	flag "github.com/opencoff/pflag"
)

// Role values, per spec.md §3.
const (
	RolePrimary = "primary"
	RoleReplica = "replica"
)

// Config is the recognized option set from spec.md §3: dir, dbfilename,
// role, master_host, master_port, master_replid, master_repl_offset,
// port. It is built once at startup and read-only thereafter.
type Config struct {
	Dir        string
	DBFilename string
	Port       int
	StatusAddr string
	SeqURL     string

	Role             string
	MasterHost       string
	MasterPort       int
	MasterReplID     string
	MasterReplOffset int64
}

// SnapshotPath is dir joined with dbfilename.
func (c *Config) SnapshotPath() string {
	return c.Dir + "/" + c.DBFilename
}

// Parse parses args (typically os.Args[1:]) into a Config, generating a
// fresh master_replid when the process is a primary. replicaof has the
// form "<host> <port>"; its absence means role = primary.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("lumen", flag.ContinueOnError)

	dir := fs.String("dir", "/tmp/redis-data", "directory for snapshot files")
	dbfilename := fs.String("dbfilename", "dump.rdb", "snapshot filename within --dir")
	port := fs.Int("port", 6379, "TCP listen port")
	replicaof := fs.String("replicaof", "", `run as replica of the given primary, "<host> <port>"`)
	statusAddr := fs.String("status-addr", "127.0.0.1:0", "address for the read-only status endpoint (empty disables it)")
	seqURL := fs.String("seq-url", "", "optional Seq server URL for structured log shipping")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:        *dir,
		DBFilename: *dbfilename,
		Port:       *port,
		StatusAddr: *statusAddr,
		SeqURL:     *seqURL,
	}

	if *replicaof == "" {
		cfg.Role = RolePrimary
		cfg.MasterReplID = newReplID()
		cfg.MasterReplOffset = 0
		return cfg, nil
	}

	host, portStr, err := splitReplicaOf(*replicaof)
	if err != nil {
		return nil, err
	}
	masterPort, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("--replicaof: invalid port %q", portStr)
	}

	cfg.Role = RoleReplica
	cfg.MasterHost = host
	cfg.MasterPort = masterPort
	cfg.MasterReplOffset = 0
	return cfg, nil
}

func splitReplicaOf(val string) (host, port string, err error) {
	fields := strings.Fields(val)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("--replicaof: expected \"<host> <port>\", got %q", val)
	}
	return fields[0], fields[1], nil
}

// newReplID generates a 40-character alphanumeric identifier: two UUIDs
// with hyphens stripped, concatenated and truncated to 40 hex characters.
// Grounded on LeeNgari-RDBMS's uuid.New() usage pattern; the teacher
// itself has no identifier-generation need.
func newReplID() string {
	a := strings.ReplaceAll(uuid.New().String(), "-", "")
	b := strings.ReplaceAll(uuid.New().String(), "-", "")
	id := a + b
	return id[:40]
}
