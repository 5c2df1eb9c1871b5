// Package dispatch implements the command dispatcher: it matches the
// first array element of a decoded request frame against the closed
// command table of spec.md §4.6 and drives the keyspace, snapshot
// codec, and configuration accordingly. Grounded on the teacher's
// per-command argument-validation blocks in internal/server/server.go
// (message phrasing, wrong-arity checks), trimmed to the eleven
// commands this spec recognizes.
package dispatch

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lumendb/lumen/internal/config"
	"github.com/lumendb/lumen/internal/protocol"
	"github.com/lumendb/lumen/internal/rdb"
	"github.com/lumendb/lumen/internal/store"
	"github.com/lumendb/lumen/internal/version"
)

// Dispatcher holds the shared state every command handler needs.
type Dispatcher struct {
	ks     *store.Keyspace
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a Dispatcher over the given keyspace and configuration.
func New(ks *store.Keyspace, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{ks: ks, cfg: cfg, logger: logger}
}

// Handle dispatches one decoded request frame, writing its response
// through w. It returns quit=true when the connection should be closed
// after the response is flushed (QUIT/EXIT).
func (d *Dispatcher) Handle(req protocol.Frame, w *protocol.Writer) (quit bool, err error) {
	if req.Type != protocol.TypeArray || len(req.Array) == 0 {
		return false, w.WriteError("ERR Invalid command")
	}

	cmd := strings.ToUpper(string(argBytes(req.Array[0])))
	args := req.Array[1:]

	switch cmd {
	case "PING":
		return false, d.cmdPing(args, w)
	case "ECHO":
		return false, d.cmdEcho(args, w)
	case "SET":
		return false, d.cmdSet(args, w)
	case "GET":
		return false, d.cmdGet(args, w)
	case "CONFIG":
		return false, d.cmdConfig(args, w)
	case "SAVE":
		return false, d.cmdSave(args, w)
	case "KEYS":
		return false, d.cmdKeys(args, w)
	case "INFO":
		return false, d.cmdInfo(args, w)
	case "REPLCONF":
		return false, d.cmdReplConf(args, w)
	case "PSYNC":
		return false, d.cmdPsync(args, w)
	case "QUIT", "EXIT":
		return true, w.WriteSimpleString("OK")
	default:
		return false, w.WriteError("ERR Unknown command")
	}
}

func argBytes(f protocol.Frame) []byte {
	if f.Null {
		return nil
	}
	return f.Bulk
}

func wrongArity(cmd string) string {
	return fmt.Sprintf("ERR wrong number of arguments for '%s' command", cmd)
}

func (d *Dispatcher) cmdPing(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 0 {
		return w.WriteError(wrongArity("PING"))
	}
	return w.WriteSimpleString("PONG")
}

func (d *Dispatcher) cmdEcho(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 1 {
		return w.WriteError(wrongArity("ECHO"))
	}
	return w.WriteBulkString(argBytes(args[0]))
}

func (d *Dispatcher) cmdSet(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 2 && len(args) != 4 {
		return w.WriteError(wrongArity("SET"))
	}
	key := string(argBytes(args[0]))
	value := argBytes(args[1])

	var ttlMs int64
	if len(args) == 4 {
		opt := strings.ToUpper(string(argBytes(args[2])))
		if opt != "PX" {
			return w.WriteError("ERR syntax error")
		}
		ms, err := strconv.ParseInt(string(argBytes(args[3])), 10, 64)
		if err != nil || ms <= 0 {
			return w.WriteError("ERR PX value is not an integer or out of range")
		}
		ttlMs = ms
	}

	d.ks.Set(key, value, ttlMs)
	return w.WriteSimpleString("OK")
}

func (d *Dispatcher) cmdGet(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 1 {
		return w.WriteError(wrongArity("GET"))
	}
	val, ok := d.ks.Get(string(argBytes(args[0])))
	if !ok {
		return w.WriteNull()
	}
	return w.WriteBulkString(val)
}

func (d *Dispatcher) cmdConfig(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 2 || strings.ToUpper(string(argBytes(args[0]))) != "GET" {
		return w.WriteError(wrongArity("CONFIG"))
	}
	param := strings.ToLower(string(argBytes(args[1])))
	value, ok := d.configValue(param)
	if !ok {
		return w.WriteError("ERR Unknown configuration parameter")
	}
	return w.WriteStringArray([]string{param, value})
}

func (d *Dispatcher) configValue(param string) (string, bool) {
	switch param {
	case "dir":
		return d.cfg.Dir, true
	case "dbfilename":
		return d.cfg.DBFilename, true
	case "port":
		return strconv.Itoa(d.cfg.Port), true
	case "role":
		return d.cfg.Role, true
	case "master_host":
		return d.cfg.MasterHost, true
	case "master_port":
		return strconv.Itoa(d.cfg.MasterPort), true
	case "master_replid":
		return d.cfg.MasterReplID, true
	case "master_repl_offset":
		return strconv.FormatInt(d.cfg.MasterReplOffset, 10), true
	default:
		return "", false
	}
}

func (d *Dispatcher) cmdSave(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 0 {
		return w.WriteError(wrongArity("SAVE"))
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		d.logger.Error("save: mkdir failed", "dir", d.cfg.Dir, "err", err)
		return w.WriteError("ERR Failed to save RDB file")
	}
	entries := d.ks.Snapshot()
	meta := []rdb.Metadata{{Name: "lumen-ver", Value: version.Version}}
	if err := rdb.Write(d.cfg.SnapshotPath(), entries, meta, d.logger); err != nil {
		d.logger.Error("save: write failed", "path", d.cfg.SnapshotPath(), "err", err)
		return w.WriteError("ERR Failed to save RDB file")
	}
	return w.WriteSimpleString("OK")
}

func (d *Dispatcher) cmdKeys(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 1 {
		return w.WriteError(wrongArity("KEYS"))
	}
	keys := d.ks.Keys(string(argBytes(args[0])))
	return w.WriteStringArray(keys)
}

func (d *Dispatcher) cmdInfo(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 1 || strings.ToLower(string(argBytes(args[0]))) != "replication" {
		return w.WriteError(wrongArity("INFO"))
	}
	body := fmt.Sprintf("# Replication\r\nrole:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		wireRole(d.cfg.Role), d.cfg.MasterReplID, d.cfg.MasterReplOffset)
	return w.WriteBulkString([]byte(body))
}

// wireRole renders the Configuration role ("primary"/"replica") in the
// INFO command's Redis-convention vocabulary ("master"/"slave"), per
// spec.md scenario S6. See DESIGN.md for the reconciliation of this
// against §6's "role:<primary|replica>" template.
func wireRole(role string) string {
	if role == config.RoleReplica {
		return "slave"
	}
	return "master"
}

func (d *Dispatcher) cmdReplConf(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 2 {
		return w.WriteError(wrongArity("REPLCONF"))
	}
	return w.WriteSimpleString("OK")
}

func (d *Dispatcher) cmdPsync(args []protocol.Frame, w *protocol.Writer) error {
	if len(args) != 2 {
		return w.WriteError(wrongArity("PSYNC"))
	}
	if err := w.WriteSimpleString(fmt.Sprintf("FULLRESYNC %s 0", d.cfg.MasterReplID)); err != nil {
		return err
	}

	data, err := os.ReadFile(d.cfg.SnapshotPath())
	if err != nil {
		data = nil
	}
	if err := w.WriteBulkHeader(len(data)); err != nil {
		return err
	}
	return w.WriteRaw(data)
}
