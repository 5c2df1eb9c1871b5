// Package rdb implements the bit-exact on-disk snapshot format: magic
// header, metadata records, a single database selector, a resize hint,
// key/value records with optional per-key expiry, a terminator, and a
// trailing CRC-64 checksum. Grounded on original_source/rdbparser.py and
// original_source/save_rdb.py for the exact layout and endianness, and
// on other_examples' upstash RDB reader for the idiomatic Go shape of a
// typed-opcode streaming parser.
package rdb

import (
	"encoding/binary"
	"log/slog"
	"os"

	"github.com/lumendb/lumen/internal/crc64sink"
	"github.com/lumendb/lumen/internal/store"
)

const magic = "REDIS0011"

// Opcodes, per spec.md §4.3.3.
const (
	opMetadata  = 0xFA
	opDBSelect  = 0xFE
	opResize    = 0xFB
	opExpireMs  = 0xFC
	opExpireSec = 0xFD
	opEOF       = 0xFF
)

// Value-type tags.
const (
	typeString = 0x00
	typeList   = 0x01
	typeSet    = 0x02
)

const minFileLen = len(magic) + 1 /* db select opcode */ + 1 /* length byte */ + 1 /* terminator */ + 8 /* crc */

// Metadata is one name/value pair written as an 0xFA record.
type Metadata struct {
	Name, Value string
}

// Write opens path for writing (creating it, or truncating an existing
// file) and emits a complete snapshot:
// the magic header, meta records, the (fixed) database-0 selector, a
// resize hint, every entry in entries, the terminator, and the trailing
// big-endian CRC-64 over everything preceding it. Unsupported value
// variants are skipped with a logged warning rather than failing the
// whole snapshot, per spec.md §4.3.5.
func Write(path string, entries []store.SnapshotEntry, meta []Metadata, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	sink := crc64sink.New(f)
	if _, err := sink.Write([]byte(magic)); err != nil {
		return err
	}

	for _, m := range meta {
		if err := writeMetadataRecord(sink, m); err != nil {
			return err
		}
	}

	if err := writeByte(sink, opDBSelect); err != nil {
		return err
	}
	if err := writeLength(sink, 0); err != nil {
		return err
	}

	expireCount := 0
	for _, e := range entries {
		if e.HasExpire {
			expireCount++
		}
	}
	if err := writeByte(sink, opResize); err != nil {
		return err
	}
	if err := writeLength(sink, uint64(len(entries))); err != nil {
		return err
	}
	if err := writeLength(sink, uint64(expireCount)); err != nil {
		return err
	}

	for _, e := range entries {
		skipped, err := writeEntry(sink, e, logger)
		if err != nil {
			return err
		}
		if skipped {
			continue
		}
	}

	if err := writeByte(sink, opEOF); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}
	var tail [8]byte
	binary.BigEndian.PutUint64(tail[:], sink.Checksum())
	_, err = f.Write(tail[:])
	return err
}

func writeByte(w *crc64sink.Sink, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeLength(w *crc64sink.Sink, n uint64) error {
	_, err := w.Write(encodeLength(nil, n))
	return err
}

func writeString(w *crc64sink.Sink, b []byte) error {
	if err := writeLength(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeMetadataRecord(w *crc64sink.Sink, m Metadata) error {
	if err := writeByte(w, opMetadata); err != nil {
		return err
	}
	if err := writeString(w, []byte(m.Name)); err != nil {
		return err
	}
	return writeString(w, []byte(m.Value))
}

// writeEntry writes one key/value record, returning skipped=true if the
// value's kind was not recognized (logged, not written).
func writeEntry(w *crc64sink.Sink, e store.SnapshotEntry, logger *slog.Logger) (bool, error) {
	if e.HasExpire {
		if err := writeByte(w, opExpireMs); err != nil {
			return false, err
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(e.ExpireMs))
		if _, err := w.Write(b[:]); err != nil {
			return false, err
		}
	}

	switch e.Value.Kind {
	case store.KindString:
		if err := writeByte(w, typeString); err != nil {
			return false, err
		}
		if err := writeString(w, []byte(e.Key)); err != nil {
			return false, err
		}
		return false, writeString(w, e.Value.Str)
	case store.KindList:
		if err := writeByte(w, typeList); err != nil {
			return false, err
		}
		if err := writeString(w, []byte(e.Key)); err != nil {
			return false, err
		}
		if err := writeLength(w, uint64(len(e.Value.List))); err != nil {
			return false, err
		}
		for _, item := range e.Value.List {
			if err := writeString(w, item); err != nil {
				return false, err
			}
		}
		return false, nil
	case store.KindSet:
		if err := writeByte(w, typeSet); err != nil {
			return false, err
		}
		if err := writeString(w, []byte(e.Key)); err != nil {
			return false, err
		}
		if err := writeLength(w, uint64(len(e.Value.Set))); err != nil {
			return false, err
		}
		for _, item := range e.Value.Set {
			if err := writeString(w, []byte(item)); err != nil {
				return false, err
			}
		}
		return false, nil
	default:
		logger.Warn("rdb: skipping unsupported value variant", "key", e.Key, "kind", e.Value.Kind)
		return true, nil
	}
}

// Load reads the snapshot at path, verifies its trailing checksum, and
// populates ks with every record. An expiration already in the past at
// load time is dropped (the value is kept, no expiry entry installed),
// per spec.md §4.3.4.
func Load(path string, ks *store.Keyspace) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < minFileLen {
		return newFormatErrorf("snapshot too short: %d bytes", len(data))
	}

	prefix, tail := data[:len(data)-8], data[len(data)-8:]
	want := binary.BigEndian.Uint64(tail)
	got := crc64sink.Sum(prefix)
	if want != got {
		return &ChecksumError{Want: want, Got: got}
	}

	c := cursor{data: prefix}
	if err := c.expect(magic); err != nil {
		return err
	}

	for {
		op, err := c.peekByte()
		if err != nil {
			return err
		}
		if op != opMetadata {
			break
		}
		c.readByte()
		if _, err := c.readString(); err != nil {
			return err
		}
		if _, err := c.readString(); err != nil {
			return err
		}
	}

	if err := c.expectByte(opDBSelect); err != nil {
		return err
	}
	dbIndex, err := c.readLength()
	if err != nil {
		return err
	}
	if dbIndex != 0 {
		return newFormatErrorf("unsupported database index %d", dbIndex)
	}

	if err := c.expectByte(opResize); err != nil {
		return err
	}
	mainSize, err := c.readLength()
	if err != nil {
		return err
	}
	if _, err := c.readLength(); err != nil { // expire-table size hint, unused on read
		return err
	}

	for i := uint64(0); i < mainSize; i++ {
		if err := readEntry(&c, ks); err != nil {
			return err
		}
	}

	return c.expectByte(opEOF)
}

func readEntry(c *cursor, ks *store.Keyspace) error {
	b, err := c.readByte()
	if err != nil {
		return err
	}

	var expireMs int64
	hasExpire := false
	tag := b
	switch b {
	case opExpireMs:
		raw, err := c.readBytes(8)
		if err != nil {
			return err
		}
		expireMs = int64(binary.LittleEndian.Uint64(raw))
		hasExpire = true
		tag, err = c.readByte()
		if err != nil {
			return err
		}
	case opExpireSec:
		raw, err := c.readBytes(4)
		if err != nil {
			return err
		}
		expireMs = int64(binary.LittleEndian.Uint32(raw)) * 1000
		hasExpire = true
		tag, err = c.readByte()
		if err != nil {
			return err
		}
	}

	key, err := c.readString()
	if err != nil {
		return err
	}

	var val *store.Value
	switch tag {
	case typeString:
		s, err := c.readString()
		if err != nil {
			return err
		}
		val = &store.Value{Kind: store.KindString, Str: s}
	case typeList:
		n, err := c.readLength()
		if err != nil {
			return err
		}
		items := make([][]byte, n)
		for i := range items {
			items[i], err = c.readString()
			if err != nil {
				return err
			}
		}
		val = &store.Value{Kind: store.KindList, List: items}
	case typeSet:
		n, err := c.readLength()
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, n)
		var items []string
		for i := uint64(0); i < n; i++ {
			s, err := c.readString()
			if err != nil {
				return err
			}
			if _, dup := seen[string(s)]; dup {
				continue
			}
			seen[string(s)] = struct{}{}
			items = append(items, string(s))
		}
		val = &store.Value{Kind: store.KindSet, Set: items}
	default:
		return newFormatErrorf("unsupported value-type tag %#x", tag)
	}

	ks.Restore(string(key), val, expireMs, hasExpire)
	return nil
}
