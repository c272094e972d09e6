// Package snapshot implements the snapshot codec (spec §4.7): the minimum
// data needed to rerun a diff without the source tree. Small, versioned,
// and forward-compatible — unknown fields are ignored on read, which
// msgpack's reflection decoder gives for free.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

var magic = [4]byte{'C', 'S', 'S', 'N'}

// Version is bumped whenever the snapshot shape changes incompatibly.
const Version uint32 = 1

// PackageTotal is one package's static-reachable footprint.
type PackageTotal struct {
	Name  string `msgpack:"name"`
	Bytes int64  `msgpack:"bytes"`
}

// Snapshot is the full payload (spec §4.7).
type Snapshot struct {
	EntryLabel  string         `msgpack:"entry_label"`
	ToolVersion string         `msgpack:"tool_version"`
	Packages    []PackageTotal `msgpack:"packages"`
	TotalBytes  int64          `msgpack:"total_bytes"`
}

// ErrVersionMismatch is returned by Load when the on-disk version doesn't
// match, which spec §7 requires diff to fail on with a typed error,
// without touching the cache.
var ErrVersionMismatch = fmt.Errorf("snapshot: version mismatch")

// Save writes snap to path.
func Save(path string, snap *Snapshot) error {
	body, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(magic[:])
	var versionBuf, lenBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], Version)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(versionBuf[:])
	buf.Write(lenBuf[:])
	buf.Write(body)
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load reads a snapshot from path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) < 12 || !bytes.Equal(data[:4], magic[:]) {
		return nil, ErrVersionMismatch
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != Version {
		return nil, ErrVersionMismatch
	}
	bodyLen := binary.BigEndian.Uint32(data[8:12])
	body := data[12:]
	if uint32(len(body)) < bodyLen {
		return nil, ErrVersionMismatch
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(body[:bodyLen], &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
