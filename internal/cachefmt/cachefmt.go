// Package cachefmt is the two-tier disk cache artifact (spec §4.4): a
// per-file parse cache keyed by (path, mtime, size), and a whole-graph
// snapshot gated by a resolver-configuration fingerprint. Writes are
// atomic via a sibling temp file + rename.
package cachefmt

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

// magic identifies a chainsaw cache artifact; anything else is a miss.
var magic = [4]byte{'C', 'S', 'A', 'W'}

// Version is bumped whenever the envelope shape changes incompatibly. A
// mismatched version is always treated as a miss, never a misread
// (spec §4.4).
const Version uint32 = 1

// FileName is the cache artifact's well-known name under the project root.
const FileName = ".chainsaw.cache"

// CachedParse is the tier-1 value: one file's raw imports plus its size,
// valid only while the identity triple (path, mtime, size) is unchanged.
type CachedParse struct {
	MtimeNanos int64             `msgpack:"mtime_nanos"`
	Size       int64             `msgpack:"size"`
	Imports    []model.RawImport `msgpack:"imports"`
}

// CachedMtime is the identity half of a CachedParse, used to validate tier-2
// without re-deserializing the imports.
type CachedMtime struct {
	MtimeNanos int64 `msgpack:"mtime_nanos"`
	Size       int64 `msgpack:"size"`
}

// CachedGraph is the tier-2 value: a full graph snapshot plus everything
// needed to validate it cheaply without re-walking the tree.
type CachedGraph struct {
	Entry                string                 `msgpack:"entry"`
	Modules              []model.Module         `msgpack:"modules"`
	Edges                []model.Edge           `msgpack:"edges"`
	FileMtimes           map[string]CachedMtime `msgpack:"file_mtimes"`
	UnresolvedSpecifiers []string               `msgpack:"unresolved_specifiers"`
}

// Envelope is the full on-disk payload, independent of the magic/version
// framing that wraps it.
type Envelope struct {
	Fingerprint string                 `msgpack:"fingerprint"`
	ParseCache  map[string]CachedParse `msgpack:"parse_cache"`
	Graph       *CachedGraph           `msgpack:"graph"`
}

// Load reads the cache artifact at path. A missing file, a bad magic, or a
// version mismatch are all reported as (nil, false, nil) — a cache miss,
// never an error (spec §4.4, §7: "Cache read failure — treated as cache
// miss; rebuild from scratch; no warning unless verbose").
func Load(path string) (*Envelope, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, nil
	}
	if len(data) < 4+4+4 {
		return nil, false, nil
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, false, nil
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != Version {
		return nil, false, nil
	}
	bodyLen := binary.BigEndian.Uint32(data[8:12])
	body := data[12:]
	if uint32(len(body)) < bodyLen {
		return nil, false, nil
	}
	var env Envelope
	if err := msgpack.Unmarshal(body[:bodyLen], &env); err != nil {
		return nil, false, nil
	}
	return &env, true, nil
}

// Save serializes env and writes it atomically: a sibling temp file is
// written and fsynced, then renamed over path (spec §4.4, §6).
func Save(path string, env *Envelope) error {
	body, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	var versionBuf, lenBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], Version)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(versionBuf[:])
	buf.Write(lenBuf[:])
	buf.Write(body)

	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".chainsaw.cache.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp cache file: %w", err)
	}
	return nil
}

// ErrFingerprintMismatch signals tier-2 was rejected because the resolver
// configuration changed; callers fall back to a tier-1 rebuild of edges.
var ErrFingerprintMismatch = errors.New("cachefmt: fingerprint mismatch")

// Fingerprint hashes everything that affects resolution: project roots,
// tool version, and any flag that changes how edges are built
// (spec DESIGN NOTES: "must include project roots, tool version, and any
// flag that affects resolution; otherwise a cache built under one flag
// set could be reused under another").
func Fingerprint(toolVersion string, roots []string, includeDynamic bool) string {
	h := sha256.New()
	io.WriteString(h, toolVersion)
	io.WriteString(h, fmt.Sprintf("|%v|", includeDynamic))
	sorted := append([]string(nil), roots...)
	sort.Strings(sorted)
	for _, r := range sorted {
		io.WriteString(h, r)
		io.WriteString(h, "|")
	}
	return hex.EncodeToString(h.Sum(nil))
}
