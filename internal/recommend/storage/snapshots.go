// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// IndexSnapshotName is the snapshot name used for the similarity index.
const IndexSnapshotName = "index"

const snapshotExt = ".gob.gz"

// ErrNoSnapshot is returned by Load when no version exists for a name.
var ErrNoSnapshot = errors.New("no snapshot found")

// SnapshotMetadata contains information about a stored snapshot.
type SnapshotMetadata struct {
	// Name is the snapshot name (e.g., "index").
	Name string `json:"name"`

	// Version is monotonically increasing per name.
	Version int `json:"version"`

	// BuiltAt is when the snapshotted state was built.
	BuiltAt time.Time `json:"built_at"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	ItemCount  int `json:"item_count"`
	Dimensions int `json:"dimensions"`

	// ModelVersion is the embedding model version of the vectors.
	ModelVersion string `json:"model_version,omitempty"`

	// Checksum is the SHA-256 of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// IndexEntryState is the serializable form of one index entry.
type IndexEntryState struct {
	ItemID      string
	AuthorID    string
	Category    string
	Tags        []string
	AccessTier  int
	Status      string
	PublishedAt time.Time
	Quality     float64
	Vector      []float32
}

// IndexState is the serializable state of the similarity index.
type IndexState struct {
	Entries      []IndexEntryState
	ModelVersion string
	BuiltAt      time.Time
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       SnapshotMetadata
	CompressedData []byte
}

// Store manages snapshot files in one directory.
type Store struct {
	baseDir  string
	mu       sync.RWMutex
	versions map[string]int
}

// NewStore creates a store rooted at baseDir, creating the directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan existing snapshots: %w", err)
	}
	return s, nil
}

// listVersions returns name -> versions found on disk.
func (s *Store) listVersions() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		name, version := parseFilename(strings.TrimSuffix(entry.Name(), snapshotExt))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}
	return out, nil
}

func (s *Store) scan() error {
	found, err := s.listVersions()
	if err != nil {
		return err
	}
	for name, versions := range found {
		for _, v := range versions {
			if v > s.versions[name] {
				s.versions[name] = v
			}
		}
	}
	return nil
}

// parseFilename splits "index_v3" into ("index", 3).
func parseFilename(base string) (name string, version int) {
	i := strings.LastIndex(base, "_v")
	if i <= 0 {
		return "", 0
	}
	if _, err := fmt.Sscanf(base[i+2:], "%d", &version); err != nil || version < 1 {
		return "", 0
	}
	return base[:i], version
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, snapshotExt))
}

// NextVersion returns the version a new snapshot of name should use.
func (s *Store) NextVersion(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[name] + 1
}

// LatestVersion returns the newest version of name.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[name]
	return v, ok
}

// Save writes data as version of name.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, data interface{}, meta SnapshotMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if version < 1 {
		return fmt.Errorf("snapshot version must be positive, got %d", version)
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.path(name, version)
	tmp, err := os.CreateTemp(s.baseDir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // sync error takes precedence
		return fmt.Errorf("sync snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("install snapshot file: %w", err)
	}

	if version > s.versions[name] {
		s.versions[name] = version
	}
	return nil
}

// Load decodes version of name into target. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int, target interface{}) (*SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		if version, ok = s.versions[name]; !ok {
			return nil, fmt.Errorf("%w for %s", ErrNoSnapshot, name)
		}
	}

	sf, err := readFile(s.path(name, version))
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &sf.Metadata, nil
}

func readFile(path string) (*storedFile, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the store directory and a version number
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return &sf, nil
}

// List returns metadata for the latest version of every snapshot name.
func (s *Store) List(ctx context.Context) ([]SnapshotMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SnapshotMetadata, 0, len(s.versions))
	for name, version := range s.versions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sf, err := readFile(s.path(name, version))
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Prune removes all but the newest keep versions of name.
func (s *Store) Prune(ctx context.Context, name string, keep int) error {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.listVersions()
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}
	versions := found[name]
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for i := keep; i < len(versions); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = os.Remove(s.path(name, versions[i])) //nolint:errcheck // best-effort cleanup of old versions
	}
	return nil
}
