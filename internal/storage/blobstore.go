// Package storage implements the Blob Store (component A): a
// content-addressed file store sharded on disk by UUID prefix, with a
// gzip sibling maintained alongside every committed file.
//
// Hashing is MD5 over the full byte sequence, used for deduplication, not
// security — grounded in storage.rs's StorageHandler. Gzip and MD5 are the
// two stdlib exceptions to this repository's "prefer the ecosystem"
// convention: no third-party package in the example pack, nor anywhere in
// the wider ecosystem, improves on crypto/md5 or compress/gzip for these
// exact primitives (see DESIGN.md).
package storage

import (
	"compress/gzip"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileInfo describes the on-disk location and identity of a blob-store
// file, mirroring the original FileInformation record.
type FileInfo struct {
	SourceFilename string
	SourcePath     string
	DestFilename   string // "{hash}-{filename}"
	DestPath       string // shard directory, relative to storage root
	FileHash       string // hex MD5
	CompressedSize int64
}

// Store is the Blob Store handle, parameterized by its root and temp
// directories and the shard depth.
type Store struct {
	Root  string
	Temp  string
	Depth uint8
}

// New returns a Store and ensures both the root and temp directories
// exist (Init in the base contract).
func New(root, temp string, depth uint8) (*Store, error) {
	s := &Store{Root: root, Temp: temp, Depth: depth}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init ensures the root and temp directories exist.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("storage: init root: %w", err)
	}
	if err := os.MkdirAll(s.Temp, 0o755); err != nil {
		return fmt.Errorf("storage: init temp: %w", err)
	}
	return nil
}

// ShardPath returns c1/c2/.../c_depth where ci is the i-th character of
// the UUID's canonical string representation (hyphens included, matching
// the original's character-by-character split). depth 0 yields "".
func ShardPath(id uuid.UUID, depth uint8) string {
	s := id.String()
	if int(depth) > len(s) {
		depth = uint8(len(s))
	}
	parts := make([]string, 0, depth)
	for _, r := range s[:depth] {
		parts = append(parts, string(r))
	}
	return filepath.Join(parts...)
}

// GetMD5Hash returns the hex-encoded MD5 digest of data.
func GetMD5Hash(data []byte) string {
	sum := md5.Sum(data)
	return fmt.Sprintf("%x", sum)
}

// GetDestFilename returns "{hash}-{filename}".
func GetDestFilename(hash, filename string) string {
	return hash + "-" + filename
}

func (s *Store) destFilePath(destPath, destFilename string) string {
	return filepath.Join(s.Root, destPath, destFilename)
}

func (s *Store) tempFilePath(destFilename string) string {
	return filepath.Join(s.Temp, destFilename)
}

// GetFolderDepthFromPath recovers the shard depth by counting
// non-empty path components, after optionally stripping a trailing
// filename component. Boundary behavior: depth_from_path(p, Some(filename))
// is one less than depth_from_path(p, None) when p ends in filename.
func GetFolderDepthFromPath(p string, filename string) int {
	if filename != "" && strings.HasSuffix(strings.TrimRight(p, "/"), filename) {
		p = filepath.Dir(strings.TrimRight(p, "/"))
	}
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "/"))
}

// WriteFileToUUIDFolder shards by uuid/depth, computes the MD5 hash,
// writes the bytes under root, and produces a gzip sibling at best
// compression. Source_path mirrors the original's (admittedly odd)
// convention of reusing the filename, kept verbatim for fidelity.
func (s *Store) WriteFileToUUIDFolder(id uuid.UUID, filename string, data []byte) (FileInfo, error) {
	shardDir := ShardPath(id, s.Depth)
	dir := filepath.Join(s.Root, shardDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("storage: write: mkdir: %w", err)
	}

	hash := GetMD5Hash(data)
	destFilename := GetDestFilename(hash, filename)
	path := filepath.Join(dir, destFilename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return FileInfo{}, fmt.Errorf("storage: write: %w", err)
	}
	gzSize, err := gzipFile(path, data)
	if err != nil {
		return FileInfo{}, fmt.Errorf("storage: write: gzip: %w", err)
	}

	return FileInfo{
		SourceFilename: filename,
		SourcePath:     filename,
		DestFilename:   destFilename,
		DestPath:       shardDir,
		FileHash:       hash,
		CompressedSize: gzSize,
	}, nil
}

// CreateTempFile creates an empty temp file for a pending upload session,
// failing if one already exists at that path.
func (s *Store) CreateTempFile(destFilename string) error {
	path := s.tempFilePath(destFilename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	return f.Close()
}

// AppendBytesToFile appends to a pre-created temp file. Safe to retry with
// identical offset — the caller enforces offset discipline.
func (s *Store) AppendBytesToFile(destFilename string, data []byte) error {
	path := s.tempFilePath(destFilename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("storage: append: %w", ErrFileNotFound)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storage: append: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("storage: append: write: %w", err)
	}
	return f.Sync()
}

// Promote renames the temp file under root/destPath/destFilename, creating
// intermediate directories, then produces the .gz sibling. Returns the
// gzip sibling's size in bytes.
func (s *Store) Promote(destPath, destFilename string) (int64, error) {
	dest := s.destFilePath(destPath, destFilename)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("storage: promote: mkdir: %w", err)
	}
	temp := s.tempFilePath(destFilename)
	if err := os.Rename(temp, dest); err != nil {
		return 0, fmt.Errorf("storage: promote: rename: %w", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return 0, fmt.Errorf("storage: promote: read: %w", err)
	}
	return gzipFile(dest, data)
}

// Delete removes the physical file and its gzip sibling under
// root/ShardPath(id, depth)/destFilename.
func (s *Store) Delete(id uuid.UUID, destFilename string) error {
	dir := filepath.Join(s.Root, ShardPath(id, s.Depth))
	path := filepath.Join(dir, destFilename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete: %w", err)
	}
	gzPath := gzipSiblingPath(path)
	if err := os.Remove(gzPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete: gz sibling: %w", err)
	}
	return nil
}

// Read returns the bytes of the physical file under root/destPath/destFilename.
func (s *Store) Read(destPath, destFilename string) ([]byte, error) {
	path := s.destFilePath(destPath, destFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("storage: read: %w", err)
	}
	return data, nil
}

// AbsolutePath returns the absolute on-disk path of a committed file,
// used by the Clone Engine when substituting $CONTENTi tokens.
func (s *Store) AbsolutePath(destPath, hash, filename string) string {
	return filepath.Join(s.Root, destPath, hash+"-"+filename)
}

func gzipSiblingPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".gz"
	}
	return strings.TrimSuffix(path, ext) + ext + ".gz"
}

func gzipFile(path string, data []byte) (int64, error) {
	gzPath := gzipSiblingPath(path)
	f, err := os.Create(gzPath)
	if err != nil {
		return 0, fmt.Errorf("gzip sibling: create: %w", err)
	}
	defer f.Close()

	w, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return 0, fmt.Errorf("gzip sibling: writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("gzip sibling: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("gzip sibling: close: %w", err)
	}

	fi, err := os.Stat(gzPath)
	if err != nil {
		return 0, fmt.Errorf("gzip sibling: stat: %w", err)
	}
	return fi.Size(), nil
}

// ReadGzipSibling decompresses the .gz sibling of a committed file, used
// by round-trip tests to verify invariant 1.
func ReadGzipSibling(path string) ([]byte, error) {
	f, err := os.Open(gzipSiblingPath(path))
	if err != nil {
		return nil, fmt.Errorf("gzip sibling: open: %w", err)
	}
	defer f.Close()
	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gzip sibling: reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ErrFileNotFound is returned when a physical blob-store file is missing.
var ErrFileNotFound = fmt.Errorf("storage: file not found")
