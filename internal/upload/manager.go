// Package upload implements the Upload Session Manager (component D): a
// TUS-like resumable chunked upload protocol backed by the Blob Store's
// temp directory. Grounded in tus.rs's pending-upload map and handlers.
//
// Go's mutexes cannot be poisoned — a panicking goroutine still releases
// the lock via defer — so unlike the original's poison-recovery branch,
// a plain sync.RWMutex-guarded map is the whole implementation.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/google/uuid"
)

// Session is a single pending resumable upload.
type Session struct {
	ID           uuid.UUID
	Filename     string
	DestFilename string // "{uuid}-{filename}", the temp-file key
	TotalSize    int64
	Offset       int64
	ContentType  string
}

// Manager tracks pending upload sessions in memory. A process restart
// loses in-flight sessions — callers must re-create from offset 0, the
// same recovery story as the original's in-memory pending map.
type Manager struct {
	store *storage.Store

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	maxChunkSize int64
}

// New returns a Manager bound to the given Blob Store.
func New(store *storage.Store, maxChunkSize int64) *Manager {
	return &Manager{
		store:        store,
		sessions:     make(map[uuid.UUID]*Session),
		maxChunkSize: maxChunkSize,
	}
}

// Create starts a new upload session, pre-allocating a temp file keyed by
// a fresh UUID.
func (m *Manager) Create(filename, contentType string, totalSize int64) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apierr.Internal("generate upload id", err)
	}
	destFilename := id.String() + "-" + filename
	if err := m.store.CreateTempFile(destFilename); err != nil {
		return nil, apierr.Storage("create temp file", err)
	}

	s := &Session{
		ID:           id,
		Filename:     filename,
		DestFilename: destFilename,
		TotalSize:    totalSize,
		ContentType:  contentType,
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Head returns the current offset of a pending session, matching the TUS
// HEAD semantics (the caller falls back to a committed File's size if no
// pending session exists for id — that lookup belongs to the catalog
// layer, not here).
func (m *Manager) Head(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apierr.NotFound("no pending upload session", nil)
	}
	copy := *s
	return &copy, nil
}

// Patch appends data to the session at the given offset. The offset must
// match the session's current offset exactly (409), the chunk must not
// exceed the configured max chunk size (403), and contentType must match
// the session's declared content type (415).
func (m *Manager) Patch(ctx context.Context, id uuid.UUID, offset int64, contentType string, data []byte) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, apierr.NotFound("no pending upload session", nil)
	}
	if s.Offset != offset {
		m.mu.Unlock()
		return nil, apierr.Conflict(fmt.Sprintf("offset mismatch: session at %d, request gave %d", s.Offset, offset), nil)
	}
	if int64(len(data)) > m.maxChunkSize {
		m.mu.Unlock()
		return nil, apierr.Forbidden(fmt.Sprintf("chunk of %d bytes exceeds max chunk size %d", len(data), m.maxChunkSize), nil)
	}
	if s.ContentType != "" && contentType != s.ContentType {
		m.mu.Unlock()
		return nil, apierr.UnsupportedMedia(fmt.Sprintf("content-type mismatch: session declared %q, request gave %q", s.ContentType, contentType), nil)
	}
	destFilename := s.DestFilename
	m.mu.Unlock()

	if err := m.store.AppendBytesToFile(destFilename, data); err != nil {
		return nil, apierr.Storage("append chunk", err)
	}

	m.mu.Lock()
	s, ok = m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, apierr.NotFound("session removed mid-upload", nil)
	}
	s.Offset += int64(len(data))
	copy := *s
	m.mu.Unlock()
	return &copy, nil
}

// Commit promotes the session's temp file into the Blob Store and removes
// the session. onCommit is the caller's catalog insert (the resources
// handler inserts the File row); if it fails, the session is retained —
// not removed — and the promoted file is moved back into the temp
// directory so the caller can retry the commit without re-uploading,
// matching the original's commit-then-insert-then-remove ordering.
func (m *Manager) Commit(ctx context.Context, id uuid.UUID, destPath string, onCommit func(storage.FileInfo) error) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return apierr.NotFound("no pending upload session", nil)
	}

	gzSize, err := m.store.Promote(destPath, s.DestFilename)
	if err != nil {
		return apierr.Storage("promote upload", err)
	}

	info := storage.FileInfo{
		SourceFilename: s.Filename,
		SourcePath:     s.Filename,
		DestFilename:   s.DestFilename,
		DestPath:       destPath,
		CompressedSize: gzSize,
	}
	if err := onCommit(info); err != nil {
		dest := filepath.Join(m.store.Root, destPath, s.DestFilename)
		_ = os.Rename(dest, filepath.Join(m.store.Temp, s.DestFilename))
		_ = os.Remove(dest + ".gz")
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Abandon discards a pending session without promoting it. The temp file
// is left for an out-of-band sweep, matching the original's lack of an
// explicit abandon path (cleanup is a maintenance concern, not a protocol
// guarantee).
func (m *Manager) Abandon(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
