package upload

import (
	"context"
	"testing"

	"github.com/gisst-archive/gisst/internal/apierr"
	"github.com/gisst-archive/gisst/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.New(t.TempDir(), t.TempDir(), 4)
	require.NoError(t, err)
	return New(store, 1<<20)
}

func TestUploadLifecycle(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create("rom.bin", "application/octet-stream", 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), s.Offset)

	s, err = m.Patch(context.Background(), s.ID, 0, "application/octet-stream", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), s.Offset)

	s, err = m.Patch(context.Background(), s.ID, 5, "application/octet-stream", []byte("world"))
	require.NoError(t, err)
	require.Equal(t, int64(10), s.Offset)

	var committed storage.FileInfo
	err = m.Commit(context.Background(), s.ID, "ab/cd", func(info storage.FileInfo) error {
		committed = info
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "rom.bin", committed.SourceFilename)

	_, err = m.Head(s.ID)
	require.Error(t, err)
}

func TestPatchOffsetMismatch(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Create("x.bin", "application/octet-stream", 4)
	require.NoError(t, err)

	_, err = m.Patch(context.Background(), s.ID, 2, "application/octet-stream", []byte("ab"))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindConflict, apiErr.Kind)
	require.Equal(t, 409, apiErr.Kind.HTTPStatus())
}

func TestPatchOversizeChunkForbidden(t *testing.T) {
	store, err := storage.New(t.TempDir(), t.TempDir(), 4)
	require.NoError(t, err)
	m := New(store, 2)
	s, err := m.Create("x.bin", "application/octet-stream", 4)
	require.NoError(t, err)

	_, err = m.Patch(context.Background(), s.ID, 0, "application/octet-stream", []byte("abc"))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindForbidden, apiErr.Kind)
	require.Equal(t, 403, apiErr.Kind.HTTPStatus())
}

func TestPatchContentTypeMismatchUnsupportedMedia(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Create("x.bin", "application/octet-stream", 4)
	require.NoError(t, err)

	_, err = m.Patch(context.Background(), s.ID, 0, "text/plain", []byte("ab"))
	require.Error(t, err)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierr.KindUnsupportedMedia, apiErr.Kind)
	require.Equal(t, 415, apiErr.Kind.HTTPStatus())
}

func TestCommitFailureRetainsSession(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Create("x.bin", "application/octet-stream", 2)
	require.NoError(t, err)
	_, err = m.Patch(context.Background(), s.ID, 0, "application/octet-stream", []byte("ab"))
	require.NoError(t, err)

	err = m.Commit(context.Background(), s.ID, "ab", func(storage.FileInfo) error {
		return apierr.Internal("simulated catalog failure", nil)
	})
	require.Error(t, err)

	_, err = m.Head(s.ID)
	require.NoError(t, err, "session must survive a failed commit for retry")
}
