package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestShardPathDepth(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000000")
	require.Equal(t, "", ShardPath(id, 0))
	require.Equal(t, filepath.Join("0", "0", "0", "0"), ShardPath(id, 4))
}

func TestGetFolderDepthFromPath(t *testing.T) {
	cases := []struct {
		path     string
		filename string
		want     int
	}{
		{"0/0/0/0/", "", 4},
		{"/0/0/0/0", "", 4},
		{"0/0/0/0/some_file.txt", "", 5},
		{"0/0/0/0/some_file.txt", "some_file.txt", 4},
		{"", "", 0},
	}
	for _, c := range cases {
		got := GetFolderDepthFromPath(c.path, c.filename)
		require.Equalf(t, c.want, got, "path=%q filename=%q", c.path, c.filename)
	}
}

func TestWriteAndGzipSiblingRoundTrip(t *testing.T) {
	root := t.TempDir()
	temp := t.TempDir()
	s, err := New(root, temp, 4)
	require.NoError(t, err)

	id := uuid.New()
	data := []byte("the quick brown fox jumps over the lazy dog")
	info, err := s.WriteFileToUUIDFolder(id, "fox.txt", data)
	require.NoError(t, err)
	require.Equal(t, GetMD5Hash(data)+"-fox.txt", info.DestFilename)

	got, err := s.Read(info.DestPath, info.DestFilename)
	require.NoError(t, err)
	require.Equal(t, data, got)

	path := filepath.Join(root, info.DestPath, info.DestFilename)
	gzData, err := ReadGzipSibling(path)
	require.NoError(t, err)
	require.Equal(t, data, gzData)
}

func TestTempUploadAndPromote(t *testing.T) {
	root := t.TempDir()
	temp := t.TempDir()
	s, err := New(root, temp, 2)
	require.NoError(t, err)

	destFilename := "deadbeef-chunked.bin"
	require.NoError(t, s.CreateTempFile(destFilename))
	require.Error(t, s.CreateTempFile(destFilename)) // O_EXCL: already exists

	require.NoError(t, s.AppendBytesToFile(destFilename, []byte("hello ")))
	require.NoError(t, s.AppendBytesToFile(destFilename, []byte("world")))

	gzSize, err := s.Promote("ab/cd", destFilename)
	require.NoError(t, err)
	require.Greater(t, gzSize, int64(0))

	_, err = os.Stat(filepath.Join(temp, destFilename))
	require.True(t, os.IsNotExist(err))

	got, err := s.Read("ab/cd", destFilename)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestAppendMissingTempFile(t *testing.T) {
	s, err := New(t.TempDir(), t.TempDir(), 2)
	require.NoError(t, err)
	err = s.AppendBytesToFile("not-created.bin", []byte("x"))
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteRemovesMainAndGzipSibling(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, t.TempDir(), 4)
	require.NoError(t, err)

	id := uuid.New()
	info, err := s.WriteFileToUUIDFolder(id, "shot.bin", []byte{1, 2, 3})
	require.NoError(t, err)

	require.NoError(t, s.Delete(id, info.DestFilename))

	_, err = s.Read(info.DestPath, info.DestFilename)
	require.ErrorIs(t, err, ErrFileNotFound)
	_, err = os.Stat(filepath.Join(root, info.DestPath, info.DestFilename+".gz"))
	require.True(t, os.IsNotExist(err))
}
