package mount

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSector(t *testing.T, bootOp byte, signature bool) string {
	t.Helper()
	sector := make([]byte, 512)
	sector[0] = bootOp
	if signature {
		sector[510] = 0x55
		sector[511] = 0xAA
	}
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, sector, 0o644))
	return path
}

func TestIsDiskImageRecognizesMBRBootSignature(t *testing.T) {
	path := writeSector(t, 0xEB, true)
	require.True(t, IsDiskImage(path))
}

func TestIsDiskImageRejectsMissingBootSignature(t *testing.T) {
	path := writeSector(t, 0xEB, false)
	require.False(t, IsDiskImage(path))
}

func TestIsDiskImageRejectsNonBootOpcode(t *testing.T) {
	path := writeSector(t, 0x00, true)
	require.False(t, IsDiskImage(path))
}

func TestIsDiskImageRejectsMissingFile(t *testing.T) {
	require.False(t, IsDiskImage(filepath.Join(t.TempDir(), "nope.img")))
}

func TestIsDiskImageRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.img")
	require.NoError(t, os.WriteFile(path, []byte{0xEB, 0x00, 0x00}, 0o644))
	require.False(t, IsDiskImage(path))
}
