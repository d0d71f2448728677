package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
)

func TestMemoryFSWriteReadRoundTrip(t *testing.T) {
	fs := NewMemoryFS()
	h, err := fs.Open("/greeting", OpenOptions{Write: true, Create: true})
	require.NoError(t, err)

	n, err := fs.Write(h, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, fs.Close(h))

	h, err = fs.Open("/greeting", OpenOptions{Read: true})
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = fs.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestMemoryFSWritePastEndZeroFills(t *testing.T) {
	fs := NewMemoryFS()
	h, err := fs.Open("/sparse", OpenOptions{Write: true, Create: true})
	require.NoError(t, err)

	_, err = fs.Seek(h, SeekStart, 4)
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	meta, err := fs.Metadata("/sparse")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Size)

	h, err = fs.Open("/sparse", OpenOptions{Read: true})
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := fs.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 'x'}, buf[:n])
}

func TestMemoryFSAppendStartsAtEnd(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/log", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("first "))
	require.NoError(t, fs.Close(h))

	h, err := fs.Open("/log", OpenOptions{Append: true})
	require.NoError(t, err)
	_, err = fs.Write(h, []byte("second"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	content, err := ReadAll(fs, "/log")
	require.NoError(t, err)
	assert.Equal(t, "first second", string(content))
}

func TestMemoryFSOpenMissingWithoutCreateFails(t *testing.T) {
	fs := NewMemoryFS()
	_, err := fs.Open("/nope", OpenOptions{Read: true})
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrNotFound))
}

func TestMemoryFSOpenDirectoryAsFileFails(t *testing.T) {
	fs := NewMemoryFS()
	require.NoError(t, fs.CreateDir("/etc"))
	_, err := fs.Open("/etc", OpenOptions{Read: true})
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrIsADirectory))
}

func TestMemoryFSDirectoryLifecycle(t *testing.T) {
	fs := NewMemoryFS()
	require.NoError(t, fs.CreateDir("/a"))
	require.NoError(t, fs.CreateDir("/a/b"))

	entries, err := fs.ReadDir("/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
	assert.True(t, entries[0].IsDir)

	err = fs.RemoveDir("/a")
	require.Error(t, err, "removing a non-empty directory must fail")

	require.NoError(t, fs.RemoveDir("/a/b"))
	require.NoError(t, fs.RemoveDir("/a"))
	assert.False(t, fs.Exists("/a"))
}

func TestMemoryFSRemoveRootRejected(t *testing.T) {
	fs := NewMemoryFS()
	err := fs.RemoveDir("/")
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrPermissionDenied))
}

func TestMemoryFSSymlink(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/real", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("data"))
	_ = fs.Close(h)

	require.NoError(t, fs.Symlink("/real", "/link"))
	target, err := fs.ReadLink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/real", target)

	meta, err := fs.Metadata("/link")
	require.NoError(t, err)
	assert.True(t, meta.IsSymlink)

	_, err = fs.ReadLink("/real")
	require.Error(t, err, "reading a link on a non-symlink must fail")
}

func TestMemoryFSChmodChown(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/f", OpenOptions{Write: true, Create: true})
	_ = fs.Close(h)

	require.NoError(t, fs.Chmod("/f", 0o600))
	uid := kernel.Uid(42)
	require.NoError(t, fs.Chown("/f", &uid, nil))

	meta, err := fs.Metadata("/f")
	require.NoError(t, err)
	assert.Equal(t, uint16(0o600), meta.Mode)
	assert.Equal(t, kernel.Uid(42), meta.Uid)
}

func TestMemoryFSSnapshotRestoreRoundTrip(t *testing.T) {
	fs := NewMemoryFS()
	require.NoError(t, fs.CreateDir("/etc"))
	h, _ := fs.Open("/etc/motd", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("welcome"))
	_ = fs.Close(h)
	require.NoError(t, fs.Chmod("/etc/motd", 0o640))

	snap := fs.Snapshot()
	assert.Equal(t, uint32(SnapshotVersion), snap.Version)

	restored, err := Restore(snap)
	require.NoError(t, err)

	content, err := ReadAll(restored, "/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(content))

	meta, err := restored.Metadata("/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, uint16(0o640), meta.Mode)
}

func TestMemoryFSRestoreV1SynthesisesDefaultMetadata(t *testing.T) {
	snap := Snapshot{
		Version: 1,
		Nodes: map[string]SnapshotNode{
			"/":     {Kind: nodeDir},
			"/data": {Kind: nodeDir},
		},
	}
	restored, err := Restore(snap)
	require.NoError(t, err)

	meta, err := restored.Metadata("/data")
	require.NoError(t, err)
	assert.Equal(t, uint16(0o755), meta.Mode, "v1 snapshots get synthesised default dir metadata")

	rootMeta, err := restored.Metadata("/")
	require.NoError(t, err)
	assert.Equal(t, kernel.Uid(0), rootMeta.Uid, "root keeps uid 0 even when synthesised")
}

func TestMemoryFSRestoreRejectsUnknownVersion(t *testing.T) {
	_, err := Restore(Snapshot{Version: 99})
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrInvalidData))
}

func TestMemoryFSToJSONRoundTrip(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/file", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("payload"))
	_ = fs.Close(h)

	data, err := fs.ToJSON()
	require.NoError(t, err)

	restored, err := RestoreFromJSON(data)
	require.NoError(t, err)

	content, err := ReadAll(restored, "/file")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestMemoryFSRestoreFromJSONRejectsGarbage(t *testing.T) {
	_, err := RestoreFromJSON([]byte("not json"))
	require.Error(t, err)
}

func TestMemoryFSCopyFile(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/src", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("copy me"))
	_ = fs.Close(h)

	n, err := fs.CopyFile("/src", "/dst")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	content, err := ReadAll(fs, "/dst")
	require.NoError(t, err)
	assert.Equal(t, "copy me", string(content))

	srcContent, err := ReadAll(fs, "/src")
	require.NoError(t, err)
	assert.Equal(t, "copy me", string(srcContent), "copy must not remove the source")
}

func TestMemoryFSRename(t *testing.T) {
	fs := NewMemoryFS()
	h, _ := fs.Open("/old", OpenOptions{Write: true, Create: true})
	_, _ = fs.Write(h, []byte("x"))
	_ = fs.Close(h)

	require.NoError(t, fs.Rename("/old", "/new"))
	assert.False(t, fs.Exists("/old"))
	assert.True(t, fs.Exists("/new"))
}
