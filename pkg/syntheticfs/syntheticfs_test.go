package syntheticfs

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axeberg/axebergos-sub000/pkg/kernel"
	"github.com/axeberg/axebergos-sub000/pkg/vfs"
)

type fakeClock struct{ uptime float64 }

func (f fakeClock) UptimeSeconds() float64 { return f.uptime }

func newTestKernel() *kernel.Kernel {
	return kernel.Init(kernel.Config{})
}

func TestXorshift64ZeroSeedIsPromoted(t *testing.T) {
	x := NewXorshift64(0)
	buf := make([]byte, 16)
	x.Fill(buf)
	allZero := true
	for _, b := range buf {
		if b != 0 {
			allZero = false
		}
	}
	assert.False(t, allZero, "a zero seed must be promoted to a fixed nonzero constant")
}

func TestXorshift64IsDeterministicPerSeed(t *testing.T) {
	a := NewXorshift64(42)
	b := NewXorshift64(42)
	bufA := make([]byte, 32)
	bufB := make([]byte, 32)
	a.Fill(bufA)
	b.Fill(bufB)
	assert.Equal(t, bufA, bufB)
}

func TestProcUptime(t *testing.T) {
	s := New(newTestKernel(), fakeClock{uptime: 12.5}, "axebergos")
	h, err := s.Open("/proc/uptime", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, "12.50 12.50\n", string(buf[:n]))
}

func TestProcMeminfo(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	h, err := s.Open("/proc/meminfo", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	buf := make([]byte, 256)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "MemTotal:")
}

func TestProcPidStatusAndEnviron(t *testing.T) {
	k := newTestKernel()
	p, err := k.Processes.SpawnProcess("worker", nil)
	require.NoError(t, err)
	p.Environ["PATH"] = "/bin"

	s := New(k, fakeClock{}, "axebergos")

	h, err := s.Open("/proc/"+strconv.FormatUint(uint64(p.Pid), 10)+"/status", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	buf := make([]byte, 256)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	status := string(buf[:n])
	assert.Contains(t, status, "Name:\tworker")
	assert.Contains(t, status, "User:\troot")

	h, err = s.Open("/proc/"+strconv.FormatUint(uint64(p.Pid), 10)+"/environ", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	n, err = s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, "PATH=/bin\x00", string(buf[:n]))
}

func TestProcPidUnknownNotFound(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	_, err := s.Open("/proc/9999/status", vfs.OpenOptions{Read: true}, 4096)
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrNotFound))
}

func TestDevNullDiscardsWrites(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	h, err := s.Open("/dev/null", vfs.OpenOptions{Write: true}, 4096)
	require.NoError(t, err)
	n, err := s.Write(h, []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	h, err = s.Open("/dev/null", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err = s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "/dev/null always reads as empty")
}

func TestDevZeroReadsZeroes(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	h, err := s.Open("/dev/zero", vfs.OpenOptions{Read: true}, 8)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	for _, b := range buf[:n] {
		assert.Equal(t, byte(0), b)
	}
}

func TestDevRandomProducesBoundedBytes(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	h, err := s.Open("/dev/urandom", vfs.OpenOptions{Read: true}, 32)
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

func TestReadOnlyDeviceRejectsWrite(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")
	h, err := s.Open("/dev/zero", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	_, err = s.Write(h, []byte("x"))
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrPermissionDenied))
}

func TestSysHostname(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos-test")
	h, err := s.Open("/sys/hostname", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, "axebergos-test\n", string(buf[:n]))
}

func TestOwnsRecognisesSyntheticPrefixes(t *testing.T) {
	assert.True(t, Owns("/proc/1/status"))
	assert.True(t, Owns("/dev/null"))
	assert.True(t, Owns("/sys/hostname"))
	assert.False(t, Owns("/etc/motd"))
}

func TestOpenSnapshotsAtOpenTime(t *testing.T) {
	k := newTestKernel()
	p, _ := k.Processes.SpawnProcess("worker", nil)
	p.Environ["PATH"] = "/bin"

	s := New(k, fakeClock{}, "axebergos")
	h, err := s.Open("/proc/"+strconv.FormatUint(uint64(p.Pid), 10)+"/environ", vfs.OpenOptions{Read: true}, 4096)
	require.NoError(t, err)

	p.Environ["PATH"] = "/usr/bin"

	buf := make([]byte, 64)
	n, err := s.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, "PATH=/bin\x00", string(buf[:n]), "reads consume the snapshot taken at open time, not live state")
}

func TestReadDirEnumeratesSyntheticNamespaces(t *testing.T) {
	k := newTestKernel()
	p, err := k.Processes.SpawnProcess("worker", nil)
	require.NoError(t, err)

	s := New(k, fakeClock{}, "axebergos")

	entries, err := s.ReadDir("/dev")
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["null"])
	assert.True(t, names["urandom"])

	entries, err = s.ReadDir("/proc")
	require.NoError(t, err)
	names = make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["uptime"])
	assert.True(t, names[strconv.FormatUint(uint64(p.Pid), 10)], "each live process appears as a numbered directory")

	entries, err = s.ReadDir("/proc/" + strconv.FormatUint(uint64(p.Pid), 10))
	require.NoError(t, err)
	names = make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["status"])

	_, err = s.ReadDir("/proc/9999")
	require.Error(t, err)
	assert.True(t, kernel.Is(err, kernel.ErrNotFound))
}

func TestMetadataAndExistsOnSyntheticPaths(t *testing.T) {
	s := New(newTestKernel(), fakeClock{}, "axebergos")

	meta, err := s.Metadata("/proc")
	require.NoError(t, err)
	assert.True(t, meta.IsDir)

	meta, err = s.Metadata("/sys/ostype")
	require.NoError(t, err)
	assert.True(t, meta.IsFile)
	assert.Equal(t, uint64(len("axebergos\n")), meta.Size)

	assert.True(t, s.Exists("/dev/zero"))
	assert.False(t, s.Exists("/dev/missing"))
}
