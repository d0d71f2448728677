package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnInitProcessBindsStdioToSharedConsole(t *testing.T) {
	k := Init(Config{})
	p, err := k.SpawnInitProcess("init")
	require.NoError(t, err)

	for _, fd := range []Fd{Stdin, Stdout, Stderr} {
		h, ok := p.Files.Get(fd)
		require.True(t, ok)
		assert.Equal(t, k.ConsoleHandle(), h)
	}

	rc, ok := k.Objects.Refcount(k.ConsoleHandle())
	require.True(t, ok)
	assert.Equal(t, 3, rc, "three stdio fds each retain the shared console")
}

func TestTickFiresTimersAndWakesTasks(t *testing.T) {
	k := Init(Config{})
	woken := false
	taskID := k.Executor.Spawn(ComputationFunc(func() { woken = true }))
	k.Executor.Wake(taskID)
	k.Tick(0)
	assert.True(t, woken)

	completed := false
	id := k.Executor.SpawnWithPriority(&waitForTimer{done: &completed}, PriorityNormal)
	k.Timers.Schedule(10, 0, &id)

	k.Tick(5)
	assert.False(t, completed, "task should not wake before the timer fires")

	k.Tick(10)
	assert.True(t, completed)
}

type waitForTimer struct {
	polled int
	done   *bool
}

func (w *waitForTimer) Poll(waker *Waker) bool {
	w.polled++
	if w.polled < 2 {
		return false
	}
	*w.done = true
	return true
}

func TestTickDeliversAlarmSignal(t *testing.T) {
	k := Init(Config{})
	p, err := k.SpawnInitProcess("init")
	require.NoError(t, err)

	k.Alarm(p.Pid, 10, nil)
	k.Tick(10)

	// Tick itself resolves the pending SIGALRM; its default disposition
	// terminates the process with the negated signal number.
	assert.False(t, p.Signals.Pending(SIGALRM))
	assert.Equal(t, StateZombie, p.State)
	assert.Equal(t, -int32(SIGALRM), p.ExitCode)
}

func TestZombieTeardownClosesEveryFd(t *testing.T) {
	k := Init(Config{})
	p, err := k.SpawnInitProcess("init")
	require.NoError(t, err)

	var syncedPath string
	var syncedBytes []byte
	k.FileSync = func(path string, data []byte) error {
		syncedPath, syncedBytes = path, data
		return nil
	}

	h := k.Objects.Insert(NewFileObject(&FileObject{
		Path: "/tmp/f", Bytes: []byte("both writes"), Writable: true,
	}))
	fd := p.Files.Alloc(h)
	k.Objects.Retain(h)
	dup := p.Files.Alloc(h)
	assert.NotEqual(t, fd, dup)

	require.NoError(t, k.Processes.Kill(p.Pid, SIGKILL))
	_, _, delivered, err := k.Processes.ProcessSignals(p.Pid)
	require.NoError(t, err)
	require.True(t, delivered)

	assert.False(t, p.Files.Contains(fd))
	assert.False(t, p.Files.Contains(dup))
	_, ok := k.Objects.Get(h)
	assert.False(t, ok, "the last fd reference going away frees the object")
	assert.Equal(t, "/tmp/f", syncedPath)
	assert.Equal(t, "both writes", string(syncedBytes))

	_, ok = k.Objects.Get(k.ConsoleHandle())
	assert.False(t, ok, "the only process exiting drops every console reference")
}

func TestConsoleHandleReinsertedAfterFullRelease(t *testing.T) {
	k := Init(Config{})
	p1, err := k.SpawnInitProcess("init")
	require.NoError(t, err)
	require.NoError(t, k.Processes.Exit(p1.Pid, 0))

	p2, err := k.SpawnInitProcess("init2")
	require.NoError(t, err)

	rc, ok := k.Objects.Refcount(k.ConsoleHandle())
	require.True(t, ok)
	assert.Equal(t, 3, rc)

	h, ok := p2.Files.Get(Stdout)
	require.True(t, ok)
	obj, ok := k.Objects.Get(h)
	require.True(t, ok)
	assert.Same(t, k.Console(), obj.Console, "the same console device survives handle churn")
}
