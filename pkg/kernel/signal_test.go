package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalStateCoalescesNonFatalSignals(t *testing.T) {
	s := NewSignalState()
	s.Send(SIGUSR1)
	s.Send(SIGUSR1)

	sig, ok := s.NextDeliverable()
	require.True(t, ok)
	assert.Equal(t, SIGUSR1, sig)

	s.Consume(sig)
	_, ok = s.NextDeliverable()
	assert.False(t, ok, "a coalesced signal is consumed only once")
}

func TestSignalStateFIFOOrderAmongPending(t *testing.T) {
	s := NewSignalState()
	s.Send(SIGTERM)
	s.Send(SIGUSR1)

	sig, ok := s.NextDeliverable()
	require.True(t, ok)
	assert.Equal(t, SIGTERM, sig, "signals other than SIGKILL/SIGSTOP deliver FIFO")
}

func TestSignalStateSigkillAlwaysDeliversFirst(t *testing.T) {
	s := NewSignalState()
	s.Send(SIGTERM)
	s.Send(SIGKILL)

	sig, ok := s.NextDeliverable()
	require.True(t, ok)
	assert.Equal(t, SIGKILL, sig)
}

func TestSignalStateSigstopBeforeOrdinarySignals(t *testing.T) {
	s := NewSignalState()
	s.Send(SIGTERM)
	s.Send(SIGSTOP)

	sig, ok := s.NextDeliverable()
	require.True(t, ok)
	assert.Equal(t, SIGSTOP, sig)
}

func TestSignalStateBlockedSignalStaysPendingButUndelivered(t *testing.T) {
	s := NewSignalState()
	require.NoError(t, s.Block(SIGUSR1))
	s.Send(SIGUSR1)

	_, ok := s.NextDeliverable()
	assert.False(t, ok, "a blocked signal is not delivered even though it remains pending")
	assert.True(t, s.Pending(SIGUSR1))

	s.Unblock(SIGUSR1)
	sig, ok := s.NextDeliverable()
	require.True(t, ok)
	assert.Equal(t, SIGUSR1, sig)
}

func TestSignalStateSigkillAndSigstopAreUnmaskable(t *testing.T) {
	s := NewSignalState()
	assert.Error(t, s.Block(SIGKILL))
	assert.Error(t, s.Block(SIGSTOP))
	assert.Error(t, s.SetDisposition(SIGKILL, DispIgnore))
	assert.Error(t, s.SetDisposition(SIGSTOP, DispIgnore))
}

func TestSignalStateDispositionDefaultsAndOverrides(t *testing.T) {
	s := NewSignalState()
	assert.Equal(t, DispDefault, s.Disposition(SIGTERM))

	require.NoError(t, s.SetDisposition(SIGTERM, DispIgnore))
	assert.Equal(t, DispIgnore, s.Disposition(SIGTERM))

	assert.Equal(t, DispKill, s.Disposition(SIGKILL), "SIGKILL always reports DispKill regardless of configuration")
	assert.Equal(t, DispStop, s.Disposition(SIGSTOP))
}
