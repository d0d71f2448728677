package kernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	err := New(ErrNotFound, "no such file")
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrBadFd))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), ErrNotFound))
}

func TestKindOfDefaultsToIOForUntypedErrors(t *testing.T) {
	assert.Equal(t, ErrIO, KindOf(errors.New("plain")))
	assert.Equal(t, ErrOutOfMemory, KindOf(New(ErrOutOfMemory, "full")))
}

func TestWrapPreservesUnderlyingError(t *testing.T) {
	cause := errors.New("disk fault")
	err := Wrap(ErrIO, cause)
	assert.True(t, Is(err, ErrIO))
	assert.ErrorIs(t, err, cause)
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(ErrInvalidData, "expected %d got %d", 1, 2)
	assert.Contains(t, err.Error(), "expected 1 got 2")
}
