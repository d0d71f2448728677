package hostadapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadOnMissingFileReportsNotOkWithoutError(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshot.bin"))

	data, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshot.bin"))
	want := []byte("snapshot contents")

	require.NoError(t, s.Save(context.Background(), want))

	got, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStoreSaveOverwritesPriorContent(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshot.bin"))

	require.NoError(t, s.Save(context.Background(), []byte("first")))
	require.NoError(t, s.Save(context.Background(), []byte("second")))

	got, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}
