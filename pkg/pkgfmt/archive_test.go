package pkgfmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := Archive{
		Manifest: Manifest{
			Name:         "axe-coreutils",
			Version:      "0.3.1",
			Dependencies: []string{"axe-libc"},
			Binaries:     []string{"ls", "cat"},
			Metadata:     map[string]string{"maintainer": "axeberg"},
		},
		Files: []File{
			{Path: "bin/ls", Content: []byte("binary-ls-bytes")},
			{Path: "bin/cat", Content: []byte("binary-cat-bytes")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a))

	got, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, a.Manifest.Name, got.Manifest.Name)
	assert.Equal(t, a.Manifest.Version, got.Manifest.Version)
	assert.Equal(t, a.Manifest.Dependencies, got.Manifest.Dependencies)
	assert.Equal(t, a.Manifest.Binaries, got.Manifest.Binaries)
	assert.Equal(t, a.Manifest.Metadata, got.Manifest.Metadata)

	require.Len(t, got.Files, 2)
	assert.Equal(t, "bin/ls", got.Files[0].Path)
	assert.Equal(t, []byte("binary-ls-bytes"), got.Files[0].Content)
	assert.Equal(t, "bin/cat", got.Files[1].Path)
	assert.Equal(t, []byte("binary-cat-bytes"), got.Files[1].Content)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOTANARCHIVEHEADERBYTES")
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestEncodeEmptyArchive(t *testing.T) {
	a := Archive{Manifest: Manifest{Name: "empty", Version: "0.0.1"}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, a))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "empty", got.Manifest.Name)
	assert.Empty(t, got.Files)
}
