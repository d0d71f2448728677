// Package pkgfmt implements the AXEPKG package archive format described in
// spec.md §6: a concatenated container carrying a TOML manifest plus a flat
// list of files, consumed by the external package-manager collaborator
// rather than by the kernel core itself.
package pkgfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// Magic is the fixed 8-byte archive header: "AXEPKG\0\x01".
var Magic = [8]byte{'A', 'X', 'E', 'P', 'K', 'G', 0, 1}

// Manifest is the package metadata stored as the archive's TOML manifest
// section.
type Manifest struct {
	Name         string            `toml:"name"`
	Version      string            `toml:"version"`
	Dependencies []string          `toml:"dependencies"`
	Binaries     []string          `toml:"binaries"`
	Metadata     map[string]string `toml:"metadata,omitempty"`
}

// File is a single archived file: its archive-relative path and raw
// content bytes.
type File struct {
	Path    string
	Content []byte
}

// Archive is a decoded AXEPKG package: manifest plus files, in the order
// they appeared on disk.
type Archive struct {
	Manifest Manifest
	Files    []File
}

// Encode serialises a to w in the AXEPKG format: magic, little-endian
// manifest_size and num_files, manifest bytes, then per file a u16 path
// length, path bytes, u32 content length, content bytes.
func Encode(w io.Writer, a Archive) error {
	var manifestBuf bytes.Buffer
	if err := toml.NewEncoder(&manifestBuf).Encode(a.Manifest); err != nil {
		return fmt.Errorf("pkgfmt: encode manifest: %w", err)
	}
	manifestBytes := manifestBuf.Bytes()

	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(manifestBytes))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(a.Files))); err != nil {
		return err
	}
	if _, err := w.Write(manifestBytes); err != nil {
		return err
	}

	for _, f := range a.Files {
		if len(f.Path) > 0xFFFF {
			return fmt.Errorf("pkgfmt: path too long: %s", f.Path)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(f.Path))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, f.Path); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(f.Content))); err != nil {
			return err
		}
		if _, err := w.Write(f.Content); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses an AXEPKG archive from r.
func Decode(r io.Reader) (Archive, error) {
	var a Archive

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return a, fmt.Errorf("pkgfmt: read magic: %w", err)
	}
	if magic != Magic {
		return a, fmt.Errorf("pkgfmt: bad magic header")
	}

	var manifestSize, numFiles uint32
	if err := binary.Read(r, binary.LittleEndian, &manifestSize); err != nil {
		return a, fmt.Errorf("pkgfmt: read manifest_size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &numFiles); err != nil {
		return a, fmt.Errorf("pkgfmt: read num_files: %w", err)
	}

	manifestBytes := make([]byte, manifestSize)
	if _, err := io.ReadFull(r, manifestBytes); err != nil {
		return a, fmt.Errorf("pkgfmt: read manifest: %w", err)
	}
	if _, err := toml.Decode(string(manifestBytes), &a.Manifest); err != nil {
		return a, fmt.Errorf("pkgfmt: decode manifest: %w", err)
	}

	a.Files = make([]File, 0, numFiles)
	for i := uint32(0); i < numFiles; i++ {
		var pathLen uint16
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return a, fmt.Errorf("pkgfmt: read path length for file %d: %w", i, err)
		}
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return a, fmt.Errorf("pkgfmt: read path for file %d: %w", i, err)
		}

		var contentLen uint32
		if err := binary.Read(r, binary.LittleEndian, &contentLen); err != nil {
			return a, fmt.Errorf("pkgfmt: read content length for file %d: %w", i, err)
		}
		content := make([]byte, contentLen)
		if _, err := io.ReadFull(r, content); err != nil {
			return a, fmt.Errorf("pkgfmt: read content for file %d: %w", i, err)
		}

		a.Files = append(a.Files, File{Path: string(pathBytes), Content: content})
	}

	return a, nil
}
