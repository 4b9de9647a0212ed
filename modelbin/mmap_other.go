//go:build !unix

// mmap_other.go - Fallback ohne mmap (liest die Datei vollstaendig ein)
package modelbin

import "os"

// MMapSource falls back to a plain read on platforms without unix mmap.
type MMapSource struct {
	buf []byte
}

// OpenMMapSource reads path fully into memory.
func OpenMMapSource(path string) (*MMapSource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &MMapSource{buf: buf}, nil
}

// Bytes returns the buffered contents.
func (m *MMapSource) Bytes() []byte { return m.buf }

// Close is a no-op; the buffer is GC-managed.
func (m *MMapSource) Close() error { return nil }
