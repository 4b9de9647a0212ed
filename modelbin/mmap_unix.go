//go:build unix

// mmap_unix.go - mmap-gestuetzte Quelle fuer das aligned-memory ModelBin
//
// Unterstuetzt das mmap-freundliche aligned-memory Layout: das
// Betriebssystem liefert eine Seiten-ausgerichtete Abbildung der
// Gewichtsdatei, sodass ReadBinaryAligned/LoadTensor ohne Kopie
// direkt darauf arbeiten koennen.
package modelbin

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MMapSource owns an mmap'd weight file.
type MMapSource struct {
	f   *os.File
	buf []byte
}

// OpenMMapSource maps path read-only into memory.
func OpenMMapSource(path string) (*MMapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		return &MMapSource{f: f, buf: nil}, nil
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &MMapSource{f: f, buf: buf}, nil
}

// Bytes returns the mapped, page-aligned contents.
func (m *MMapSource) Bytes() []byte { return m.buf }

// Close unmaps and closes the backing file.
func (m *MMapSource) Close() error {
	var err error
	if m.buf != nil {
		err = unix.Munmap(m.buf)
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
