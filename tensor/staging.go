// staging.go - Staging-Buffer fuer GPU-Transfer
//
// Ein Staging-Buffer ist ein host-sichtbarer Zwischenpuffer, der
// ausschliesslich fuer Host<->Device-Transfer aus einem eigenen
// "Staging-Allocator" alloziert wird.
package tensor

// Staging holds the host-visible intermediate buffer paired with a
// GPU tensor for upload/download.
type Staging struct {
	alloc Allocator
	buf   []byte
	size  int
	mapped bool
}

// PrepareStagingBuffer attaches a paired host-visible staging buffer
// sized to match the tensor's current backing storage. The buffer
// itself is allocated from stagingAlloc on the first Map.
func (t *Tensor) PrepareStagingBuffer(stagingAlloc Allocator) {
	size := 0
	if t.store != nil {
		size = len(t.store.buf)
	}
	t.staging = &Staging{alloc: stagingAlloc, size: size}
}

// StagingBuffer returns the tensor's paired staging buffer, or nil if none
// was prepared.
func (t *Tensor) StagingBuffer() *Staging {
	return t.staging
}

// Map returns the staging buffer for host reads/writes, allocating it
// lazily from the staging allocator.
func (s *Staging) Map() []byte {
	if s.buf == nil {
		s.buf = s.alloc.Alloc(s.size)
	}
	s.mapped = true
	return s.buf
}

// Unmap marks the staging buffer as no longer host-accessed. The
// underlying allocation is kept for reuse by the next Map/upload.
func (s *Staging) Unmap() {
	s.mapped = false
}

// Upload copies host tensor data into the staging buffer, ready for a
// device-side upload command to be recorded against it.
func (s *Staging) Upload(host *Tensor) {
	dst := s.Map()
	copy(dst, host.Bytes())
	s.Unmap()
}

// Download copies the staging buffer back into a host tensor after a
// device-side download command has completed.
func (s *Staging) Download(host *Tensor) {
	src := s.Map()
	copy(host.Bytes(), src)
	s.Unmap()
}

// Release frees the staging allocation, if any.
func (s *Staging) Release() {
	if s.buf != nil {
		s.alloc.Free(s.buf)
		s.buf = nil
	}
}
