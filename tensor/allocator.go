// allocator.go - Allocator-Schnittstelle und Standard-Implementierung
//
// Der Kern unterscheidet vier Allocator-Rollen: blob_allocator,
// workspace_allocator, blob_vkallocator und staging_vkallocator. Alle
// vier erfuellen dasselbe Interface; welche Instanz verwendet wird,
// entscheidet der Aufrufer (Net/Extractor).
package tensor

import "sync/atomic"

// DefaultAlignment is the byte alignment most allocators pad cstep to.
const DefaultAlignment = 16

// Allocator allocates and frees raw backing storage for a Tensor.
// Implementations provided by the caller must be safe for concurrent
// use if shared across multiple Extractors.
type Allocator interface {
	Alloc(size int) []byte
	Free(buf []byte)
}

// HeapAllocator is the default, trivial allocator backed by the Go heap.
// It never reuses freed buffers; it exists so a caller that doesn't
// care about pooling can still satisfy the Allocator contract, and so
// tests can observe the lightmode memory bound via Live.
type HeapAllocator struct {
	live int64
}

// NewHeapAllocator returns an Allocator backed by ordinary Go slices.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

func (a *HeapAllocator) Alloc(size int) []byte {
	atomic.AddInt64(&a.live, int64(size))
	return make([]byte, size)
}

func (a *HeapAllocator) Free(buf []byte) {
	atomic.AddInt64(&a.live, -int64(len(buf)))
}

// Live reports the number of bytes currently outstanding.
func (a *HeapAllocator) Live() int64 {
	return atomic.LoadInt64(&a.live)
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + (align - r)
	}
	return n
}
