// floats.go - float32 Sicht auf den Tensor-Puffer
//
// ncnn-artige Tensoren sind fast immer float32 (oder ein quantisierter
// Typ, der vor der Kernel-Ausfuehrung dequantisiert wird). Floats()
// gibt eine direkte []float32-Sicht auf den Puffer zurueck, ohne zu
// kopieren.
package tensor

import "unsafe"

// Floats reinterprets the backing buffer as a []float32 slice sized to
// the tensor's logical element count (W*H*C), not the possibly
// CStep-padded backing buffer. The tensor must have ElemSize == 4;
// callers that need another element size should use Bytes() directly.
func (t *Tensor) Floats() []float32 {
	if t.store == nil || t.ElemSize != 4 {
		return nil
	}
	n := t.Elements()
	if n == 0 {
		return nil
	}
	buf := t.store.buf
	return unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), n)
}

// CreateFromFloats allocates a 1-D float32 tensor and copies src into it.
func CreateFromFloats(src []float32, alloc Allocator) *Tensor {
	t := Create([]int{len(src)}, 4, alloc)
	copy(t.Floats(), src)
	return t
}
