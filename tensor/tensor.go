// tensor.go - Tensor: mehrdimensionaler Puffer mit Shared-Ownership
//
// Ein Tensor bildet bis zu drei Dimensionen ab (w, h, c, dims ∈
// {0,1,2,3}); dims == 0 bedeutet "noch nicht materialisiert".
// Zwei Tensoren koennen denselben Speicher teilen (RefCount > 1) -
// eine Eigenschaft, die der Extractor vor In-Place-Mutation prueft.
package tensor

// Tensor is a multi-dimensional numeric buffer with shared-ownership
// semantics and an optional paired staging buffer for GPU transfer.
type Tensor struct {
	Dims int // 0 (empty), 1, 2 or 3

	W, H, C int // element counts per axis

	// CStep is the channel stride in elements; CStep >= W*H, padded so
	// that CStep*ElemSize is a multiple of the allocator's alignment.
	CStep int

	ElemSize int // bytes per element

	alloc Allocator
	store *storage

	staging *Staging
}

// storage is the shared backing buffer; Tensor.Clone always allocates
// a fresh one, while Tensor assignment (a := b) shares it.
type storage struct {
	buf  []byte
	refs int
}

// Empty reports whether the tensor has not been materialized (dims == 0).
func (t *Tensor) Empty() bool {
	return t == nil || t.Dims == 0
}

// Create allocates a new tensor with the given shape. shape must have
// between 1 and 3 elements, in (w), (w,h) or (w,h,c) order; any other
// length panics, so Create never produces a 4-d tensor.
func Create(shape []int, elemsize int, alloc Allocator) *Tensor {
	if alloc == nil {
		alloc = NewHeapAllocator()
	}

	t := &Tensor{ElemSize: elemsize, alloc: alloc}
	switch len(shape) {
	case 1:
		t.Dims, t.W, t.H, t.C = 1, shape[0], 1, 1
	case 2:
		t.Dims, t.W, t.H, t.C = 2, shape[0], shape[1], 1
	case 3:
		t.Dims, t.W, t.H, t.C = 3, shape[0], shape[1], shape[2]
	default:
		panic("tensor: Create supports 1 to 3 logical axes (w,h,c)")
	}

	t.CStep = alignUp(t.W*t.H*elemsize, DefaultAlignment) / elemsize
	size := t.CStep * t.C * elemsize
	t.store = &storage{buf: alloc.Alloc(size), refs: 1}
	return t
}

// CreateLike allocates a fresh tensor with the same shape/elemsize as
// other, using alloc for the primary buffer and, if stagingAlloc is
// non-nil, preparing a paired staging buffer from it.
func CreateLike(other *Tensor, alloc, stagingAlloc Allocator) *Tensor {
	shape := other.shape()
	t := Create(shape, other.ElemSize, alloc)
	if stagingAlloc != nil {
		t.PrepareStagingBuffer(stagingAlloc)
	}
	return t
}

// Shape returns the tensor's logical axis sizes in Create's order -
// the form backend.GPU.AllocateTensor expects.
func (t *Tensor) Shape() []int {
	return t.shape()
}

func (t *Tensor) shape() []int {
	switch t.Dims {
	case 1:
		return []int{t.W}
	case 2:
		return []int{t.W, t.H}
	default:
		return []int{t.W, t.H, t.C}
	}
}

// Clone deep-copies the tensor into a freshly allocated buffer; the
// result always has RefCount() == 1.
func (t *Tensor) Clone() *Tensor {
	if t.Empty() {
		return &Tensor{}
	}

	out := Create(t.shape(), t.ElemSize, t.alloc)
	copy(out.store.buf, t.store.buf)
	return out
}

// Shares reports whether t and other currently alias the same backing
// storage.
func (t *Tensor) Shares(other *Tensor) bool {
	return t.store != nil && other.store != nil && t.store == other.store
}

// RefCount returns the number of live references to the backing storage.
func (t *Tensor) RefCount() int {
	if t.store == nil {
		return 0
	}
	return t.store.refs
}

// Ref increments the shared refcount and returns a shallow copy of the
// header pointing at the same storage - the idiom used when a blob's
// tensor value is handed to more than one consumer.
func (t *Tensor) Ref() *Tensor {
	if t.store != nil {
		t.store.refs++
	}
	cp := *t
	return &cp
}

// Release decrements the refcount, freeing the backing storage when it
// reaches zero. Idempotent: calling Release twice on the same header
// is safe, and after it Dims == 0.
func (t *Tensor) Release() {
	if t == nil || t.store == nil {
		if t != nil {
			t.Dims = 0
		}
		return
	}

	t.store.refs--
	if t.store.refs <= 0 {
		t.alloc.Free(t.store.buf)
	}
	t.store = nil
	if t.staging != nil {
		t.staging.Release()
		t.staging = nil
	}
	t.Dims = 0
}

// Bytes exposes the raw backing storage.
func (t *Tensor) Bytes() []byte {
	if t.store == nil {
		return nil
	}
	return t.store.buf
}

// Elements returns the total element count (w*h*c, not counting cstep padding).
func (t *Tensor) Elements() int {
	return t.W * t.H * t.C
}

// EqualShape reports whether two tensors have identical logical shape.
func (t *Tensor) EqualShape(o *Tensor) bool {
	return t.Dims == o.Dims && t.W == o.W && t.H == o.H && t.C == o.C
}
