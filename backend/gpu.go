package backend

import "github.com/nnexec/netcore/tensor"

// DispatchConstants are the per-layer push constants the command-
// recording pass feeds a GPU kernel: the bottom/top shapes plus their
// channel strides.
type DispatchConstants struct {
	BottomW, BottomH, BottomC, BottomCStep int
	TopW, TopH, TopC, TopCStep             int
}

// WorkgroupCounts are the per-axis dispatch counts (ceil(dim/local_size)).
type WorkgroupCounts struct {
	X, Y, Z int
}

// GPU is the injectable strategy object behind the graph execution
// core's GPU backend: an allocator for device-resident tensors, a
// pipeline cache keyed by layer type, and a command recorder. A real
// implementation wraps a driver API; this package also ships a no-op
// Null implementation so the core builds and the CPU path can be
// exercised without a device present.
type GPU interface {
	// AllocateTensor reserves device memory for a tensor of the given
	// shape, used during the shape-propagation pass (no kernel
	// dispatch yet).
	AllocateTensor(shape []int, elemSize int) (*tensor.Tensor, error)

	// RecordBarrier records a compute barrier on t before its next
	// consumer reads it (producer -> consumer edges).
	RecordBarrier(t *tensor.Tensor) error

	// RecordUpload records a staging-buffer upload and upload barrier
	// for a graph input tensor before its first use.
	RecordUpload(t *tensor.Tensor) error

	// RecordClone records a device-side clone for in-place dispatch
	// over a tensor whose refcount requires preserving the original.
	RecordClone(src *tensor.Tensor) (*tensor.Tensor, error)

	// RecordDispatch records a kernel dispatch for one layer type with
	// the given push constants and workgroup counts.
	RecordDispatch(layerType string, consts DispatchConstants, wg WorkgroupCounts) error

	// Submit submits the recorded command buffer and blocks until the
	// device fence signals completion - the only GPU suspension point.
	Submit() error

	// Download records a download of t plus a download barrier,
	// mapping the staging buffer into a CPU-readable tensor. Submit
	// must have been called first.
	Download(t *tensor.Tensor) (*tensor.Tensor, error)
}

// Null is a no-op GPU strategy: AllocateTensor/RecordClone allocate
// ordinary heap tensors, every Record* call is a no-op, and Download
// returns its input unchanged. It lets callers exercise the Extractor's
// GPU code path in tests and CI without a device driver.
type Null struct {
	Alloc tensor.Allocator
}

func (n *Null) alloc() tensor.Allocator {
	if n.Alloc != nil {
		return n.Alloc
	}
	return tensor.NewHeapAllocator()
}

func (n *Null) AllocateTensor(shape []int, elemSize int) (*tensor.Tensor, error) {
	return tensor.Create(shape, elemSize, n.alloc()), nil
}

func (n *Null) RecordBarrier(t *tensor.Tensor) error { return nil }

func (n *Null) RecordUpload(t *tensor.Tensor) error { return nil }

func (n *Null) RecordClone(src *tensor.Tensor) (*tensor.Tensor, error) {
	return src.Clone(), nil
}

func (n *Null) RecordDispatch(layerType string, consts DispatchConstants, wg WorkgroupCounts) error {
	return nil
}

func (n *Null) Submit() error { return nil }

func (n *Null) Download(t *tensor.Tensor) (*tensor.Tensor, error) {
	return t, nil
}
