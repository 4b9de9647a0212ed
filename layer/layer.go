// Package layer defines the uniform operation contract every graph
// node implements, plus the built-in layer set.
package layer

import (
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// CustomBit marks a type index as user-registered rather than built-in.
const CustomBit uint32 = 0x8000_0000

// Option carries per-inference execution settings a layer's forward
// pass may need (thread count, allocators); populated by the Extractor.
type Option struct {
	NumThreads      int
	BlobAllocator   tensor.Allocator
	WorkspaceAllocator tensor.Allocator
}

// Layer is the contract every graph node implements.
type Layer interface {
	// TypeName identifies the layer type for diagnostics/registration.
	TypeName() string

	// LoadParam extracts configuration from pd and computes any derived
	// constants. Called once, at load time.
	LoadParam(pd *paramdict.ParamDict) error

	// LoadModel pulls weight tensors from mb in the layer-type-specific
	// order. Called once, after LoadParam.
	LoadModel(mb *modelbin.ModelBin) error

	// OneBlobOnly reports whether the layer has exactly one bottom and
	// one top.
	OneBlobOnly() bool

	// SupportInplace reports whether the layer can overwrite its input
	// buffer instead of allocating fresh output.
	SupportInplace() bool

	// Forward allocates and populates tops from bottoms, out-of-place.
	Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error)

	// ForwardInplace mutates bottomTops in place. Only called when
	// SupportInplace() is true and the executor selected in-place
	// dispatch.
	ForwardInplace(bottomTops []*tensor.Tensor, opt Option) error
}

// GPUWeightsProvider is implemented by layers that own persistent
// weight tensors a GPU backend must upload once at load time, rather
// than per-inference. Base's default has none; InnerProduct overrides it.
type GPUWeightsProvider interface {
	GPUWeights() []*tensor.Tensor
}

// Base provides the capability-flag bookkeeping shared by built-in
// layers; embed it and override what differs.
type Base struct {
	oneBlobOnly    bool
	supportInplace bool
}

// NewBase records the two capability flags (one_blob_only,
// support_inplace).
func NewBase(oneBlobOnly, supportInplace bool) Base {
	return Base{oneBlobOnly: oneBlobOnly, supportInplace: supportInplace}
}

func (b Base) OneBlobOnly() bool    { return b.oneBlobOnly }
func (b Base) SupportInplace() bool { return b.supportInplace }

// ForwardInplace is the default for layers that do not support
// in-place execution; the executor never calls it when
// SupportInplace() is false, but providing it keeps every built-in
// layer a complete Layer without a nil-method trap.
func (b Base) ForwardInplace([]*tensor.Tensor, Option) error {
	return nil
}

// GPUWeights reports no persistent GPU-resident weights by default;
// layers that own any (InnerProduct) override it.
func (b Base) GPUWeights() []*tensor.Tensor { return nil }
