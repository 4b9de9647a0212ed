package layer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// InnerProduct computes a fully-connected layer: top = W*bottom + bias,
// with W loaded from ModelBin in row-major [numOutput x inputSize]
// order. When Net.Options.SGEMM is set, the matrix-vector product is
// dispatched through gonum's dense BLAS path instead of the naive loop.
type InnerProduct struct {
	Base

	numOutput int
	biasTerm  bool
	inputSize int // derived from the loaded weight size / numOutput

	weight *tensor.Tensor
	bias   *tensor.Tensor

	useSGEMM bool
}

// NewInnerProduct constructs an unconfigured InnerProduct layer.
func NewInnerProduct() *InnerProduct {
	return &InnerProduct{Base: NewBase(true, false)}
}

func (l *InnerProduct) TypeName() string { return "InnerProduct" }

// LoadParam reads num_output (key 0), bias_term (key 2), and
// weight_data_size (key 4); all three are integral, so each sits at an
// even key per the ParamDict wire convention.
func (l *InnerProduct) LoadParam(pd *paramdict.ParamDict) error {
	l.numOutput = pd.Int(0, 0)
	l.biasTerm = pd.Int(2, 0) != 0
	weightDataSize := pd.Int(4, 0)

	if l.numOutput <= 0 || weightDataSize <= 0 || weightDataSize%l.numOutput != 0 {
		return errs.New("InnerProduct.LoadParam", errs.KindBadParam, nil)
	}
	l.inputSize = weightDataSize / l.numOutput
	l.useSGEMM = pd.Options.SGEMM
	return nil
}

// LoadModel pulls the weight matrix and, if biasTerm is set, the bias
// vector, in that fixed order.
func (l *InnerProduct) LoadModel(mb *modelbin.ModelBin) error {
	alloc := tensor.NewHeapAllocator()

	w, err := mb.LoadTensor(l.numOutput*l.inputSize, alloc)
	if err != nil {
		return errs.New("InnerProduct.LoadModel", errs.KindBadModel, err)
	}
	l.weight = w

	if l.biasTerm {
		b, err := mb.LoadTensor(l.numOutput, alloc)
		if err != nil {
			return errs.New("InnerProduct.LoadModel", errs.KindBadModel, err)
		}
		l.bias = b
	}
	return nil
}

// GPUWeights exposes the weight matrix and, if present, the bias
// vector for batched upload by Net.LoadModel.
func (l *InnerProduct) GPUWeights() []*tensor.Tensor {
	if l.biasTerm {
		return []*tensor.Tensor{l.weight, l.bias}
	}
	return []*tensor.Tensor{l.weight}
}

func (l *InnerProduct) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	x := bottoms[0]
	if x.Elements() != l.inputSize {
		return nil, errs.New("InnerProduct.Forward", errs.KindShapeError, nil)
	}

	out := tensor.Create([]int{l.numOutput}, 4, pickAllocator(opt))
	dst := out.Floats()

	if l.useSGEMM {
		wm := mat.NewDense(l.numOutput, l.inputSize, toFloat64(l.weight.Floats()))
		xv := mat.NewVecDense(l.inputSize, toFloat64(x.Floats()))
		var yv mat.VecDense
		yv.MulVec(wm, xv)
		for i := 0; i < l.numOutput; i++ {
			dst[i] = float32(yv.AtVec(i))
		}
	} else {
		xs := x.Floats()
		ws := l.weight.Floats()
		for o := 0; o < l.numOutput; o++ {
			var sum float32
			row := ws[o*l.inputSize : (o+1)*l.inputSize]
			for i, v := range row {
				sum += v * xs[i]
			}
			dst[o] = sum
		}
	}

	if l.biasTerm {
		bs := l.bias.Floats()
		for i := range dst {
			dst[i] += bs[i]
		}
	}

	return []*tensor.Tensor{out}, nil
}

func pickAllocator(opt Option) tensor.Allocator {
	if opt.BlobAllocator != nil {
		return opt.BlobAllocator
	}
	return tensor.NewHeapAllocator()
}

func toFloat64(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
