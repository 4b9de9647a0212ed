package layer

import (
	"github.com/chewxy/math32"

	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// Sigmoid is a one_blob_only, support_inplace activation. It takes no
// parameters.
type Sigmoid struct {
	Base
}

// NewSigmoid constructs a Sigmoid layer.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{Base: NewBase(true, true)}
}

func (l *Sigmoid) TypeName() string                        { return "Sigmoid" }
func (l *Sigmoid) LoadParam(pd *paramdict.ParamDict) error { return nil }
func (l *Sigmoid) LoadModel(mb *modelbin.ModelBin) error   { return nil }

func (l *Sigmoid) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	out := bottoms[0].Clone()
	sigmoidInplace(out.Floats())
	return []*tensor.Tensor{out}, nil
}

func (l *Sigmoid) ForwardInplace(bottomTops []*tensor.Tensor, opt Option) error {
	sigmoidInplace(bottomTops[0].Floats())
	return nil
}

func sigmoidInplace(data []float32) {
	for i, v := range data {
		data[i] = 1.0 / (1.0 + math32.Exp(-v))
	}
}

// ReLU is a one_blob_only, support_inplace activation, with the
// conventional optional negative slope (key 1).
type ReLU struct {
	Base
	slope float32
}

// NewReLU constructs a ReLU layer with slope 0 (plain ReLU) until
// LoadParam overrides it.
func NewReLU() *ReLU {
	return &ReLU{Base: NewBase(true, true)}
}

func (l *ReLU) TypeName() string { return "ReLU" }

// LoadParam reads the negative slope from key 1 (odd => float by the
// ParamDict wire convention); absent means plain ReLU (slope 0).
func (l *ReLU) LoadParam(pd *paramdict.ParamDict) error {
	l.slope = pd.Float(1, 0)
	return nil
}

func (l *ReLU) LoadModel(mb *modelbin.ModelBin) error { return nil }

func (l *ReLU) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	out := bottoms[0].Clone()
	l.reluInplace(out.Floats())
	return []*tensor.Tensor{out}, nil
}

func (l *ReLU) ForwardInplace(bottomTops []*tensor.Tensor, opt Option) error {
	l.reluInplace(bottomTops[0].Floats())
	return nil
}

func (l *ReLU) reluInplace(data []float32) {
	for i, v := range data {
		if v < 0 {
			data[i] = v * l.slope
		}
	}
}
