package layer

import (
	"gorgonia.org/vecf32"

	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// Scale multiplies its single input by a scalar, in place.
type Scale struct {
	Base
	scale float32
}

// NewScale constructs an unconfigured Scale layer.
func NewScale() *Scale {
	return &Scale{Base: NewBase(true, true)}
}

func (l *Scale) TypeName() string { return "Scale" }

// LoadParam reads the scalar multiplier from key 1 (odd => float by
// the ParamDict wire convention), defaulting to 1.0 (identity) when
// absent.
func (l *Scale) LoadParam(pd *paramdict.ParamDict) error {
	l.scale = pd.Float(1, 1.0)
	return nil
}

func (l *Scale) LoadModel(mb *modelbin.ModelBin) error { return nil }

func (l *Scale) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	out := bottoms[0].Clone()
	vecf32.Scale(out.Floats(), l.scale)
	return []*tensor.Tensor{out}, nil
}

func (l *Scale) ForwardInplace(bottomTops []*tensor.Tensor, opt Option) error {
	vecf32.Scale(bottomTops[0].Floats(), l.scale)
	return nil
}
