package layer

import (
	"gorgonia.org/vecf32"

	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// Eltwise operations. Only Sum is implemented; Product/Max are
// natural follow-ups.
const EltwiseOpSum = 0

// Eltwise combines N>=2 bottoms of identical shape into one top.
// SupportInplace is false: the accumulation needs a fresh buffer since
// none of the N bottoms may be safely overwritten (any of them may
// still be consumed elsewhere in the graph).
type Eltwise struct {
	Base
	op int
}

// NewEltwise constructs an unconfigured Eltwise layer.
func NewEltwise() *Eltwise {
	return &Eltwise{Base: NewBase(false, false)}
}

func (l *Eltwise) TypeName() string { return "Eltwise" }

// LoadParam reads the operation selector from key 0 (default Sum).
func (l *Eltwise) LoadParam(pd *paramdict.ParamDict) error {
	l.op = pd.Int(0, EltwiseOpSum)
	if l.op != EltwiseOpSum {
		return errs.New("Eltwise.LoadParam", errs.KindBadParam, nil)
	}
	return nil
}

func (l *Eltwise) LoadModel(mb *modelbin.ModelBin) error { return nil }

func (l *Eltwise) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	if len(bottoms) < 2 {
		return nil, errs.New("Eltwise.Forward", errs.KindShapeError, nil)
	}
	for _, b := range bottoms[1:] {
		if !b.EqualShape(bottoms[0]) {
			return nil, errs.New("Eltwise.Forward", errs.KindShapeError, nil)
		}
	}

	out := bottoms[0].Clone()
	acc := out.Floats()
	for _, b := range bottoms[1:] {
		vecf32.Add(acc, b.Floats())
	}
	return []*tensor.Tensor{out}, nil
}
