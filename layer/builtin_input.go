package layer

import (
	"fmt"

	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

// Input is the identity source layer: zero bottoms, one top, the blob
// the Extractor populates directly via Extractor.Input. The lazy
// executor only calls its Forward when that blob was never supplied,
// and Forward then reports the missing input as an error.
type Input struct {
	Base
	w, h, c int
}

// NewInput constructs an unconfigured Input layer.
func NewInput() *Input {
	return &Input{Base: NewBase(true, false)}
}

func (l *Input) TypeName() string { return "Input" }

// LoadParam reads the optional w/h/c shape hint (keys 0,1,2), purely
// informational: the Extractor supplies the actual tensor at inference
// time and never consults these fields.
func (l *Input) LoadParam(pd *paramdict.ParamDict) error {
	l.w = pd.Int(0, 0)
	l.h = pd.Int(1, 0)
	l.c = pd.Int(2, 0)
	return nil
}

func (l *Input) LoadModel(mb *modelbin.ModelBin) error { return nil }

func (l *Input) Forward(bottoms []*tensor.Tensor, opt Option) ([]*tensor.Tensor, error) {
	return nil, errs.New("Input.Forward", errs.KindNotFound,
		fmt.Errorf("input blob was never supplied through Extractor.Input"))
}
