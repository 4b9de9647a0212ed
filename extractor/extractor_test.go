// MODUL: extractor_test
// ZWECK: Deckt vier Szenarien ab: Passthrough, Scale-Inplace/Outplace,
// Diamond-DAG-Wiederverwendung, benutzerdefinierter Layer
package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nnexec/netcore/graph"
	"github.com/nnexec/netcore/layer"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
	"github.com/nnexec/netcore/tensor"
)

const passthroughParam = `7767517
2 2
Input in 0 1 data
Scale scale1 1 1 data out 1=1.0
`

func TestTrivialPassthrough(t *testing.T) {
	n := graph.NewNet()
	require.NoError(t, n.LoadParam(strings.NewReader(passthroughParam)))

	ex := New(n, layer.Option{}, false)
	require.NotEmpty(t, ex.ID)
	alloc := tensor.NewHeapAllocator()
	in := tensor.CreateFromFloats([]float32{1, 2, 3, 4}, alloc)
	require.NoError(t, ex.Input("data", in))

	out, err := ex.Extract("out")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, out.Floats())
}

const scaleParam = `7767517
2 2
Input in 0 1 data
Scale scale1 1 1 data out 1=0.5
`

func TestScaleInplaceVsOutplace(t *testing.T) {
	for _, lightMode := range []bool{false, true} {
		n := graph.NewNet()
		require.NoError(t, n.LoadParam(strings.NewReader(scaleParam)))

		ex := New(n, layer.Option{}, lightMode)
		alloc := tensor.NewHeapAllocator()
		in := tensor.Create([]int{2, 2}, 4, alloc)
		copy(in.Floats(), []float32{1, 2, 3, 4})
		require.NoError(t, ex.Input("data", in))

		out, err := ex.Extract("out")
		require.NoError(t, err)
		require.Equal(t, []float32{0.5, 1.0, 1.5, 2.0}, out.Floats())

		if lightMode {
			require.Zero(t, in.Dims, "lightmode must evict the consumed input slot")
		} else {
			require.NotZero(t, in.Dims, "without lightmode the input slot stays populated")
		}
	}
}

const diamondParam = `7767517
4 4
Input in 0 1 data
Scale a 1 1 data a_out 1=2.0
Scale b 1 1 a_out b_out 1=3.0
Scale c 1 1 a_out c_out 1=5.0
`

func TestDiamondDAGReusesSharedProducer(t *testing.T) {
	n := graph.NewNet()
	require.NoError(t, n.LoadParam(strings.NewReader(diamondParam)))

	ex := New(n, layer.Option{}, true)
	alloc := tensor.NewHeapAllocator()
	in := tensor.CreateFromFloats([]float32{1}, alloc)
	require.NoError(t, ex.Input("data", in))

	b, err := ex.Extract("b_out")
	require.NoError(t, err)
	require.Equal(t, []float32{6}, b.Floats()) // 1 * 2 * 3

	aIdx, _ := n.BlobIndex("a_out")
	require.NotZero(t, ex.slots[aIdx].Dims, "a_out must still be live for c's consumption")

	c, err := ex.Extract("c_out")
	require.NoError(t, err)
	require.Equal(t, []float32{10}, c.Floats()) // 1 * 2 * 5

	require.Nil(t, ex.slots[aIdx], "a_out is released once its last consumer (c) has run")
}

// doubleIt doubles its single input; used to exercise custom layer
// registration.
type doubleIt struct {
	layer.Base
}

func newDoubleIt() layer.Layer { return &doubleIt{Base: layer.NewBase(true, false)} }

func (d *doubleIt) TypeName() string                        { return "DoubleIt" }
func (d *doubleIt) LoadParam(pd *paramdict.ParamDict) error { return nil }
func (d *doubleIt) LoadModel(mb *modelbin.ModelBin) error   { return nil }

func (d *doubleIt) Forward(bottoms []*tensor.Tensor, opt layer.Option) ([]*tensor.Tensor, error) {
	out := bottoms[0].Clone()
	dst := out.Floats()
	for i := range dst {
		dst[i] *= 2
	}
	return []*tensor.Tensor{out}, nil
}

const customLayerParam = `7767517
2 2
Input in 0 1 data
DoubleIt d1 1 1 data out
`

func TestCustomLayerRegistration(t *testing.T) {
	n := graph.NewNet()
	_, err := n.RegisterCustomLayer("DoubleIt", newDoubleIt)
	require.NoError(t, err)
	require.NoError(t, n.LoadParam(strings.NewReader(customLayerParam)))
	require.NotZero(t, n.Layers[1].TypeIdx&layer.CustomBit)

	ex := New(n, layer.Option{}, false)
	alloc := tensor.NewHeapAllocator()
	in := tensor.CreateFromFloats([]float32{3, 4}, alloc)
	require.NoError(t, ex.Input("data", in))

	out, err := ex.Extract("out")
	require.NoError(t, err)
	require.Equal(t, []float32{6, 8}, out.Floats())
}
