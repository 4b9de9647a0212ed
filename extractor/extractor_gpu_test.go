// MODUL: extractor_gpu_test
// ZWECK: Deckt den GPU-Befehlsaufzeichnungspfad ueber den Null-Backend ab
package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nnexec/netcore/backend"
	"github.com/nnexec/netcore/graph"
	"github.com/nnexec/netcore/layer"
	"github.com/nnexec/netcore/tensor"
)

func newGPUNet(t *testing.T, param string) *graph.Net {
	t.Helper()
	n := graph.NewNet()
	n.Options.GPU = true
	require.NoError(t, n.LoadParam(strings.NewReader(param)))
	return n
}

func TestGPUPassthroughMatchesCPU(t *testing.T) {
	cpuNet := graph.NewNet()
	require.NoError(t, cpuNet.LoadParam(strings.NewReader(passthroughParam)))
	cpuEx := New(cpuNet, layer.Option{}, false)
	cpuIn := tensor.CreateFromFloats([]float32{1, 2, 3, 4}, tensor.NewHeapAllocator())
	require.NoError(t, cpuEx.Input("data", cpuIn))
	cpuOut, err := cpuEx.Extract("out")
	require.NoError(t, err)

	gpuNet := newGPUNet(t, passthroughParam)
	gpuEx := New(gpuNet, layer.Option{}, false, &backend.Null{})
	gpuIn := tensor.CreateFromFloats([]float32{1, 2, 3, 4}, tensor.NewHeapAllocator())
	require.NoError(t, gpuEx.Input("data", gpuIn))
	gpuOut, err := gpuEx.Extract("out")
	require.NoError(t, err)

	require.Equal(t, cpuOut.Floats(), gpuOut.Floats())
}

func TestGPUInplaceScaleMatchesCPU(t *testing.T) {
	for _, lightMode := range []bool{false, true} {
		net := newGPUNet(t, scaleParam)
		ex := New(net, layer.Option{}, lightMode, &backend.Null{})

		in := tensor.Create([]int{2, 2}, 4, tensor.NewHeapAllocator())
		copy(in.Floats(), []float32{1, 2, 3, 4})
		require.NoError(t, ex.Input("data", in))

		out, err := ex.Extract("out")
		require.NoError(t, err)
		require.Equal(t, []float32{0.5, 1.0, 1.5, 2.0}, out.Floats())
	}
}

func TestGPUOffLeavesNullBackendUnused(t *testing.T) {
	// net.Options.GPU is false here: even with a GPU backend supplied,
	// useGPU() must stay false and execution must run the plain CPU path.
	n := graph.NewNet()
	require.NoError(t, n.LoadParam(strings.NewReader(passthroughParam)))

	ex := New(n, layer.Option{}, false, &backend.Null{})
	require.False(t, ex.useGPU())

	in := tensor.CreateFromFloats([]float32{1, 2, 3, 4}, tensor.NewHeapAllocator())
	require.NoError(t, ex.Input("data", in))
	out, err := ex.Extract("out")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, out.Floats())
}
