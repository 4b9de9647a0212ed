// MODUL: graph_net_test
// ZWECK: Deckt Topologie-Parsing, Blob-Verdrahtung und den Text-Rundweg ab
package graph

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nnexec/netcore/errs"
)

const sampleParam = `7767517
3 3
Input in 0 1 data
Scale scale1 1 1 data out 1=2.0
Sigmoid sig1 1 1 out out
`

func TestLoadParamResolvesBlobsAndLayers(t *testing.T) {
	n := NewNet()
	require.NoError(t, n.LoadParam(strings.NewReader(sampleParam)))
	require.Len(t, n.Layers, 3)
	require.Len(t, n.Blobs, 2)

	data, ok := n.BlobIndex("data")
	require.True(t, ok)
	require.Equal(t, -1, n.Blobs[data].Producer)
	require.Equal(t, []int{0}, n.Blobs[data].Consumers)

	out, ok := n.BlobIndex("out")
	require.True(t, ok)
	require.Equal(t, 1, n.Blobs[out].Producer)

	require.NotNil(t, n.Layers[1].Layer)
	require.Equal(t, "Scale", n.Layers[1].TypeName)
}

func TestLoadParamRejectsBadMagic(t *testing.T) {
	n := NewNet()
	err := n.LoadParam(strings.NewReader("123\n0 0\n"))
	require.Error(t, err)
}

func TestUnknownLayerTypeAbortsLoad(t *testing.T) {
	n := NewNet()
	src := "7767517\n1 1\nBogusType l1 0 1 out\n"
	err := n.LoadParam(strings.NewReader(src))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindUnknownLayerType))
	require.Empty(t, n.Layers)
	require.Empty(t, n.Blobs)
}

// buildBinaryTopology encodes the same three-layer graph as sampleParam
// (Input -> Scale(1=2.0) -> Sigmoid, with Sigmoid rewriting "out" in
// place) in the binary topology wire format, so the three loaders can
// be checked against one another for format-equivalence.
func buildBinaryTopology(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	w(int32(MagicNumber))
	w(uint64(3)) // layer_count
	w(uint64(2)) // blob_count

	// layer 0: Input in, 0 bottoms, 1 top (blob 0 "data")
	w(int32(0)) // TypeInput
	w(uint64(0))
	w(uint64(1))
	w(uint64(0))
	w(int32(-233)) // empty param record

	// layer 1: Scale scale1, 1 bottom (blob 0), 1 top (blob 1 "out"), 1=2.0
	w(int32(1)) // TypeScale
	w(uint64(1))
	w(uint64(1))
	w(uint64(0))
	w(uint64(1))
	w(int32(1))
	w(float32(2.0))
	w(int32(-233))

	// layer 2: Sigmoid sig1, 1 bottom (blob 1), 1 top (blob 1, rewritten in place)
	w(int32(4)) // TypeSigmoid
	w(uint64(1))
	w(uint64(1))
	w(uint64(1))
	w(uint64(1))
	w(int32(-233))

	return buf.Bytes()
}

func requireGraphsEquivalent(t *testing.T, want, got *Net) {
	t.Helper()
	require.Equal(t, len(want.Layers), len(got.Layers))
	require.Equal(t, len(want.Blobs), len(got.Blobs))
	for i := range want.Layers {
		require.Equal(t, want.Layers[i].TypeName, got.Layers[i].TypeName)
		require.Equal(t, want.Layers[i].Bottoms, got.Layers[i].Bottoms)
		require.Equal(t, want.Layers[i].Tops, got.Layers[i].Tops)
		require.Equal(t, want.Layers[i].Layer == nil, got.Layers[i].Layer == nil)
	}
}

func TestLoadParamBinMatchesText(t *testing.T) {
	text := NewNet()
	require.NoError(t, text.LoadParam(strings.NewReader(sampleParam)))

	bin := NewNet()
	require.NoError(t, bin.LoadParamBin(bytes.NewReader(buildBinaryTopology(t))))

	requireGraphsEquivalent(t, text, bin)
}

func TestLoadParamMemMatchesText(t *testing.T) {
	text := NewNet()
	require.NoError(t, text.LoadParam(strings.NewReader(sampleParam)))

	mem := NewNet()
	raw := buildBinaryTopology(t)
	consumed, err := mem.LoadParamMem(raw)
	require.NoError(t, err)
	require.Equal(t, len(raw), consumed)

	requireGraphsEquivalent(t, text, mem)
}

func TestLoadParamBinUnknownTypeAbortsLoad(t *testing.T) {
	var buf bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }

	w(int32(MagicNumber))
	w(uint64(1))
	w(uint64(1))
	w(int32(999)) // no such built-in type index
	w(uint64(0))
	w(uint64(1))
	w(uint64(0))

	n := NewNet()
	err := n.LoadParamBin(&buf)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindUnknownLayerType))
	require.Empty(t, n.Layers)
}

func TestWriteParamRoundTrip(t *testing.T) {
	n := NewNet()
	require.NoError(t, n.LoadParam(strings.NewReader(sampleParam)))

	var buf bytes.Buffer
	require.NoError(t, n.WriteParam(&buf))

	n2 := NewNet()
	require.NoError(t, n2.LoadParam(strings.NewReader(buf.String())))

	require.Equal(t, len(n.Layers), len(n2.Layers))
	require.Equal(t, len(n.Blobs), len(n2.Blobs))
	for i := range n.Layers {
		require.Equal(t, n.Layers[i].TypeName, n2.Layers[i].TypeName)
		require.Equal(t, n.Layers[i].Name, n2.Layers[i].Name)
		require.Equal(t, n.Layers[i].Bottoms, n2.Layers[i].Bottoms)
		require.Equal(t, n.Layers[i].Tops, n2.Layers[i].Tops)
	}
}
