// MODUL: modelbin_test
// ZWECK: Tests fuer f32 Gewicht-Dekodierung und kurze Lesevorgaenge
package modelbin

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/tensor"
)

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func TestLoadTensorF32(t *testing.T) {
	var buf bytes.Buffer
	writeU32(&buf, FlagF32)
	for _, f := range []float32{1, 2, 3, 4} {
		writeU32(&buf, math.Float32bits(f))
	}

	mb := NewStream(&buf)
	tt, err := mb.LoadTensor(4, tensor.NewHeapAllocator())
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, tt.Floats())
}

func TestLoadTensorShortReadIsBadModel(t *testing.T) {
	var buf bytes.Buffer
	writeU32(&buf, FlagF32)
	buf.Write([]byte{1, 2}) // short: declares 4 elements but only 2 bytes follow

	mb := NewStream(&buf)
	_, err := mb.LoadTensor(4, tensor.NewHeapAllocator())
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindBadModel))
}
