// MODUL: tensor_test
// ZWECK: Unit-Tests fuer Tensor-Erzeugung, Clone, Refcount und Release
package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreatePadsCStep(t *testing.T) {
	tt := Create([]int{3, 3}, 4, nil)
	require.Equal(t, 2, tt.Dims)
	// 3*3*4 = 36 bytes, aligned up to 48 -> 12 elements
	require.Equal(t, 12, tt.CStep)
}

func TestCloneAllocatesFreshStorageWithRefcountOne(t *testing.T) {
	a := CreateFromFloats([]float32{1, 2, 3, 4}, nil)
	b := a.Ref()
	require.Equal(t, 2, a.RefCount())

	c := a.Clone()
	require.Equal(t, 1, c.RefCount())
	require.True(t, a.Shares(b))
	require.False(t, a.Shares(c))

	c.Floats()[0] = 99
	require.NotEqual(t, c.Floats()[0], a.Floats()[0])
}

func TestReleaseIsIdempotentAndZeroesDims(t *testing.T) {
	alloc := NewHeapAllocator()
	tt := Create([]int{4}, 4, alloc)
	require.Greater(t, alloc.Live(), int64(0))

	tt.Release()
	require.Equal(t, 0, tt.Dims)
	require.EqualValues(t, 0, alloc.Live())

	// idempotent
	tt.Release()
	require.Equal(t, 0, tt.Dims)
}

func TestSharedStorageReleasedOnlyWhenLastRefDrops(t *testing.T) {
	alloc := NewHeapAllocator()
	a := Create([]int{4}, 4, alloc)
	b := a.Ref()

	a.Release()
	require.Greater(t, alloc.Live(), int64(0), "storage must survive while b still references it")

	b.Release()
	require.EqualValues(t, 0, alloc.Live())
}
