// MODUL: backend_cpu_test
// ZWECK: Deckt ParallelFor (sequentiell und geteilt) und den Null-GPU-Stub ab
package backend

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelForCoversEveryIndexOnce(t *testing.T) {
	const n = 37
	var mu sync.Mutex
	seen := make(map[int]bool, n)

	err := ParallelFor(4, n, func(i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, n)
}

func TestParallelForPropagatesFirstError(t *testing.T) {
	want := errors.New("boom")
	var calls int64
	err := ParallelFor(4, 8, func(i int) error {
		atomic.AddInt64(&calls, 1)
		if i == 3 {
			return want
		}
		return nil
	})
	require.ErrorIs(t, err, want)
}

func TestParallelForSequentialWhenSingleThread(t *testing.T) {
	var order []int
	err := ParallelFor(1, 5, func(i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestNullGPURoundTrip(t *testing.T) {
	gpu := &Null{}
	tt, err := gpu.AllocateTensor([]int{4}, 4)
	require.NoError(t, err)
	copy(tt.Floats(), []float32{1, 2, 3, 4})

	require.NoError(t, gpu.RecordUpload(tt))
	require.NoError(t, gpu.RecordBarrier(tt))
	require.NoError(t, gpu.RecordDispatch("Scale", DispatchConstants{}, WorkgroupCounts{X: 1}))
	require.NoError(t, gpu.Submit())

	out, err := gpu.Download(tt)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, out.Floats())
}
