package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingFIFO(t *testing.T) {
	r := New[int](3)
	require.Equal(t, 3, r.Cap())
	_, ok := r.Pop()
	require.False(t, ok)

	require.True(t, r.Push(1))
	require.True(t, r.Push(2))
	require.True(t, r.Push(3))
	require.False(t, r.Push(4))
	require.Equal(t, 3, r.Len())

	for _, expect := range []int{1, 2, 3} {
		v, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, expect, v)
	}
	_, ok = r.Pop()
	require.False(t, ok)
	require.Equal(t, 0, r.Len())
}

func TestRingWrapAround(t *testing.T) {
	r := New[int](2)
	for i := 0; i < 100; i++ {
		require.True(t, r.Push(i))
		v, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestRingConcurrent(t *testing.T) {
	const count = 10000
	r := New[int](16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; {
			if r.Push(i) {
				i++
			}
		}
	}()
	for next := 0; next < count; {
		if v, ok := r.Pop(); ok {
			require.Equal(t, next, v)
			next++
		}
	}
	wg.Wait()
}

func TestRingInvalidCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}
