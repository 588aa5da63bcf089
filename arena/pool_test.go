package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAlloc(t *testing.T) {
	t.Run("indexes are sequential", func(t *testing.T) {
		var p Pool[int]

		for i := 0; i < pageSize*2+3; i++ {
			idx, v := p.Alloc()
			require.Equal(t, Index(i), idx)
			*v = i
		}
		require.Equal(t, pageSize*2+3, p.Len())
		require.Equal(t, pageSize+1, *p.Get(pageSize + 1))
	})

	t.Run("pointers survive page growth", func(t *testing.T) {
		var p Pool[int]

		_, first := p.Alloc()
		*first = 42

		for i := 0; i < pageSize*3; i++ {
			p.Alloc()
		}
		require.Equal(t, 42, *first)
		require.Same(t, first, p.Get(0))
	})
}

func TestPoolReset(t *testing.T) {
	var p Pool[int]
	p.Reset()
	require.Zero(t, p.Len())

	for i := 0; i < pageSize+10; i++ {
		_, v := p.Alloc()
		*v = 7
	}

	p.Reset()
	require.Zero(t, p.Len())

	idx, v := p.Alloc()
	require.Equal(t, Index(0), idx)
	require.Zero(t, *v)
}
