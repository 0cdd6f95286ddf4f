package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

func TestAllocExhaustion(t *testing.T) {
	p := New(2)
	i1, err := p.Alloc()
	require.NoError(t, err)
	i2, err := p.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, i1, i2)

	_, err = p.Alloc()
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAllocAfterRelease(t *testing.T) {
	p := New(1)
	idx, err := p.Alloc()
	require.NoError(t, err)
	p.Release(idx)

	idx2, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
	assert.Equal(t, 0, p.Get(idx2).Attempts)
}

func TestListPushTailOrder(t *testing.T) {
	p := New(4)
	l := NewList(p)

	var idxs []int
	for i := 0; i < 3; i++ {
		idx, err := p.Alloc()
		require.NoError(t, err)
		idxs = append(idxs, idx)
		l.PushTail(idx)
	}

	assert.Equal(t, 3, l.Count())
	var seen []int
	l.ForEach(func(idx int) { seen = append(seen, idx) })
	assert.Equal(t, idxs, seen)
}

func TestListPushHeadPriority(t *testing.T) {
	p := New(4)
	l := NewList(p)

	a, _ := p.Alloc()
	b, _ := p.Alloc()
	l.PushTail(a)
	l.PushHead(b)

	assert.Equal(t, b, l.Head())
	var seen []int
	l.ForEach(func(idx int) { seen = append(seen, idx) })
	assert.Equal(t, []int{b, a}, seen)
}

func TestListRemoveDuringForEach(t *testing.T) {
	p := New(4)
	l := NewList(p)

	var idxs []int
	for i := 0; i < 3; i++ {
		idx, _ := p.Alloc()
		idxs = append(idxs, idx)
		l.PushTail(idx)
	}

	l.ForEach(func(idx int) {
		if idx == idxs[1] {
			l.Remove(idx)
		}
	})

	assert.Equal(t, 2, l.Count())
	var remaining []int
	l.ForEach(func(idx int) { remaining = append(remaining, idx) })
	assert.Equal(t, []int{idxs[0], idxs[2]}, remaining)
}

func TestListPopHeadEmpty(t *testing.T) {
	p := New(1)
	l := NewList(p)
	assert.Equal(t, noIndex, l.PopHead())
	assert.True(t, l.Empty())
}

func TestSlotRoleSetByAlloc(t *testing.T) {
	p := New(1)
	idx, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, ocppmsg.Alloc, p.Get(idx).Role)
}
