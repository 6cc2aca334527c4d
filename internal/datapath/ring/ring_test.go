package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_FIFO(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Push(i))
	}
	assert.Equal(t, 3, r.Len())

	for want := 1; want <= 3; want++ {
		got, ok := r.Pop()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestRing_DropsOldestWhenFull(t *testing.T) {
	r := New[string](2)
	r.Push("a")
	r.Push("b")
	assert.True(t, r.Push("c"))

	got, _ := r.Pop()
	assert.Equal(t, "b", got)
	got, _ = r.Pop()
	assert.Equal(t, "c", got)
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := New[int](0)
	assert.Equal(t, 1, r.Cap())
	r.Push(1)
	assert.True(t, r.Push(2))
	r.Reset()
	assert.Zero(t, r.Len())
}
