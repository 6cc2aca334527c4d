package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_SizeClasses(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"empty frame", 0, DefaultSmallSize},
		{"header only", 24, DefaultSmallSize},
		{"small boundary", DefaultSmallSize, DefaultSmallSize},
		{"dump reply", DefaultSmallSize + 1, DefaultMediumSize},
		{"medium boundary", DefaultMediumSize, DefaultMediumSize},
		{"upcall with jumbo packet", DefaultMediumSize + 1, DefaultLargeSize},
		{"large boundary", DefaultLargeSize, DefaultLargeSize},
		{"oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			defer Put(buf)

			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
		})
	}
}

func TestPut_IgnoresForeignSlices(t *testing.T) {
	assert.NotPanics(t, func() {
		Put(nil)
		Put(make([]byte, 100))
		Put(make([]byte, DefaultLargeSize*2))
	})
}

func TestPool_Reuse(t *testing.T) {
	p := NewPool(nil)

	buf := p.Get(128)
	buf[0] = 0xAB
	p.Put(buf)

	again := p.Get(64)
	assert.Len(t, again, 64)
	assert.Equal(t, DefaultSmallSize, cap(again))
}

func TestNewPool_CustomSizes(t *testing.T) {
	p := NewPool(&Config{SmallSize: 512, LargeSize: 1 << 20})

	assert.Equal(t, 512, cap(p.Get(100)))
	assert.Equal(t, DefaultMediumSize, cap(p.Get(1000)))
	assert.Equal(t, 1<<20, cap(p.Get(DefaultMediumSize+1)))
}

func TestGetUint32(t *testing.T) {
	buf := GetUint32(300)
	defer Put(buf)
	assert.Len(t, buf, 300)
}

func TestPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				size := (n*j)%DefaultMediumSize + 1
				buf := Get(size)
				buf[size-1] = byte(j)
				Put(buf)
			}
		}(i)
	}
	wg.Wait()
}
