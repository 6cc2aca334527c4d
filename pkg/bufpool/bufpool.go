// Package bufpool recycles the byte slices that carry control frames.
//
// Frames fall into three size classes: small (most transactions and every
// event or pend), medium (dump replies and upcalls carrying a packet) and
// large (the biggest frame the transport accepts). Requests above the
// large class are allocated directly and never pooled.
//
// Usage:
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default size classes.
const (
	DefaultSmallSize  = 4 << 10
	DefaultMediumSize = 64 << 10
	DefaultLargeSize  = 256 << 10
)

// Pool is a set of sync.Pools, one per size class.
type Pool struct {
	classes [3]class
}

type class struct {
	size int
	pool sync.Pool
}

// Config sets the class sizes. Zero fields take the defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default class sizes.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

// NewPool returns a pool for cfg; nil means DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{}
	for i, size := range []int{c.SmallSize, c.MediumSize, c.LargeSize} {
		cl := &p.classes[i]
		cl.size = size
		cl.pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Get returns a slice of length size. Its contents are unspecified.
// Pass it to Put once done.
func (p *Pool) Get(size int) []byte {
	for i := range p.classes {
		cl := &p.classes[i]
		if size <= cl.size {
			buf := *cl.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put hands buf back. Slices that did not come from Get are dropped.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for i := range p.classes {
		cl := &p.classes[i]
		if cap(buf) == cl.size {
			full := buf[:cl.size]
			cl.pool.Put(&full)
			return
		}
	}
}

var global = NewPool(nil)

// Get takes a buffer from the package-level pool.
func Get(size int) []byte {
	return global.Get(size)
}

// Put returns a buffer to the package-level pool.
func Put(buf []byte) {
	global.Put(buf)
}

// GetUint32 is Get for the uint32 lengths found in frame headers.
func GetUint32(size uint32) []byte {
	return global.Get(int(size))
}
