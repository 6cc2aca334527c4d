// Package flow is the datapath flow table: opaque flow keys mapped to
// actions and counters. Flows keep insertion order so dumps are stable.
package flow

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrExists   = errors.New("flow: flow already exists")
	ErrNotFound = errors.New("flow: no such flow")
	ErrEmptyKey = errors.New("flow: empty key")
)

// Stats are the per-flow counters.
type Stats struct {
	Packets  uint64
	Bytes    uint64
	UsedMs   uint64 // wall-clock milliseconds of the last hit, 0 if never used
	TCPFlags uint8
}

// Flow is one table entry. Byte slices are owned by the table and must be
// treated as read-only by callers.
type Flow struct {
	Key     []byte
	Mask    []byte
	Actions []byte
	Stats   Stats
}

// Table is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	order []*Flow
	byKey map[string]*Flow
}

// NewTable returns an empty flow table.
func NewTable() *Table {
	return &Table{byKey: make(map[string]*Flow)}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// New installs a flow. It fails with ErrExists if the key is present.
func (t *Table) New(key, mask, actions []byte) (Flow, error) {
	if len(key) == 0 {
		return Flow{}, ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byKey[string(key)]; ok {
		return Flow{}, ErrExists
	}
	f := &Flow{Key: clone(key), Mask: clone(mask), Actions: clone(actions)}
	t.order = append(t.order, f)
	t.byKey[string(key)] = f
	return *f, nil
}

// Set replaces the actions of an existing flow; a nil actions slice keeps
// the current ones. clearStats resets the counters.
func (t *Table) Set(key, actions []byte, clearStats bool) (Flow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byKey[string(key)]
	if !ok {
		return Flow{}, ErrNotFound
	}
	if actions != nil {
		f.Actions = clone(actions)
	}
	if clearStats {
		f.Stats = Stats{}
	}
	return *f, nil
}

// Delete removes the flow with key and returns it.
func (t *Table) Delete(key []byte) (Flow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byKey[string(key)]
	if !ok {
		return Flow{}, ErrNotFound
	}
	delete(t.byKey, string(key))
	for i, o := range t.order {
		if o == f {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	return *f, nil
}

// Flush removes every flow and returns how many were removed.
func (t *Table) Flush() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.order)
	t.order = nil
	clear(t.byKey)
	return n
}

// Get returns the flow with key.
func (t *Table) Get(key []byte) (Flow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	f, ok := t.byKey[string(key)]
	if !ok {
		return Flow{}, false
	}
	return *f, true
}

// At returns the flow at position i in insertion order. Positions shift
// when earlier flows are deleted, so dumps resuming by position may skip
// or repeat entries.
func (t *Table) At(i int) (Flow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i < 0 || i >= len(t.order) {
		return Flow{}, false
	}
	return *t.order[i], true
}

// Len returns the number of flows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Hit records a packet matching key. It reports whether the flow exists.
func (t *Table) Hit(key []byte, bytes uint64, tcpFlags uint8) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byKey[string(key)]
	if !ok {
		return false
	}
	f.Stats.Packets++
	f.Stats.Bytes += bytes
	f.Stats.TCPFlags |= tcpFlags
	f.Stats.UsedMs = uint64(time.Now().UnixMilli())
	return true
}
