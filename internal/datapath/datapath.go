// Package datapath holds the switch context shared by the control plane:
// the identity of the single active datapath, its port and flow tables,
// the event and packet queues, and the control lock.
package datapath

import (
	"sync/atomic"

	"github.com/marmos91/ovsdp/internal/spinlock"
)

// Datapath is the identity and counters of the active datapath. Index,
// name and the user-space settings are guarded by the control lock; the
// counters are atomic.
type Datapath struct {
	lock *spinlock.Lock

	index        int32
	name         string
	upcallPID    uint32
	userFeatures uint32

	hits   atomic.Uint64
	misses atomic.Uint64
	lost   atomic.Uint64
}

// Identity is a consistent snapshot of the datapath.
type Identity struct {
	Index        int32  `json:"index"`
	Name         string `json:"name"`
	UpcallPID    uint32 `json:"upcall_pid"`
	UserFeatures uint32 `json:"user_features"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Lost         uint64 `json:"lost"`
	Flows        uint64 `json:"flows"`
}

func (d *Datapath) RecordHit()  { d.hits.Add(1) }
func (d *Datapath) RecordMiss() { d.misses.Add(1) }
func (d *Datapath) RecordLost() { d.lost.Add(1) }

// Index returns the active datapath index.
func (d *Datapath) Index() int32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.index
}

// Name returns the datapath name.
func (d *Datapath) Name() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.name
}

// Configure records the upcall pid and user features requested by the
// agent. A zero value leaves the setting unchanged.
func (d *Datapath) Configure(upcallPID, userFeatures uint32) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if upcallPID != 0 {
		d.upcallPID = upcallPID
	}
	if userFeatures != 0 {
		d.userFeatures = userFeatures
	}
}

// snapshot reads the identity under the control lock. flows is supplied by
// the caller because the flow table has its own lock, which must not be
// taken while the control lock is held.
func (d *Datapath) snapshot(flows int) Identity {
	d.lock.Lock()
	id := Identity{
		Index:        d.index,
		Name:         d.name,
		UpcallPID:    d.upcallPID,
		UserFeatures: d.userFeatures,
	}
	d.lock.Unlock()

	id.Hits = d.hits.Load()
	id.Misses = d.misses.Load()
	id.Lost = d.lost.Load()
	id.Flows = uint64(flows)
	return id
}
