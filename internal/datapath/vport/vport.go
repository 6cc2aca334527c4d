// Package vport is the switch-wide port table.
//
// Ports are hashed by number into NumBuckets buckets and indexed by name.
// A reader/writer lock guards the table: handlers take the read lock
// (View) for the whole lookup-plus-reply sequence so a port cannot vanish
// while its reply is being built, and the write lock (Update) to create,
// delete or mutate ports.
package vport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/marmos91/ovsdp/internal/datapath/event"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// NumBuckets is the number of hash buckets keyed by port number.
const NumBuckets = 1024

// DefaultMTU is assigned to ports created without one.
const DefaultMTU = 1500

var (
	ErrExists       = errors.New("vport: port already exists")
	ErrNotFound     = errors.New("vport: no such port")
	ErrPortNoInUse  = errors.New("vport: port number in use")
	ErrPortNoRange  = errors.New("vport: port number out of range")
	ErrNoFreePort   = errors.New("vport: no free port number")
	ErrInvalidName  = errors.New("vport: invalid port name")
	ErrLocalPortDel = errors.New("vport: the local port cannot be deleted")
)

// Stats are the per-port counters reported in VportAttrStats.
type Stats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
	RxErrors  uint64
	TxErrors  uint64
	RxDropped uint64
	TxDropped uint64
}

// Port is one attachment point of the switch.
type Port struct {
	PortNo    uint32
	Name      string
	Type      ovs.PortType
	UpcallPID uint32
	Options   []byte
	Stats     Stats
	MAC       net.HardwareAddr
	MTU       uint32
	Connected bool
}

// LocalMAC returns the locally administered MAC assigned to port n.
func LocalMAC(n uint32) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, 0x00, 0x00, byte(n >> 8), byte(n)}
}

// Notifier receives port lifecycle events. The event bus implements it.
type Notifier interface {
	Publish(event.Entry)
}

// Reader is the read-locked view of the table. Ports it returns must not
// be retained past the View callback.
type Reader interface {
	FindByName(name string) (*Port, bool)
	FindByNumber(n uint32) (*Port, bool)
	// Next returns the port at or after c, and the cursor to resume from.
	// It reports false when the walk is exhausted.
	Next(c session.BucketCursor) (*Port, session.BucketCursor, bool)
	Len() int
}

// Writer is the write-locked view of the table.
type Writer interface {
	Reader
	Create(p Port) (*Port, error)
	Delete(n uint32) (*Port, error)
	SetUpcallPID(n, pid uint32) error
	UpdateStats(n uint32, fn func(*Stats)) error
	AllocateNumber() (uint32, error)
}

// Table holds every port of the switch.
type Table struct {
	mu       sync.RWMutex
	buckets  [NumBuckets][]*Port
	byName   map[string]*Port
	count    int
	notifier Notifier
}

// NewTable returns an empty table publishing lifecycle events to n, which
// may be nil.
func NewTable(n Notifier) *Table {
	return &Table{
		byName:   make(map[string]*Port),
		notifier: n,
	}
}

// View runs fn with the read lock held.
func (t *Table) View(fn func(Reader) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fn(reader{t})
}

// Update runs fn with the write lock held. Lifecycle events raised by fn
// are published after the lock is released, and only if fn succeeds.
func (t *Table) Update(fn func(Writer) error) error {
	w := &writer{reader: reader{t}}

	t.mu.Lock()
	err := fn(w)
	t.mu.Unlock()

	if err != nil || t.notifier == nil {
		return err
	}
	for _, e := range w.events {
		t.notifier.Publish(e)
	}
	return nil
}

func bucketOf(n uint32) uint32 {
	return n % NumBuckets
}

type reader struct {
	t *Table
}

func (r reader) FindByName(name string) (*Port, bool) {
	p, ok := r.t.byName[name]
	return p, ok
}

func (r reader) FindByNumber(n uint32) (*Port, bool) {
	for _, p := range r.t.buckets[bucketOf(n)] {
		if p.PortNo == n {
			return p, true
		}
	}
	return nil, false
}

func (r reader) Next(c session.BucketCursor) (*Port, session.BucketCursor, bool) {
	for b := c.Bucket; b < NumBuckets; b++ {
		bucket := r.t.buckets[b]
		idx := uint32(0)
		if b == c.Bucket {
			idx = c.Index
		}
		if int(idx) < len(bucket) {
			return bucket[idx], session.BucketCursor{Bucket: b, Index: idx + 1}, true
		}
	}
	return nil, session.BucketCursor{Bucket: NumBuckets}, false
}

func (r reader) Len() int {
	return r.t.count
}

type writer struct {
	reader
	events []event.Entry
}

func (w *writer) Create(p Port) (*Port, error) {
	if p.Name == "" || len(p.Name) >= ovs.PortNameMax {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
	}
	if _, ok := w.t.byName[p.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, p.Name)
	}
	if p.PortNo > ovs.PortNoMax {
		return nil, fmt.Errorf("%w: %d > %d", ErrPortNoRange, p.PortNo, ovs.PortNoMax)
	}
	if _, ok := w.FindByNumber(p.PortNo); ok {
		return nil, fmt.Errorf("%w: %d", ErrPortNoInUse, p.PortNo)
	}
	if p.MAC == nil {
		p.MAC = LocalMAC(p.PortNo)
	}
	if p.MTU == 0 {
		p.MTU = DefaultMTU
	}
	p.Connected = true

	port := &p
	b := bucketOf(p.PortNo)
	w.t.buckets[b] = append(w.t.buckets[b], port)
	w.t.byName[p.Name] = port
	w.t.count++

	w.events = append(w.events, event.Entry{
		PortNo: p.PortNo, Name: p.Name, Type: p.Type, Status: event.StatusConnect,
	})
	return port, nil
}

func (w *writer) Delete(n uint32) (*Port, error) {
	if n == ovs.PortNoLocal {
		return nil, ErrLocalPortDel
	}
	b := bucketOf(n)
	bucket := w.t.buckets[b]
	for i, p := range bucket {
		if p.PortNo != n {
			continue
		}
		w.t.buckets[b] = append(bucket[:i:i], bucket[i+1:]...)
		delete(w.t.byName, p.Name)
		w.t.count--
		p.Connected = false

		w.events = append(w.events, event.Entry{
			PortNo: p.PortNo, Name: p.Name, Type: p.Type, Status: event.StatusDisconnect,
		})
		return p, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, n)
}

func (w *writer) SetUpcallPID(n, pid uint32) error {
	p, ok := w.FindByNumber(n)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, n)
	}
	p.UpcallPID = pid
	return nil
}

func (w *writer) UpdateStats(n uint32, fn func(*Stats)) error {
	p, ok := w.FindByNumber(n)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, n)
	}
	fn(&p.Stats)
	return nil
}

// AllocateNumber returns the lowest free port number above the local port.
func (w *writer) AllocateNumber() (uint32, error) {
	for n := ovs.PortNoLocal + 1; n <= ovs.PortNoMax; n++ {
		if _, ok := w.FindByNumber(n); !ok {
			return n, nil
		}
	}
	return 0, ErrNoFreePort
}
