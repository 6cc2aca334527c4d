package datapath

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ovsdp/internal/datapath/event"
	"github.com/marmos91/ovsdp/internal/datapath/flow"
	"github.com/marmos91/ovsdp/internal/datapath/packet"
	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/spinlock"
)

// Config sizes the switch.
type Config struct {
	Name             string
	Index            int32
	EventQueueDepth  int
	PacketQueueDepth int
}

// Option customizes a Switch.
type Option func(*options)

type options struct {
	eventDrops  prometheus.Counter
	packetDrops prometheus.Counter
	executor    Executor
}

// WithDropCounters counts events and upcalls dropped on queue overflow.
func WithDropCounters(events, packets prometheus.Counter) Option {
	return func(o *options) {
		o.eventDrops = events
		o.packetDrops = packets
	}
}

// WithExecutor replaces the built-in packet executor.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

// Switch is the switch-wide context the control plane operates on.
type Switch struct {
	ctrlLock spinlock.Lock

	dp       *Datapath
	ports    *vport.Table
	flows    *flow.Table
	events   *event.Bus
	packets  *packet.Table
	executor Executor

	ready atomic.Bool
}

// New builds a switch with a single datapath and its local internal port.
// The switch starts inactive; call Activate once it may serve requests.
func New(cfg Config, opts ...Option) (*Switch, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Name == "" {
		cfg.Name = ovs.DefaultDatapathName
	}
	if cfg.Index <= 0 {
		return nil, fmt.Errorf("datapath: invalid index %d", cfg.Index)
	}

	sw := &Switch{}
	sw.dp = &Datapath{lock: &sw.ctrlLock, index: cfg.Index, name: cfg.Name}

	eventOpts := []event.Option{event.WithDepth(cfg.EventQueueDepth)}
	if o.eventDrops != nil {
		eventOpts = append(eventOpts, event.WithDropCounter(o.eventDrops))
	}
	sw.events = event.NewBus(eventOpts...)

	packetOpts := []packet.Option{
		packet.WithDepth(cfg.PacketQueueDepth),
		packet.WithLossHook(sw.dp.RecordLost),
	}
	if o.packetDrops != nil {
		packetOpts = append(packetOpts, packet.WithDropCounter(o.packetDrops))
	}
	sw.packets = packet.NewTable(packetOpts...)

	sw.ports = vport.NewTable(sw.events)
	sw.flows = flow.NewTable()

	sw.executor = o.executor
	if sw.executor == nil {
		sw.executor = &forwarder{sw: sw}
	}

	err := sw.ports.Update(func(w vport.Writer) error {
		_, err := w.Create(vport.Port{
			PortNo: ovs.PortNoLocal,
			Name:   cfg.Name,
			Type:   ovs.PortTypeInternal,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("datapath: create local port: %w", err)
	}
	return sw, nil
}

// ControlLock returns the lock guarding session membership and the
// datapath identity.
func (sw *Switch) ControlLock() *spinlock.Lock { return &sw.ctrlLock }

func (sw *Switch) Datapath() *Datapath    { return sw.dp }
func (sw *Switch) Ports() *vport.Table    { return sw.ports }
func (sw *Switch) Flows() *flow.Table     { return sw.flows }
func (sw *Switch) Events() *event.Bus     { return sw.events }
func (sw *Switch) Packets() *packet.Table { return sw.packets }
func (sw *Switch) Executor() Executor     { return sw.executor }

// Activate marks the datapath as brought up.
func (sw *Switch) Activate() {
	if sw.ready.CompareAndSwap(false, true) {
		logger.Info("Datapath activated", logger.KeyDatapath, sw.dp.Name(), logger.KeyDpIndex, sw.dp.Index())
	}
}

// Deactivate marks the datapath as down; control calls fail until it is
// activated again.
func (sw *Switch) Deactivate() {
	if sw.ready.CompareAndSwap(true, false) {
		logger.Info("Datapath deactivated", logger.KeyDatapath, sw.dp.Name())
	}
}

// Ready reports whether the datapath is up.
func (sw *Switch) Ready() bool {
	return sw.ready.Load()
}

// Snapshot returns the datapath identity and counters.
func (sw *Switch) Snapshot() Identity {
	return sw.dp.snapshot(sw.flows.Len())
}

// ============================================================================
// Forwarding
// ============================================================================

// ExecuteRequest is a packet handed back by user space with the actions to
// apply to it.
type ExecuteRequest struct {
	DpIfIndex int32
	Packet    []byte
	Key       []byte
	Actions   []byte
}

// Executor applies actions to packets.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) error
}

// ErrUnknownAction is returned for action attributes the executor does not
// implement.
var ErrUnknownAction = errors.New("datapath: unknown action")

// Receive processes a packet arriving on inPort: a matching flow's actions
// are applied, otherwise the packet is queued as a MISS upcall for the
// port's upcall pid.
func (sw *Switch) Receive(ctx context.Context, inPort uint32, pkt, key []byte) error {
	var upcallPID uint32
	err := sw.ports.Update(func(w vport.Writer) error {
		p, ok := w.FindByNumber(inPort)
		if !ok {
			return fmt.Errorf("%w: %d", vport.ErrNotFound, inPort)
		}
		upcallPID = p.UpcallPID
		return w.UpdateStats(inPort, func(s *vport.Stats) {
			s.RxPackets++
			s.RxBytes += uint64(len(pkt))
		})
	})
	if err != nil {
		return err
	}

	if sw.flows.Hit(key, uint64(len(pkt)), 0) {
		sw.dp.RecordHit()
		f, _ := sw.flows.Get(key)
		return sw.executor.Execute(ctx, ExecuteRequest{
			DpIfIndex: sw.dp.Index(),
			Packet:    pkt,
			Key:       key,
			Actions:   f.Actions,
		})
	}

	sw.dp.RecordMiss()
	if upcallPID == 0 {
		sw.dp.RecordLost()
		return nil
	}
	return sw.packets.Enqueue(upcallPID, packet.Upcall{
		Cmd:       ovs.PacketCmdMiss,
		DpIfIndex: sw.dp.Index(),
		Packet:    pkt,
		Key:       key,
	})
}
