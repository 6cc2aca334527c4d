package control

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/marmos91/ovsdp/internal/datapath/flow"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

var (
	flowPolicy = netlink.Policy{
		ovs.FlowAttrKey:     {Kind: netlink.KindNested},
		ovs.FlowAttrMask:    {Kind: netlink.KindNested, Optional: true},
		ovs.FlowAttrActions: {Kind: netlink.KindNested, Optional: true},
		ovs.FlowAttrClear:   {Kind: netlink.KindFlag, Optional: true},
	}
	// DEL without a key flushes the table.
	flowDelPolicy = netlink.Policy{
		ovs.FlowAttrKey: {Kind: netlink.KindNested, Optional: true},
	}
)

func (c *Controller) flowNew(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(flowPolicy)
	if err != nil {
		return Result{}, err
	}

	f, err := c.sw.Flows().New(attrs.Bytes(ovs.FlowAttrKey), attrs.Bytes(ovs.FlowAttrMask), actionsOf(attrs))
	switch {
	case errors.Is(err, flow.ErrExists):
		return req.replyError(netlink.ErrorExist)
	case err != nil:
		return req.replyError(netlink.ErrorInval)
	}
	logger.DebugCtx(ctx, "Flow installed", logger.KeyFlows, c.sw.Flows().Len())
	return c.flowReply(req, req.Msg, 0, f)
}

// flowSet replaces a flow's actions. A request without ACTIONS keeps
// them; CLEAR resets the counters.
func (c *Controller) flowSet(_ context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(flowPolicy)
	if err != nil {
		return Result{}, err
	}

	var actions []byte
	if attrs.Has(ovs.FlowAttrActions) {
		actions = actionsOf(attrs)
	}
	f, err := c.sw.Flows().Set(attrs.Bytes(ovs.FlowAttrKey), actions, attrs.Has(ovs.FlowAttrClear))
	if err != nil {
		return req.replyError(netlink.ErrorNoEnt)
	}
	return c.flowReply(req, req.Msg, 0, f)
}

func (c *Controller) flowDel(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(flowDelPolicy)
	if err != nil {
		return Result{}, err
	}

	if !attrs.Has(ovs.FlowAttrKey) {
		n := c.sw.Flows().Flush()
		logger.InfoCtx(ctx, "Flow table flushed", logger.KeyFlows, n)
		hdr := netlink.BuildReply(req.Msg, 0)
		hdr.DpIfIndex = req.Msg.DpIfIndex
		return req.finish(req.newReply(hdr), StatusInsufficientResources)
	}

	f, err := c.sw.Flows().Delete(attrs.Bytes(ovs.FlowAttrKey))
	if err != nil {
		return req.replyError(netlink.ErrorNoEnt)
	}
	return c.flowReply(req, req.Msg, 0, f)
}

// flowGet answers one flow by key, or walks the table in insertion order
// when issued as a dump.
func (c *Controller) flowGet(_ context.Context, req *Request) (Result, error) {
	switch req.DevOp {
	case DevOpWrite:
		return req.startDump(session.IndexCursor{})
	case DevOpRead:
		return c.flowDumpNext(req)
	}

	attrs, err := req.attrs(flowPolicy)
	if err != nil {
		return Result{}, err
	}
	f, ok := c.sw.Flows().Get(attrs.Bytes(ovs.FlowAttrKey))
	if !ok {
		return req.replyError(netlink.ErrorNoEnt)
	}
	return c.flowReply(req, req.Msg, 0, f)
}

func (c *Controller) flowDumpNext(req *Request) (Result, error) {
	dump, err := req.dumpState()
	if err != nil {
		return Result{}, err
	}
	cur, ok := dump.Cursor.(session.IndexCursor)
	if !ok {
		req.Session.FreeDump()
		return Result{}, statusErrorf(StatusInvalidDeviceState, "flow dump has cursor %T", dump.Cursor)
	}

	f, ok := c.sw.Flows().At(cur.Next)
	if !ok {
		req.Session.FreeDump()
		return Result{}, nil
	}
	res, err := c.flowReply(req, dump.Request, netlink.FlagMulti, f)
	if err != nil {
		req.Session.FreeDump()
		return Result{}, err
	}
	dump.Cursor = session.IndexCursor{Next: cur.Next + 1}
	return res, nil
}

// actionsOf returns the ACTIONS payload, empty but non-nil when absent: a
// flow without actions drops.
func actionsOf(attrs netlink.Attrs) []byte {
	if a := attrs.Bytes(ovs.FlowAttrActions); a != nil {
		return a
	}
	return []byte{}
}

func (c *Controller) flowReply(req *Request, in netlink.Message, flags netlink.Flags, f flow.Flow) (Result, error) {
	hdr := netlink.BuildReply(in, flags)
	hdr.Type = ovs.FamilyFlow
	hdr.DpIfIndex = c.sw.Datapath().Index()

	b := req.newReply(hdr)
	b.PutBytes(ovs.FlowAttrKey, f.Key)
	if len(f.Mask) > 0 {
		b.PutBytes(ovs.FlowAttrMask, f.Mask)
	}
	b.PutBytes(ovs.FlowAttrActions, f.Actions)

	stats := make([]byte, 0, ovs.FlowStatsLen)
	stats = binary.LittleEndian.AppendUint64(stats, f.Stats.Packets)
	stats = binary.LittleEndian.AppendUint64(stats, f.Stats.Bytes)
	b.PutBytes(ovs.FlowAttrStats, stats)
	if f.Stats.TCPFlags != 0 {
		b.PutU8(ovs.FlowAttrTCPFlags, f.Stats.TCPFlags)
	}
	if f.Stats.UsedMs != 0 {
		b.PutU64(ovs.FlowAttrUsed, f.Stats.UsedMs)
	}
	return req.finish(b, StatusInsufficientResources)
}
