package control

import (
	"context"
	"encoding/binary"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

var dpPolicy = netlink.Policy{
	ovs.DpAttrName:         {Kind: netlink.KindString, MaxLen: ovs.PortNameMax},
	ovs.DpAttrUpcallPID:    {Kind: netlink.KindU32, Optional: true},
	ovs.DpAttrUserFeatures: {Kind: netlink.KindU32, Optional: true},
}

func (c *Controller) dpNew(ctx context.Context, req *Request) (Result, error) {
	return c.dpTransaction(ctx, req)
}

func (c *Controller) dpGet(ctx context.Context, req *Request) (Result, error) {
	return c.dpByDevOp(ctx, req)
}

func (c *Controller) dpSet(ctx context.Context, req *Request) (Result, error) {
	return c.dpByDevOp(ctx, req)
}

// dpByDevOp routes GET and SET: a transaction answers directly, a write
// starts a one-record dump and the following read produces it.
func (c *Controller) dpByDevOp(ctx context.Context, req *Request) (Result, error) {
	switch req.DevOp {
	case DevOpWrite:
		return req.startDump(session.SingletonCursor{})
	case DevOpRead:
		return c.dpDumpNext(req)
	default:
		return c.dpTransaction(ctx, req)
	}
}

// dpTransaction checks the addressed datapath against the active one and
// answers with its identity. There is exactly one datapath, so NEW always
// fails: with NODEV for a different name and EXIST for the active one.
func (c *Controller) dpTransaction(ctx context.Context, req *Request) (Result, error) {
	cmd := req.Msg.Genl.Cmd

	var attrs netlink.Attrs
	if cmd == ovs.DpCmdNew || cmd == ovs.DpCmdSet {
		a, err := req.attrs(dpPolicy)
		if err != nil {
			return Result{}, err
		}
		attrs = a
	}

	id := c.sw.Snapshot()
	if attrs.Has(ovs.DpAttrName) {
		if name := attrs.String(ovs.DpAttrName); name != id.Name {
			logger.DebugCtx(ctx, "Datapath name mismatch", logger.KeyDatapath, name, "active", id.Name)
			if cmd == ovs.DpCmdSet {
				return req.replyError(netlink.ErrorNotSupp)
			}
			return req.replyError(netlink.ErrorNoDev)
		}
	} else if req.Msg.DpIfIndex != id.Index {
		return req.replyError(netlink.ErrorNoDev)
	}

	if cmd == ovs.DpCmdNew {
		return req.replyError(netlink.ErrorExist)
	}

	if cmd == ovs.DpCmdSet {
		c.sw.Datapath().Configure(attrs.U32(ovs.DpAttrUpcallPID), attrs.U32(ovs.DpAttrUserFeatures))
		id = c.sw.Snapshot()
	}

	return req.finish(dpMessage(req, req.Msg, id), StatusInvalidBufferSize)
}

// dpDumpNext emits the single datapath record of a dump and ends it,
// whether or not the record fit.
func (c *Controller) dpDumpNext(req *Request) (Result, error) {
	dump, err := req.dumpState()
	if err != nil {
		return Result{}, err
	}
	defer req.Session.FreeDump()
	return req.finish(dpMessage(req, dump.Request, c.sw.Snapshot()), StatusInvalidBufferSize)
}

// dpMessage renders a datapath identity as a GET reply to in.
func dpMessage(req *Request, in netlink.Message, id datapath.Identity) *netlink.MessageBuilder {
	b := req.newReply(netlink.Message{
		Header: netlink.Header{
			Len:  netlink.MessageLen,
			Type: ovs.FamilyDatapath,
			Seq:  in.Seq,
			PID:  in.PID,
		},
		Genl:      netlink.GenlHeader{Cmd: ovs.DpCmdGet, Version: req.Family.Version},
		DpIfIndex: id.Index,
	})
	b.PutString(ovs.DpAttrName, id.Name)

	stats := make([]byte, 0, ovs.DpStatsLen)
	for _, v := range []uint64{id.Hits, id.Misses, id.Lost, id.Flows} {
		stats = binary.LittleEndian.AppendUint64(stats, v)
	}
	b.PutBytes(ovs.DpAttrStats, stats)
	return b
}
