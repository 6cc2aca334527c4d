package control

import (
	"context"
	"errors"

	"github.com/marmos91/ovsdp/internal/datapath/event"
	"github.com/marmos91/ovsdp/internal/datapath/packet"
	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

var (
	mcastPolicy = netlink.Policy{
		ovs.CtrlAttrMcastGroup: {Kind: netlink.KindU32},
		ovs.CtrlAttrMcastJoin:  {Kind: netlink.KindU8},
	}
	packetSubscribePolicy = netlink.Policy{
		ovs.CtrlAttrPacketPID:       {Kind: netlink.KindU32},
		ovs.CtrlAttrPacketSubscribe: {Kind: netlink.KindU8},
	}
)

// getPID answers with a bare header carrying the caller's session id. It
// is the only command accepted from a caller that does not know its pid
// yet.
func (c *Controller) getPID(_ context.Context, req *Request) (Result, error) {
	reply := netlink.Message{
		Header: netlink.Header{
			Len: netlink.MessageLen,
			Seq: req.Msg.Seq,
			PID: req.Session.PID(),
		},
	}
	return Result{ReplyLen: copy(req.Output, reply.Bytes())}, nil
}

// pendEvent parks the caller until a port event is queued for its session.
func (c *Controller) pendEvent(ctx context.Context, req *Request) (Result, error) {
	f, err := c.sw.Events().Wait(req.Session)
	return pendResult(ctx, req, f, err, event.ErrNotSubscribed, event.ErrWaitPending)
}

// pendPacket parks the caller until an upcall is queued for its session.
func (c *Controller) pendPacket(ctx context.Context, req *Request) (Result, error) {
	f, err := c.sw.Packets().Wait(req.Session)
	return pendResult(ctx, req, f, err, packet.ErrNotSubscribed, packet.ErrWaitPending)
}

func pendResult(ctx context.Context, req *Request, f *pend.Future, err, notSubscribed, busy error) (Result, error) {
	switch {
	case errors.Is(err, notSubscribed):
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	case errors.Is(err, busy):
		return Result{}, statusErrorf(StatusResourceInUse, "%v", err)
	case err != nil:
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	}
	if f.Completed() {
		return Result{}, nil
	}
	logger.DebugCtx(ctx, "Pending", logger.PID(req.Session.PID()), logger.Command(req.Command.Name))
	return Result{Pend: f}, &StatusError{Status: StatusPending}
}

// mcastSubscribe joins or leaves the port event group. The group id is
// accepted but there is only one group.
func (c *Controller) mcastSubscribe(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(mcastPolicy)
	if err != nil {
		return Result{}, err
	}

	bus := c.sw.Events()
	if attrs.U8(ovs.CtrlAttrMcastJoin) != 0 {
		err = bus.Subscribe(req.Session, req.Msg.DpIfIndex, event.MaskAll)
	} else {
		err = bus.Unsubscribe(req.Session)
	}
	if err != nil {
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	}

	logger.DebugCtx(ctx, "Event subscription changed",
		logger.PID(req.Session.PID()),
		"group", attrs.U32(ovs.CtrlAttrMcastGroup),
		"join", attrs.U8(ovs.CtrlAttrMcastJoin) != 0)
	return Result{}, nil
}

// packetSubscribe starts or stops delivery of upcalls for a pid, which
// must be the caller's own.
func (c *Controller) packetSubscribe(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(packetSubscribePolicy)
	if err != nil {
		return Result{}, err
	}

	pid := attrs.U32(ovs.CtrlAttrPacketPID)
	join := attrs.U8(ovs.CtrlAttrPacketSubscribe) != 0
	if err := c.sw.Packets().Subscribe(req.Session, pid, join); err != nil {
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	}

	logger.DebugCtx(ctx, "Packet subscription changed",
		logger.PID(req.Session.PID()), logger.KeyUpcallPID, pid, "join", join)
	return Result{}, nil
}

// readEvent renders the oldest queued port event as a vport message. An
// empty queue yields a zero-length reply. The event is consumed only once
// its reply fits.
func (c *Controller) readEvent(_ context.Context, req *Request) (Result, error) {
	if req.Session.EventQueue() == nil {
		return Result{}, statusErrorf(StatusInvalidParameter, "session %d is not subscribed to events", req.Session.PID())
	}
	bus := c.sw.Events()
	e, ok := bus.Peek(req.Session)
	if !ok {
		return Result{}, nil
	}

	cmd := ovs.VportCmdNew
	if e.Status.Removed() {
		cmd = ovs.VportCmdDel
	}
	hdr := netlink.Message{
		Header: netlink.Header{
			Len:  netlink.MessageLen,
			Type: ovs.FamilyVport,
			PID:  req.Session.PID(),
		},
		Genl:      netlink.GenlHeader{Cmd: cmd, Version: ovs.VportVersion},
		DpIfIndex: c.sw.Datapath().Index(),
	}
	b := req.newReply(hdr)
	b.PutU32(ovs.VportAttrPortNo, e.PortNo)
	b.PutU32(ovs.VportAttrType, uint32(e.Type))
	b.PutString(ovs.VportAttrName, e.Name)
	res, err := req.finish(b, StatusInsufficientResources)
	if err != nil {
		return Result{}, err
	}
	bus.Pop(req.Session)
	return res, nil
}

// readPacket copies the oldest queued upcall into the reply.
func (c *Controller) readPacket(_ context.Context, req *Request) (Result, error) {
	n, err := c.sw.Packets().Read(req.Session, req.Output)
	switch {
	case errors.Is(err, packet.ErrBufferTooSmall):
		return Result{}, statusErrorf(StatusInsufficientResources, "%v", err)
	case err != nil:
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	}
	return Result{ReplyLen: n}, nil
}
