package control

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/telemetry"
)

var (
	vportLookupPolicy = netlink.Policy{
		ovs.VportAttrName:   {Kind: netlink.KindString, MaxLen: ovs.PortNameMax, Optional: true},
		ovs.VportAttrPortNo: {Kind: netlink.KindU32, Optional: true},
	}
	vportNewPolicy = netlink.Policy{
		ovs.VportAttrPortNo:    {Kind: netlink.KindU32, Optional: true},
		ovs.VportAttrType:      {Kind: netlink.KindU32},
		ovs.VportAttrName:      {Kind: netlink.KindString, MaxLen: ovs.PortNameMax},
		ovs.VportAttrUpcallPID: {Kind: netlink.KindU32},
		ovs.VportAttrOptions:   {Kind: netlink.KindNested, Optional: true},
	}
	vportSetPolicy = netlink.Policy{
		ovs.VportAttrPortNo:    {Kind: netlink.KindU32, Optional: true},
		ovs.VportAttrType:      {Kind: netlink.KindU32, Optional: true},
		ovs.VportAttrName:      {Kind: netlink.KindString, MaxLen: ovs.PortNameMax, Optional: true},
		ovs.VportAttrUpcallPID: {Kind: netlink.KindU32, Optional: true},
		ovs.VportAttrOptions:   {Kind: netlink.KindNested, Optional: true},
	}
)

// ============================================================================
// GET
// ============================================================================

// vportGet looks a port up by name or number, or walks the table when
// issued as a dump.
func (c *Controller) vportGet(_ context.Context, req *Request) (Result, error) {
	switch req.DevOp {
	case DevOpWrite:
		return req.startDump(session.BucketCursor{})
	case DevOpRead:
		return c.vportDumpNext(req)
	}

	attrs, err := req.attrs(vportLookupPolicy)
	if err != nil {
		return Result{}, err
	}

	dpIndex := c.sw.Datapath().Index()
	var res Result
	err = c.sw.Ports().View(func(r vport.Reader) error {
		p, code := findPort(r, attrs)
		if code != netlink.ErrorNone {
			res, err = req.replyError(code)
			return err
		}
		res, err = req.finish(vportMessage(req, req.Msg, dpIndex, p), StatusInsufficientResources)
		return err
	})
	return res, err
}

// vportDumpNext emits the next port of the session's dump. An exhausted
// walk ends the dump with a zero-length reply; a record that cannot be
// produced ends it with the error.
func (c *Controller) vportDumpNext(req *Request) (res Result, err error) {
	dump, err := req.dumpState()
	if err != nil {
		return Result{}, err
	}
	var done bool
	defer func() {
		if done || err != nil {
			req.Session.FreeDump()
		}
	}()

	cur, ok := dump.Cursor.(session.BucketCursor)
	if !ok {
		return Result{}, statusErrorf(StatusInvalidDeviceState, "vport dump has cursor %T", dump.Cursor)
	}

	dpIndex := c.sw.Datapath().Index()
	err = c.sw.Ports().View(func(r vport.Reader) error {
		p, next, found := r.Next(cur)
		if !found {
			done = true
			return nil
		}
		res, err = req.finish(vportMessage(req, dump.Request, dpIndex, p), StatusInsufficientResources)
		if err == nil {
			dump.Cursor = next
		}
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// ============================================================================
// NEW / SET / DEL
// ============================================================================

// vportNew attaches a port. Without PORT_NO the lowest free number is
// assigned.
func (c *Controller) vportNew(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(vportNewPolicy)
	if err != nil {
		return Result{}, err
	}

	typ := ovs.PortType(attrs.U32(ovs.VportAttrType))
	if typ == ovs.PortTypeUnspec || typ > ovs.PortTypeSTT {
		return req.replyError(netlink.ErrorInval)
	}
	name := attrs.String(ovs.VportAttrName)

	dpIndex := c.sw.Datapath().Index()
	var res Result
	err = c.sw.Ports().Update(func(w vport.Writer) error {
		if _, ok := w.FindByName(name); ok {
			res, err = req.replyError(netlink.ErrorExist)
			return err
		}

		portNo := attrs.U32(ovs.VportAttrPortNo)
		if !attrs.Has(ovs.VportAttrPortNo) {
			n, aerr := w.AllocateNumber()
			if aerr != nil {
				res, err = req.replyError(netlink.ErrorNoMem)
				return err
			}
			portNo = n
		}

		p, cerr := w.Create(vport.Port{
			PortNo:    portNo,
			Name:      name,
			Type:      typ,
			UpcallPID: attrs.U32(ovs.VportAttrUpcallPID),
			Options:   attrs.Bytes(ovs.VportAttrOptions),
		})
		switch {
		case errors.Is(cerr, vport.ErrExists), errors.Is(cerr, vport.ErrPortNoInUse):
			res, err = req.replyError(netlink.ErrorExist)
			return err
		case cerr != nil:
			// ErrPortNoRange and ErrInvalidName.
			res, err = req.replyError(netlink.ErrorInval)
			return err
		}

		telemetry.AnnotatePort(ctx, p.PortNo, p.Name, p.Type.String())
		logger.InfoCtx(ctx, "Vport created",
			logger.PortNo(p.PortNo), logger.PortName(p.Name),
			logger.KeyPortType, p.Type.String(), logger.KeyUpcallPID, p.UpcallPID)
		res, err = req.finish(vportMessage(req, req.Msg, dpIndex, p), StatusInsufficientResources)
		return err
	})
	return res, err
}

// vportSet updates a port's upcall pid. Changing the type is rejected and
// tunnel options are not supported.
func (c *Controller) vportSet(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(vportSetPolicy)
	if err != nil {
		return Result{}, err
	}

	dpIndex := c.sw.Datapath().Index()
	var res Result
	err = c.sw.Ports().Update(func(w vport.Writer) error {
		p, code := findPort(w, attrs)
		if code != netlink.ErrorNone {
			res, err = req.replyError(code)
			return err
		}

		if attrs.Has(ovs.VportAttrType) && ovs.PortType(attrs.U32(ovs.VportAttrType)) != p.Type {
			res, err = req.replyError(netlink.ErrorInval)
			return err
		}
		if attrs.Has(ovs.VportAttrOptions) {
			res, err = req.replyError(netlink.ErrorNotSupp)
			return err
		}
		if attrs.Has(ovs.VportAttrUpcallPID) {
			pid := attrs.U32(ovs.VportAttrUpcallPID)
			if err := w.SetUpcallPID(p.PortNo, pid); err != nil {
				return statusErrorf(StatusInvalidParameter, "%v", err)
			}
			logger.DebugCtx(ctx, "Vport upcall pid set",
				logger.PortNo(p.PortNo), logger.KeyUpcallPID, pid)
		}

		res, err = req.finish(vportMessage(req, req.Msg, dpIndex, p), StatusInsufficientResources)
		return err
	})
	return res, err
}

// vportDel detaches a port. The reply describes the port as it was.
func (c *Controller) vportDel(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(vportLookupPolicy)
	if err != nil {
		return Result{}, err
	}

	dpIndex := c.sw.Datapath().Index()
	var res Result
	err = c.sw.Ports().Update(func(w vport.Writer) error {
		p, code := findPort(w, attrs)
		if code != netlink.ErrorNone {
			res, err = req.replyError(code)
			return err
		}

		res, err = req.finish(vportMessage(req, req.Msg, dpIndex, p), StatusInsufficientResources)
		if err != nil {
			return err
		}
		if _, derr := w.Delete(p.PortNo); derr != nil {
			res, err = req.replyError(netlink.ErrorInval)
			return err
		}

		telemetry.AnnotatePort(ctx, p.PortNo, p.Name, p.Type.String())
		logger.InfoCtx(ctx, "Vport deleted", logger.PortNo(p.PortNo), logger.PortName(p.Name))
		return nil
	})
	return res, err
}

// ============================================================================
// Helpers
// ============================================================================

// findPort resolves the port a request names, by NAME first and PORT_NO
// otherwise. A request naming neither is INVAL, an unknown port NODEV.
func findPort(r vport.Reader, attrs netlink.Attrs) (*vport.Port, netlink.ErrorCode) {
	var (
		p  *vport.Port
		ok bool
	)
	switch {
	case attrs.Has(ovs.VportAttrName):
		p, ok = r.FindByName(attrs.String(ovs.VportAttrName))
	case attrs.Has(ovs.VportAttrPortNo):
		p, ok = r.FindByNumber(attrs.U32(ovs.VportAttrPortNo))
	default:
		return nil, netlink.ErrorInval
	}
	if !ok {
		return nil, netlink.ErrorNoDev
	}
	return p, netlink.ErrorNone
}

// vportMessage renders p as a reply to in. Every vport reply, dump or
// not, carries the multi flag.
func vportMessage(req *Request, in netlink.Message, dpIndex int32, p *vport.Port) *netlink.MessageBuilder {
	hdr := netlink.BuildReply(in, netlink.FlagMulti)
	hdr.Type = ovs.FamilyVport
	hdr.DpIfIndex = dpIndex

	b := req.newReply(hdr)
	b.PutU32(ovs.VportAttrPortNo, p.PortNo)
	b.PutU32(ovs.VportAttrType, uint32(p.Type))
	b.PutString(ovs.VportAttrName, p.Name)
	b.PutU32(ovs.VportAttrUpcallPID, p.UpcallPID)
	b.PutBytes(ovs.VportAttrStats, encodeVportStats(p.Stats))
	return b
}

func encodeVportStats(s vport.Stats) []byte {
	out := make([]byte, 0, ovs.VportStatsLen)
	for _, v := range []uint64{
		s.RxPackets, s.TxPackets, s.RxBytes, s.TxBytes,
		s.RxErrors, s.TxErrors, s.RxDropped, s.TxDropped,
	} {
		out = binary.LittleEndian.AppendUint64(out, v)
	}
	return out
}
