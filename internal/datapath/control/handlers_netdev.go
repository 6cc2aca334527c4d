package control

import (
	"context"

	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

var netdevPolicy = netlink.Policy{
	ovs.NetdevAttrName: {Kind: netlink.KindString, MaxLen: ovs.PortNameMax},
}

// netdevGet describes the host interface behind a named port.
func (c *Controller) netdevGet(_ context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(netdevPolicy)
	if err != nil {
		return Result{}, err
	}

	dpIndex := c.sw.Datapath().Index()
	var res Result
	err = c.sw.Ports().View(func(r vport.Reader) error {
		p, ok := r.FindByName(attrs.String(ovs.NetdevAttrName))
		if !ok {
			res, err = req.replyError(netlink.ErrorNoDev)
			return err
		}

		hdr := netlink.BuildReply(req.Msg, 0)
		hdr.DpIfIndex = dpIndex
		b := req.newReply(hdr)
		b.PutU32(ovs.NetdevAttrPortNo, p.PortNo)
		b.PutU32(ovs.NetdevAttrType, uint32(p.Type))
		b.PutString(ovs.NetdevAttrName, p.Name)
		b.PutBytes(ovs.NetdevAttrMacAddr, p.MAC)
		b.PutU32(ovs.NetdevAttrMTU, p.MTU)
		var flags uint32
		if p.Connected {
			flags |= ovs.NetdevFlagUp
		}
		b.PutU32(ovs.NetdevAttrIfFlags, flags)

		res, err = req.finish(b, StatusInsufficientResources)
		return err
	})
	return res, err
}
