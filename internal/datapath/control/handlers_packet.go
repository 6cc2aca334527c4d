package control

import (
	"context"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

var packetExecutePolicy = netlink.Policy{
	ovs.PacketAttrPacket:  {Kind: netlink.KindUnspec, MinLen: 1},
	ovs.PacketAttrKey:     {Kind: netlink.KindNested},
	ovs.PacketAttrActions: {Kind: netlink.KindNested, Optional: true},
}

// packetExecute hands a packet sent down by user space to the executor.
// A packet the executor rejects is answered with INVAL; otherwise the
// reply is empty.
func (c *Controller) packetExecute(ctx context.Context, req *Request) (Result, error) {
	attrs, err := req.attrs(packetExecutePolicy)
	if err != nil {
		return Result{}, err
	}

	err = c.sw.Executor().Execute(ctx, datapath.ExecuteRequest{
		DpIfIndex: req.Msg.DpIfIndex,
		Packet:    attrs.Bytes(ovs.PacketAttrPacket),
		Key:       attrs.Bytes(ovs.PacketAttrKey),
		Actions:   attrs.Bytes(ovs.PacketAttrActions),
	})
	if err != nil {
		logger.DebugCtx(ctx, "Packet execute rejected", logger.Err(err))
		return req.replyError(netlink.ErrorInval)
	}
	return Result{}, nil
}
