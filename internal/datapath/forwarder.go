package datapath

import (
	"context"
	"fmt"

	"github.com/marmos91/ovsdp/internal/datapath/packet"
	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// forwarder is the built-in executor. Output actions account the packet
// on the egress port; userspace actions queue an ACTION upcall.
type forwarder struct {
	sw *Switch
}

type action struct {
	kind uint16
	arg  uint32
}

// parseActions decodes an action list in order. Unlike ParseAttrs it keeps
// repeated actions, which are legal (a packet may be output to several
// ports).
func parseActions(data []byte) ([]action, error) {
	var out []action
	r := nlenc.NewReader(data)
	for r.Remaining() > 0 {
		length := int(r.ReadUint16())
		kind := r.ReadUint16()
		if r.Err() != nil || length < netlink.AttrHeaderLen {
			return nil, fmt.Errorf("datapath: malformed action list")
		}
		payload := r.ReadBytes(length - netlink.AttrHeaderLen)
		r.Align(netlink.AttrAlign)
		if r.Err() != nil {
			return nil, fmt.Errorf("datapath: truncated action: %w", r.Err())
		}

		switch kind {
		case ovs.ActionAttrOutput, ovs.ActionAttrUserspace:
			if len(payload) != 4 {
				return nil, fmt.Errorf("datapath: action %d has %d bytes", kind, len(payload))
			}
			arg := netlink.Attrs{kind: payload}.U32(kind)
			out = append(out, action{kind: kind, arg: arg})
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownAction, kind)
		}
	}
	return out, nil
}

func (f *forwarder) Execute(ctx context.Context, req ExecuteRequest) error {
	actions, err := parseActions(req.Actions)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, a := range actions {
		switch a.kind {
		case ovs.ActionAttrOutput:
			err := f.sw.ports.Update(func(w vport.Writer) error {
				return w.UpdateStats(a.arg, func(s *vport.Stats) {
					s.TxPackets++
					s.TxBytes += uint64(len(req.Packet))
				})
			})
			if err != nil {
				return fmt.Errorf("datapath: output: %w", err)
			}
		case ovs.ActionAttrUserspace:
			err := f.sw.packets.Enqueue(a.arg, packet.Upcall{
				Cmd:       ovs.PacketCmdAction,
				DpIfIndex: req.DpIfIndex,
				Packet:    req.Packet,
				Key:       req.Key,
			})
			if err != nil {
				return fmt.Errorf("datapath: userspace: %w", err)
			}
		}
	}
	return nil
}
