package dpclient

import (
	"context"
	"encoding/binary"

	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// Flow is one flow table entry. Key, Mask and Actions are opaque nested
// attribute blobs.
type Flow struct {
	Key      []byte `json:"key" yaml:"key"`
	Mask     []byte `json:"mask,omitempty" yaml:"mask,omitempty"`
	Actions  []byte `json:"actions" yaml:"actions"`
	Packets  uint64 `json:"packets" yaml:"packets"`
	Bytes    uint64 `json:"bytes" yaml:"bytes"`
	TCPFlags uint8  `json:"tcp_flags,omitempty" yaml:"tcp_flags,omitempty"`
	UsedMs   uint64 `json:"used_ms,omitempty" yaml:"used_ms,omitempty"`
}

func decodeFlow(attrs netlink.Attrs) Flow {
	f := Flow{
		Key:      attrs.Bytes(ovs.FlowAttrKey),
		Mask:     attrs.Bytes(ovs.FlowAttrMask),
		Actions:  attrs.Bytes(ovs.FlowAttrActions),
		TCPFlags: attrs.U8(ovs.FlowAttrTCPFlags),
		UsedMs:   attrs.U64(ovs.FlowAttrUsed),
	}
	if s := attrs.Bytes(ovs.FlowAttrStats); len(s) >= ovs.FlowStatsLen {
		f.Packets = binary.LittleEndian.Uint64(s[0:])
		f.Bytes = binary.LittleEndian.Uint64(s[8:])
	}
	return f
}

// Flows lists the flow table in insertion order.
func (c *Client) Flows(ctx context.Context) ([]Flow, error) {
	var out []Flow
	err := c.dump(ctx, ovs.FamilyFlow, ovs.FlowCmdGet, func(_ netlink.Message, attrs netlink.Attrs) error {
		out = append(out, decodeFlow(attrs))
		return nil
	})
	return out, err
}

// NewFlow installs a flow. mask may be nil.
func (c *Client) NewFlow(ctx context.Context, key, mask, actions []byte) (Flow, error) {
	_, attrs, err := c.transact(ctx, c.header(ovs.FamilyFlow, ovs.FlowCmdNew, netlink.FlagCreate), func(b *netlink.MessageBuilder) {
		b.PutBytes(ovs.FlowAttrKey, key)
		if mask != nil {
			b.PutBytes(ovs.FlowAttrMask, mask)
		}
		b.PutBytes(ovs.FlowAttrActions, actions)
	})
	if err != nil {
		return Flow{}, err
	}
	return decodeFlow(attrs), nil
}

// FlushFlows deletes every flow.
func (c *Client) FlushFlows(ctx context.Context) error {
	_, _, err := c.transact(ctx, c.header(ovs.FamilyFlow, ovs.FlowCmdDel, 0), nil)
	return err
}
