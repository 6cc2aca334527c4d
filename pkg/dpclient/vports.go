package dpclient

import (
	"context"
	"encoding/binary"

	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// VportStats are the per-port counters.
type VportStats struct {
	RxPackets uint64 `json:"rx_packets" yaml:"rx_packets"`
	TxPackets uint64 `json:"tx_packets" yaml:"tx_packets"`
	RxBytes   uint64 `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes" yaml:"tx_bytes"`
	RxErrors  uint64 `json:"rx_errors" yaml:"rx_errors"`
	TxErrors  uint64 `json:"tx_errors" yaml:"tx_errors"`
	RxDropped uint64 `json:"rx_dropped" yaml:"rx_dropped"`
	TxDropped uint64 `json:"tx_dropped" yaml:"tx_dropped"`
}

// Vport is one port as reported by the switch.
type Vport struct {
	PortNo    uint32       `json:"port_no" yaml:"port_no"`
	Type      ovs.PortType `json:"type" yaml:"type"`
	Name      string       `json:"name" yaml:"name"`
	UpcallPID uint32       `json:"upcall_pid" yaml:"upcall_pid"`
	Stats     VportStats   `json:"stats" yaml:"stats"`
}

// VportSpec describes a port to create. A zero PortNo lets the switch
// pick one.
type VportSpec struct {
	Name      string
	Type      ovs.PortType
	PortNo    uint32
	UpcallPID uint32
}

func decodeVport(attrs netlink.Attrs) Vport {
	v := Vport{
		PortNo:    attrs.U32(ovs.VportAttrPortNo),
		Type:      ovs.PortType(attrs.U32(ovs.VportAttrType)),
		Name:      attrs.String(ovs.VportAttrName),
		UpcallPID: attrs.U32(ovs.VportAttrUpcallPID),
	}
	if s := attrs.Bytes(ovs.VportAttrStats); len(s) >= ovs.VportStatsLen {
		u := func(i int) uint64 { return binary.LittleEndian.Uint64(s[i*8:]) }
		v.Stats = VportStats{
			RxPackets: u(0), TxPackets: u(1), RxBytes: u(2), TxBytes: u(3),
			RxErrors: u(4), TxErrors: u(5), RxDropped: u(6), TxDropped: u(7),
		}
	}
	return v
}

// Vports lists every port, in the switch's bucket order.
func (c *Client) Vports(ctx context.Context) ([]Vport, error) {
	var out []Vport
	err := c.dump(ctx, ovs.FamilyVport, ovs.VportCmdGet, func(_ netlink.Message, attrs netlink.Attrs) error {
		out = append(out, decodeVport(attrs))
		return nil
	})
	return out, err
}

// Vport looks a port up by name.
func (c *Client) Vport(ctx context.Context, name string) (Vport, error) {
	_, attrs, err := c.transact(ctx, c.header(ovs.FamilyVport, ovs.VportCmdGet, 0), func(b *netlink.MessageBuilder) {
		b.PutString(ovs.VportAttrName, name)
	})
	if err != nil {
		return Vport{}, err
	}
	return decodeVport(attrs), nil
}

// NewVport creates a port.
func (c *Client) NewVport(ctx context.Context, spec VportSpec) (Vport, error) {
	_, attrs, err := c.transact(ctx, c.header(ovs.FamilyVport, ovs.VportCmdNew, netlink.FlagCreate), func(b *netlink.MessageBuilder) {
		if spec.PortNo != 0 {
			b.PutU32(ovs.VportAttrPortNo, spec.PortNo)
		}
		b.PutU32(ovs.VportAttrType, uint32(spec.Type))
		b.PutString(ovs.VportAttrName, spec.Name)
		b.PutU32(ovs.VportAttrUpcallPID, spec.UpcallPID)
	})
	if err != nil {
		return Vport{}, err
	}
	return decodeVport(attrs), nil
}

// SetVport changes the upcall pid of the named port.
func (c *Client) SetVport(ctx context.Context, name string, upcallPID uint32) (Vport, error) {
	_, attrs, err := c.transact(ctx, c.header(ovs.FamilyVport, ovs.VportCmdSet, 0), func(b *netlink.MessageBuilder) {
		b.PutString(ovs.VportAttrName, name)
		b.PutU32(ovs.VportAttrUpcallPID, upcallPID)
	})
	if err != nil {
		return Vport{}, err
	}
	return decodeVport(attrs), nil
}

// DelVport removes the named port and returns its last state.
func (c *Client) DelVport(ctx context.Context, name string) (Vport, error) {
	_, attrs, err := c.transact(ctx, c.header(ovs.FamilyVport, ovs.VportCmdDel, 0), func(b *netlink.MessageBuilder) {
		b.PutString(ovs.VportAttrName, name)
	})
	if err != nil {
		return Vport{}, err
	}
	return decodeVport(attrs), nil
}
