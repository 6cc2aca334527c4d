package dpclient

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// Datapath describes the switch's datapath.
type Datapath struct {
	Index  int32  `json:"index" yaml:"index"`
	Name   string `json:"name" yaml:"name"`
	Hits   uint64 `json:"hits" yaml:"hits"`
	Misses uint64 `json:"misses" yaml:"misses"`
	Lost   uint64 `json:"lost" yaml:"lost"`
	Flows  uint64 `json:"flows" yaml:"flows"`
}

func decodeDatapath(m netlink.Message, attrs netlink.Attrs) (Datapath, error) {
	dp := Datapath{Index: m.DpIfIndex, Name: attrs.String(ovs.DpAttrName)}
	if s := attrs.Bytes(ovs.DpAttrStats); s != nil {
		if len(s) < ovs.DpStatsLen {
			return Datapath{}, fmt.Errorf("datapath stats: %d bytes, want %d", len(s), ovs.DpStatsLen)
		}
		dp.Hits = binary.LittleEndian.Uint64(s[0:])
		dp.Misses = binary.LittleEndian.Uint64(s[8:])
		dp.Lost = binary.LittleEndian.Uint64(s[16:])
		dp.Flows = binary.LittleEndian.Uint64(s[24:])
	}
	return dp, nil
}

// Datapath returns the datapath identity and counters. It enumerates
// datapaths with a dump, which needs no prior knowledge of the index, and
// picks the one named at Dial.
func (c *Client) Datapath(ctx context.Context) (Datapath, error) {
	var found *Datapath
	err := c.dump(ctx, ovs.FamilyDatapath, ovs.DpCmdGet, func(m netlink.Message, attrs netlink.Attrs) error {
		dp, err := decodeDatapath(m, attrs)
		if err != nil {
			return err
		}
		if found == nil && dp.Name == c.dpName {
			found = &dp
		}
		return nil
	})
	if err != nil {
		return Datapath{}, err
	}
	if found == nil {
		return Datapath{}, &ProtocolError{Family: ovs.DatapathFamilyName, Cmd: ovs.DpCmdGet, Code: netlink.ErrorNoDev}
	}
	return *found, nil
}

// SetUpcallPID configures the datapath-wide upcall pid.
func (c *Client) SetUpcallPID(ctx context.Context, pid uint32) (Datapath, error) {
	m, attrs, err := c.transact(ctx, c.header(ovs.FamilyDatapath, ovs.DpCmdSet, 0), func(b *netlink.MessageBuilder) {
		b.PutString(ovs.DpAttrName, c.dpName)
		b.PutU32(ovs.DpAttrUpcallPID, pid)
	})
	if err != nil {
		return Datapath{}, err
	}
	return decodeDatapath(m, attrs)
}
