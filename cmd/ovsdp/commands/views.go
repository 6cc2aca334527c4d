package commands

import (
	"encoding/hex"
	"strconv"

	"github.com/marmos91/ovsdp/internal/bytesize"
	"github.com/marmos91/ovsdp/pkg/dpclient"
)

type vportList []dpclient.Vport

func (vportList) Headers() []string {
	return []string{"PORT", "NAME", "TYPE", "UPCALL PID", "RX PKTS", "TX PKTS", "RX BYTES", "TX BYTES"}
}

func (l vportList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		rows = append(rows, []string{
			u32(v.PortNo), v.Name, v.Type.String(), u32(v.UpcallPID),
			u64(v.Stats.RxPackets), u64(v.Stats.TxPackets),
			bytesize.ByteSize(v.Stats.RxBytes).String(), bytesize.ByteSize(v.Stats.TxBytes).String(),
		})
	}
	return rows
}

type flowList []dpclient.Flow

func (flowList) Headers() []string {
	return []string{"KEY", "ACTIONS", "PACKETS", "BYTES", "USED MS"}
}

func (l flowList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, f := range l {
		rows = append(rows, []string{
			blob(f.Key), blob(f.Actions), u64(f.Packets),
			bytesize.ByteSize(f.Bytes).String(), u64(f.UsedMs),
		})
	}
	return rows
}

// eventRow renders one port event for streaming.
type eventRow dpclient.Event

func (eventRow) Headers() []string { return []string{"CHANGE", "PORT", "NAME", "TYPE"} }

func (e eventRow) Rows() [][]string {
	change := "added"
	if e.Removed {
		change = "removed"
	}
	return [][]string{{change, u32(e.PortNo), e.Name, e.Type.String()}}
}

func datapathPairs(dp dpclient.Datapath) [][2]string {
	return [][2]string{
		{"Name", dp.Name},
		{"Index", strconv.FormatInt(int64(dp.Index), 10)},
		{"Hits", u64(dp.Hits)},
		{"Misses", u64(dp.Misses)},
		{"Lost", u64(dp.Lost)},
		{"Flows", u64(dp.Flows)},
	}
}

func u32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// blob shortens an attribute blob to its first 16 bytes in hex.
func blob(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	if len(b) > 16 {
		return hex.EncodeToString(b[:16]) + "..."
	}
	return hex.EncodeToString(b)
}
