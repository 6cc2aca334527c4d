package ovs

import "fmt"

// PortType identifies the kind of a vport.
type PortType uint32

const (
	PortTypeUnspec   PortType = 0
	PortTypeNetdev   PortType = 1
	PortTypeInternal PortType = 2
	PortTypeGRE      PortType = 3
	PortTypeVXLAN    PortType = 4
	PortTypeGeneve   PortType = 5
	PortTypeSTT      PortType = 6
)

// String returns the port type name used by the CLI.
func (t PortType) String() string {
	switch t {
	case PortTypeUnspec:
		return "unspec"
	case PortTypeNetdev:
		return "netdev"
	case PortTypeInternal:
		return "internal"
	case PortTypeGRE:
		return "gre"
	case PortTypeVXLAN:
		return "vxlan"
	case PortTypeGeneve:
		return "geneve"
	case PortTypeSTT:
		return "stt"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// ParsePortType is the inverse of PortType.String for known types.
func ParsePortType(s string) (PortType, error) {
	for t := PortTypeUnspec; t <= PortTypeSTT; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return PortTypeUnspec, fmt.Errorf("unknown port type %q", s)
}

// MarshalText renders the type by name in JSON and YAML output.
func (t PortType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (t *PortType) UnmarshalText(b []byte) error {
	v, err := ParsePortType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Port number limits.
const (
	PortNoLocal   uint32 = 0
	PortNoMax     uint32 = 65534
	PortNoInvalid uint32 = 0xffffffff
)

// PortNameMax is the maximum port name size including the NUL terminator.
const PortNameMax = 16

// VportStatsLen is the encoded size of VportAttrStats (8 × u64).
const VportStatsLen = 64

// DpStatsLen is the encoded size of DpAttrStats (4 × u64).
const DpStatsLen = 32

// FlowStatsLen is the encoded size of FlowAttrStats (2 × u64).
const FlowStatsLen = 16

// MacAddrLen is the size of NetdevAttrMacAddr.
const MacAddrLen = 6
