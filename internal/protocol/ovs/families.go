package ovs

// Family identifiers carried in the netlink type field.
const (
	FamilyControl  uint16 = 0x11
	FamilyDatapath uint16 = 0x12
	FamilyPacket   uint16 = 0x13
	FamilyVport    uint16 = 0x14
	FamilyFlow     uint16 = 0x15
	FamilyNetdev   uint16 = 0x16
)

// Family names as advertised to user-mode agents.
const (
	ControlFamilyName  = "ovs_win_control"
	DatapathFamilyName = "ovs_datapath"
	PacketFamilyName   = "ovs_packet"
	VportFamilyName    = "ovs_vport"
	FlowFamilyName     = "ovs_flow"
	NetdevFamilyName   = "ovs_win_netdev"
)

// Protocol versions required by each family.
const (
	ControlVersion  uint8 = 1
	DatapathVersion uint8 = 2
	PacketVersion   uint8 = 1
	VportVersion    uint8 = 1
	FlowVersion     uint8 = 1
	NetdevVersion   uint8 = 1
)

// DefaultDatapathName is the name of the single datapath instance.
const DefaultDatapathName = "ovs-system"

// ============================================================================
// Control family
// ============================================================================

const (
	CtrlCmdGetPID             uint8 = 0
	CtrlCmdPendEventReq       uint8 = 1
	CtrlCmdPendPacketReq      uint8 = 2
	CtrlCmdMcastSubscribeReq  uint8 = 3
	CtrlCmdPacketSubscribeReq uint8 = 4
	CtrlCmdEventNotify        uint8 = 5
	CtrlCmdReadNotify         uint8 = 6
)

const (
	CtrlAttrMcastGroup      uint16 = 1
	CtrlAttrMcastJoin       uint16 = 2
	CtrlAttrPacketPID       uint16 = 3
	CtrlAttrPacketSubscribe uint16 = 4
	CtrlAttrMax                    = CtrlAttrPacketSubscribe
)

// ============================================================================
// Datapath family
// ============================================================================

const (
	DpCmdNew uint8 = 1
	DpCmdDel uint8 = 2
	DpCmdGet uint8 = 3
	DpCmdSet uint8 = 4
)

const (
	DpAttrName          uint16 = 1
	DpAttrUpcallPID     uint16 = 2
	DpAttrStats         uint16 = 3
	DpAttrMegaflowStats uint16 = 4
	DpAttrUserFeatures  uint16 = 5
	DpAttrMax                  = DpAttrUserFeatures
)

// ============================================================================
// Packet family
// ============================================================================

const (
	PacketCmdMiss    uint8 = 1
	PacketCmdAction  uint8 = 2
	PacketCmdExecute uint8 = 3
)

const (
	PacketAttrPacket   uint16 = 1
	PacketAttrKey      uint16 = 2
	PacketAttrActions  uint16 = 3
	PacketAttrUserdata uint16 = 4
	PacketAttrMax             = PacketAttrUserdata
)

// ============================================================================
// Vport family
// ============================================================================

const (
	VportCmdNew uint8 = 1
	VportCmdDel uint8 = 2
	VportCmdGet uint8 = 3
	VportCmdSet uint8 = 4
)

const (
	VportAttrPortNo    uint16 = 1
	VportAttrType      uint16 = 2
	VportAttrName      uint16 = 3
	VportAttrOptions   uint16 = 4
	VportAttrUpcallPID uint16 = 5
	VportAttrStats     uint16 = 6
	VportAttrMax              = VportAttrStats
)

// ============================================================================
// Flow family
// ============================================================================

const (
	FlowCmdNew uint8 = 1
	FlowCmdDel uint8 = 2
	FlowCmdGet uint8 = 3
	FlowCmdSet uint8 = 4
)

const (
	FlowAttrKey      uint16 = 1
	FlowAttrActions  uint16 = 2
	FlowAttrStats    uint16 = 3
	FlowAttrTCPFlags uint16 = 4
	FlowAttrUsed     uint16 = 5
	FlowAttrClear    uint16 = 6
	FlowAttrMask     uint16 = 7
	FlowAttrMax             = FlowAttrMask
)

// ============================================================================
// Netdev family
// ============================================================================

const (
	NetdevCmdGet uint8 = 1
)

const (
	NetdevAttrPortNo  uint16 = 1
	NetdevAttrType    uint16 = 2
	NetdevAttrName    uint16 = 3
	NetdevAttrMacAddr uint16 = 4
	NetdevAttrMTU     uint16 = 5
	NetdevAttrIfFlags uint16 = 6
	NetdevAttrMax            = NetdevAttrIfFlags
)

// NetdevFlagUp is set in NetdevAttrIfFlags when the port is connected.
const NetdevFlagUp uint32 = 1

// ============================================================================
// Actions (nested in PacketAttrActions and FlowAttrActions)
// ============================================================================

const (
	ActionAttrOutput    uint16 = 1 // u32 port number
	ActionAttrUserspace uint16 = 2 // u32 upcall pid
	ActionAttrMax              = ActionAttrUserspace
)
