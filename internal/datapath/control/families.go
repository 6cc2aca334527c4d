package control

import (
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// ============================================================================
// Family Tables
// ============================================================================

// The tables below are the whole command surface of the control device.
// They are built once in init and never modified.
var (
	controlFamily  *Family
	datapathFamily *Family
	packetFamily   *Family
	vportFamily    *Family
	flowFamily     *Family
	netdevFamily   *Family

	// DefaultRegistry holds every family the controller serves.
	DefaultRegistry *Registry
)

func init() {
	controlFamily = &Family{
		Name:    ovs.ControlFamilyName,
		ID:      ovs.FamilyControl,
		Version: ovs.ControlVersion,
		MaxAttr: ovs.CtrlAttrMax,
		Commands: []Command{
			{
				Code:    ovs.CtrlCmdGetPID,
				Name:    "get_pid",
				Handler: (*Controller).getPID,
				DevOps:  DevOpTransact,
			},
			{
				Code:       ovs.CtrlCmdPendEventReq,
				Name:       "pend_event",
				Handler:    (*Controller).pendEvent,
				DevOps:     DevOpWrite,
				ValidateDp: true,
			},
			{
				Code:       ovs.CtrlCmdPendPacketReq,
				Name:       "pend_packet",
				Handler:    (*Controller).pendPacket,
				DevOps:     DevOpWrite,
				ValidateDp: true,
			},
			{
				Code:       ovs.CtrlCmdMcastSubscribeReq,
				Name:       "mc_subscribe",
				Handler:    (*Controller).mcastSubscribe,
				DevOps:     DevOpWrite,
				ValidateDp: true,
			},
			{
				Code:       ovs.CtrlCmdPacketSubscribeReq,
				Name:       "packet_subscribe",
				Handler:    (*Controller).packetSubscribe,
				DevOps:     DevOpWrite,
				ValidateDp: true,
			},
			{
				Code:    ovs.CtrlCmdEventNotify,
				Name:    "event_notify",
				Handler: (*Controller).readEvent,
				DevOps:  DevOpReadEvent,
			},
			{
				Code:    ovs.CtrlCmdReadNotify,
				Name:    "read_notify",
				Handler: (*Controller).readPacket,
				DevOps:  DevOpReadPacket,
			},
		},
	}

	datapathFamily = &Family{
		Name:    ovs.DatapathFamilyName,
		ID:      ovs.FamilyDatapath,
		Version: ovs.DatapathVersion,
		MaxAttr: ovs.DpAttrMax,
		Commands: []Command{
			{
				Code:    ovs.DpCmdNew,
				Name:    "new",
				Handler: (*Controller).dpNew,
				DevOps:  DevOpTransact,
			},
			{
				Code:    ovs.DpCmdGet,
				Name:    "get",
				Handler: (*Controller).dpGet,
				DevOps:  DevOpTransact | DevOpWrite | DevOpRead,
			},
			{
				Code:       ovs.DpCmdSet,
				Name:       "set",
				Handler:    (*Controller).dpSet,
				DevOps:     DevOpTransact | DevOpWrite | DevOpRead,
				ValidateDp: true,
			},
		},
	}

	packetFamily = &Family{
		Name:    ovs.PacketFamilyName,
		ID:      ovs.FamilyPacket,
		Version: ovs.PacketVersion,
		MaxAttr: ovs.PacketAttrMax,
		Commands: []Command{
			{
				Code:       ovs.PacketCmdExecute,
				Name:       "execute",
				Handler:    (*Controller).packetExecute,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
		},
	}

	vportFamily = &Family{
		Name:    ovs.VportFamilyName,
		ID:      ovs.FamilyVport,
		Version: ovs.VportVersion,
		MaxAttr: ovs.VportAttrMax,
		Commands: []Command{
			{
				Code:       ovs.VportCmdNew,
				Name:       "new",
				Handler:    (*Controller).vportNew,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
			{
				Code:       ovs.VportCmdDel,
				Name:       "del",
				Handler:    (*Controller).vportDel,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
			{
				Code:       ovs.VportCmdGet,
				Name:       "get",
				Handler:    (*Controller).vportGet,
				DevOps:     DevOpTransact | DevOpWrite | DevOpRead,
				ValidateDp: true,
			},
			{
				Code:       ovs.VportCmdSet,
				Name:       "set",
				Handler:    (*Controller).vportSet,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
		},
	}

	flowFamily = &Family{
		Name:    ovs.FlowFamilyName,
		ID:      ovs.FamilyFlow,
		Version: ovs.FlowVersion,
		MaxAttr: ovs.FlowAttrMax,
		Commands: []Command{
			{
				Code:       ovs.FlowCmdNew,
				Name:       "new",
				Handler:    (*Controller).flowNew,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
			{
				Code:       ovs.FlowCmdDel,
				Name:       "del",
				Handler:    (*Controller).flowDel,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
			{
				Code:       ovs.FlowCmdGet,
				Name:       "get",
				Handler:    (*Controller).flowGet,
				DevOps:     DevOpTransact | DevOpWrite | DevOpRead,
				ValidateDp: true,
			},
			{
				Code:       ovs.FlowCmdSet,
				Name:       "set",
				Handler:    (*Controller).flowSet,
				DevOps:     DevOpTransact,
				ValidateDp: true,
			},
		},
	}

	netdevFamily = &Family{
		Name:    ovs.NetdevFamilyName,
		ID:      ovs.FamilyNetdev,
		Version: ovs.NetdevVersion,
		MaxAttr: ovs.NetdevAttrMax,
		Commands: []Command{
			{
				Code:    ovs.NetdevCmdGet,
				Name:    "get",
				Handler: (*Controller).netdevGet,
				DevOps:  DevOpTransact,
			},
		},
	}

	r, err := NewRegistry(controlFamily, datapathFamily, packetFamily, vportFamily, flowFamily, netdevFamily)
	if err != nil {
		panic(err)
	}
	DefaultRegistry = r
}
