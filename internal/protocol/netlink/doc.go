// Package netlink implements the netlink-style framing used on the datapath
// control device: message headers, generic and OVS sub-headers, TLV
// attributes validated against a per-command policy, and the reply and
// error builders that every command handler relies on.
//
// Request/Reply layout (all integers little-endian):
//
//	Offset  Size  Field
//	------  ----  ----------------------------------------
//	0       4     Length (total message length in bytes)
//	4       2     Type (family id, or NLMSG_ERROR/NLMSG_DONE)
//	6       2     Flags (REQUEST, MULTI, ACK, ECHO, DUMP...)
//	8       4     Sequence number
//	12      4     PID (session id of the caller)
//	16      1     Command
//	17      1     Version
//	18      2     Reserved
//	20      4     Datapath ifindex (signed)
//	24      ...   Attributes (4-byte aligned TLVs)
//
// Error reply layout:
//
//	Offset  Size  Field
//	------  ----  ----------------------------------------
//	0       24    Message header, Type = NLMSG_ERROR
//	24      4     Error code (protocol-level errno)
//	28      16    Copy of the originating netlink header
//
// Attribute layout:
//
//	Offset  Size  Field
//	------  ----  ----------------------------------------
//	0       2     Length (header + payload, excluding padding)
//	2       2     Type
//	4       ...   Payload, padded to a 4-byte boundary
package netlink
