// Package ovs defines the family identifiers, command codes, protocol
// versions and attribute numbers of the datapath control protocol.
//
// Each family has its own command and attribute namespace. Values are
// fixed by the wire protocol and shared with user-mode agents, so they must
// never be renumbered.
package ovs
