package dpclient

import (
	"context"

	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// EventGroup is the multicast group port events are published on.
const EventGroup uint32 = 1

// Event reports a port that was added or removed.
type Event struct {
	Removed bool         `json:"removed" yaml:"removed"`
	PortNo  uint32       `json:"port_no" yaml:"port_no"`
	Type    ovs.PortType `json:"type" yaml:"type"`
	Name    string       `json:"name" yaml:"name"`
}

// SubscribeEvents joins the port event group.
func (c *Client) SubscribeEvents(ctx context.Context) error {
	return c.mcast(ctx, true)
}

// UnsubscribeEvents leaves the port event group and drops queued events.
func (c *Client) UnsubscribeEvents(ctx context.Context) error {
	return c.mcast(ctx, false)
}

func (c *Client) mcast(ctx context.Context, join bool) error {
	var j uint8
	if join {
		j = 1
	}
	in, err := encode(c.header(ovs.FamilyControl, ovs.CtrlCmdMcastSubscribeReq, 0), func(b *netlink.MessageBuilder) {
		b.PutU32(ovs.CtrlAttrMcastGroup, EventGroup)
		b.PutU8(ovs.CtrlAttrMcastJoin, j)
	})
	if err != nil {
		return err
	}
	return c.Write(ctx, in)
}

// PendEvent blocks until an event is queued for this client, the client
// is closed (a StatusError with StatusCanceled) or ctx ends.
func (c *Client) PendEvent(ctx context.Context) error {
	in, err := encode(c.header(ovs.FamilyControl, ovs.CtrlCmdPendEventReq, 0), nil)
	if err != nil {
		return err
	}
	return c.Write(ctx, in)
}

// ReadEvent returns the oldest queued event. ok is false when the queue
// is empty.
func (c *Client) ReadEvent(ctx context.Context) (ev Event, ok bool, err error) {
	out, err := c.ReadEventRaw(ctx, DefaultReplySize)
	if err != nil || len(out) == 0 {
		return Event{}, false, err
	}
	m, attrs, err := decode(out)
	if err != nil {
		return Event{}, false, err
	}
	return Event{
		Removed: m.Genl.Cmd == ovs.VportCmdDel,
		PortNo:  attrs.U32(ovs.VportAttrPortNo),
		Type:    ovs.PortType(attrs.U32(ovs.VportAttrType)),
		Name:    attrs.String(ovs.VportAttrName),
	}, true, nil
}

// NextEvent returns the next event, parking on the switch while the queue
// is empty. The client must be subscribed.
func (c *Client) NextEvent(ctx context.Context) (Event, error) {
	for {
		ev, ok, err := c.ReadEvent(ctx)
		if err != nil || ok {
			return ev, err
		}
		if err := c.PendEvent(ctx); err != nil {
			return Event{}, err
		}
	}
}
