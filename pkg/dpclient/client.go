// Package dpclient talks to the datapath control device over its Unix
// socket. A Client is one open channel handle: it owns one session on the
// switch and learns its pid while dialing.
//
// Calls may be issued from several goroutines. Each frame carries a tag and
// replies are matched to callers as they arrive, so a parked PendEvent
// does not block other calls on the same client.
package dpclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"

	"github.com/marmos91/ovsdp/internal/bytesize"
	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/transport"
)

// DefaultReplySize is the output capacity offered for transactions and
// dump reads.
const DefaultReplySize = 4096

// Client is a connection to the control device.
type Client struct {
	nc      net.Conn
	writeMu sync.Mutex

	tag     atomic.Uint32
	seq     atomic.Uint32
	mu      sync.Mutex
	pending map[uint32]chan transport.Response
	done    chan struct{}
	readErr error

	pid     uint32
	dpIndex int32
	dpName  string
}

// Option customizes Dial.
type Option func(*Client)

// WithDatapathName selects the datapath by name. The default is the
// single datapath every switch carries.
func WithDatapathName(name string) Option {
	return func(c *Client) { c.dpName = name }
}

// Dial connects to the socket at path, asks for the session pid and
// resolves the datapath index.
func Dial(ctx context.Context, path string, opts ...Option) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial control device %s: %w", path, err)
	}

	c := &Client{
		nc:      nc,
		pending: make(map[uint32]chan transport.Response),
		done:    make(chan struct{}),
		dpName:  ovs.DefaultDatapathName,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()

	if c.pid, err = c.GetPID(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	dp, err := c.Datapath(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.dpIndex = dp.Index
	return c, nil
}

// Close hangs up. The switch releases the session and completes any
// parked pend with a canceled status.
func (c *Client) Close() error {
	err := c.nc.Close()
	<-c.done
	return err
}

// PID is the session id learned while dialing.
func (c *Client) PID() uint32 { return c.pid }

// DpIndex is the datapath index learned while dialing.
func (c *Client) DpIndex() int32 { return c.dpIndex }

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		resp, err := transport.ReadResponse(c.nc)
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.Tag]
		delete(c.pending, resp.Tag)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// call sends one frame and waits for its response. A canceled ctx
// abandons the wait; the switch still completes the call. Calls that
// expect a reply have their capacity clamped to transport.ReplyRange.
func (c *Client) call(ctx context.Context, code control.Code, in []byte, outCap int) ([]byte, error) {
	if code != control.CodeWrite {
		outCap = transport.ReplyRange.Clamp(bytesize.ByteSize(max(outCap, 0))).Int()
	}
	tag := c.tag.Add(1)
	ch := make(chan transport.Response, 1)

	c.mu.Lock()
	if c.readErr != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[tag] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := transport.WriteRequest(c.nc, transport.Request{
		Tag:    tag,
		Code:   uint32(code),
		OutCap: uint32(outCap),
		In:     in,
	})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(tag)
		return nil, fmt.Errorf("send %s: %w", code, err)
	}

	select {
	case resp := <-ch:
		if st := control.Status(resp.Status); st != control.StatusSuccess {
			return nil, &StatusError{Status: st}
		}
		return resp.Reply, nil
	case <-ctx.Done():
		c.forget(tag)
		return nil, ctx.Err()
	case <-c.done:
		// The response may have been delivered just before the reader quit.
		select {
		case resp := <-ch:
			if st := control.Status(resp.Status); st != control.StatusSuccess {
				return nil, &StatusError{Status: st}
			}
			return resp.Reply, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (c *Client) forget(tag uint32) {
	c.mu.Lock()
	delete(c.pending, tag)
	c.mu.Unlock()
}

// ============================================================================
// Raw control operations
// ============================================================================

// Transact sends msg and returns the reply, at most outCap bytes.
func (c *Client) Transact(ctx context.Context, msg []byte, outCap int) ([]byte, error) {
	return c.call(ctx, control.CodeTransact, msg, outCap)
}

// Write sends msg without expecting a reply: dump starts, subscriptions
// and pends.
func (c *Client) Write(ctx context.Context, msg []byte) error {
	_, err := c.call(ctx, control.CodeWrite, msg, 0)
	return err
}

// Read returns the next record of the dump in progress. An empty reply
// means the dump is exhausted.
func (c *Client) Read(ctx context.Context, outCap int) ([]byte, error) {
	return c.call(ctx, control.CodeRead, nil, outCap)
}

// ReadEventRaw returns the oldest queued port event message, or nothing.
func (c *Client) ReadEventRaw(ctx context.Context, outCap int) ([]byte, error) {
	return c.call(ctx, control.CodeReadEvent, nil, outCap)
}

// ReadPacket returns the oldest queued upcall, or nothing.
func (c *Client) ReadPacket(ctx context.Context, outCap int) ([]byte, error) {
	return c.call(ctx, control.CodeReadPacket, nil, outCap)
}

// ============================================================================
// Message helpers
// ============================================================================

var familyVersions = map[uint16]uint8{
	ovs.FamilyControl:  ovs.ControlVersion,
	ovs.FamilyDatapath: ovs.DatapathVersion,
	ovs.FamilyPacket:   ovs.PacketVersion,
	ovs.FamilyVport:    ovs.VportVersion,
	ovs.FamilyFlow:     ovs.FlowVersion,
	ovs.FamilyNetdev:   ovs.NetdevVersion,
}

var familyNames = map[uint16]string{
	ovs.FamilyControl:  ovs.ControlFamilyName,
	ovs.FamilyDatapath: ovs.DatapathFamilyName,
	ovs.FamilyPacket:   ovs.PacketFamilyName,
	ovs.FamilyVport:    ovs.VportFamilyName,
	ovs.FamilyFlow:     ovs.FlowFamilyName,
	ovs.FamilyNetdev:   ovs.NetdevFamilyName,
}

func (c *Client) header(family uint16, cmd uint8, flags netlink.Flags) netlink.Message {
	return netlink.Message{
		Header: netlink.Header{
			Len:   netlink.MessageLen,
			Type:  family,
			Flags: netlink.FlagRequest | flags,
			Seq:   c.seq.Add(1),
			PID:   c.pid,
		},
		Genl:      netlink.GenlHeader{Cmd: cmd, Version: familyVersions[family]},
		DpIfIndex: c.dpIndex,
	}
}

func encode(hdr netlink.Message, attrs func(b *netlink.MessageBuilder)) ([]byte, error) {
	b := netlink.NewMessageBuilder(nlenc.Unbounded, hdr)
	if attrs != nil {
		attrs(b)
	}
	return b.Finish()
}

// anyAttrs accepts every attribute a reply may carry.
var anyAttrs = func() netlink.Policy {
	p := netlink.Policy{}
	for t := uint16(1); t <= 16; t++ {
		p[t] = netlink.AttrPolicy{Optional: true}
	}
	return p
}()

// decode parses a reply, turning an error message into a ProtocolError.
func decode(data []byte) (netlink.Message, netlink.Attrs, error) {
	m, err := netlink.ParseMessage(data)
	if err != nil {
		return netlink.Message{}, nil, fmt.Errorf("decode reply: %w", err)
	}
	if m.Type == netlink.TypeError {
		em, err := netlink.ParseErrorMessage(data)
		if err != nil {
			return netlink.Message{}, nil, fmt.Errorf("decode error reply: %w", err)
		}
		if em.Error == netlink.ErrorNone {
			return m, netlink.Attrs{}, nil
		}
		return m, nil, &ProtocolError{
			Family: familyNames[em.Orig.Type],
			Cmd:    m.Genl.Cmd,
			Code:   em.Error,
		}
	}
	attrs, err := netlink.ParseAttrs(m.Payload(data), anyAttrs, math.MaxUint16)
	if err != nil {
		return netlink.Message{}, nil, fmt.Errorf("decode reply attributes: %w", err)
	}
	return m, attrs, nil
}

// transact encodes a request, sends it and decodes the reply.
func (c *Client) transact(ctx context.Context, hdr netlink.Message, attrs func(b *netlink.MessageBuilder)) (netlink.Message, netlink.Attrs, error) {
	in, err := encode(hdr, attrs)
	if err != nil {
		return netlink.Message{}, nil, err
	}
	out, err := c.Transact(ctx, in, DefaultReplySize)
	if err != nil {
		return netlink.Message{}, nil, err
	}
	return decode(out)
}

// dump starts a dump of family/cmd and collects every record.
func (c *Client) dump(ctx context.Context, family uint16, cmd uint8, each func(netlink.Message, netlink.Attrs) error) error {
	in, err := encode(c.header(family, cmd, netlink.FlagDump), nil)
	if err != nil {
		return err
	}
	if err := c.Write(ctx, in); err != nil {
		return err
	}
	for {
		out, err := c.Read(ctx, DefaultReplySize)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		m, attrs, err := decode(out)
		if err != nil {
			return err
		}
		if err := each(m, attrs); err != nil {
			return err
		}
	}
}

// GetPID asks the switch for this channel's session id.
func (c *Client) GetPID(ctx context.Context) (uint32, error) {
	in, err := encode(c.header(ovs.FamilyControl, ovs.CtrlCmdGetPID, 0), nil)
	if err != nil {
		return 0, err
	}
	out, err := c.Transact(ctx, in, netlink.MessageLen)
	if err != nil {
		return 0, err
	}
	hdr, err := netlink.ParseHeader(out)
	if err != nil {
		return 0, fmt.Errorf("decode pid reply: %w", err)
	}
	if hdr.PID == 0 {
		return 0, errors.New("dpclient: switch returned pid 0")
	}
	return hdr.PID, nil
}
