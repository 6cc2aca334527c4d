package control

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

const testDpIndex int32 = 1

// harness is an active switch with one open session.
type harness struct {
	t    *testing.T
	sw   *datapath.Switch
	ctrl *Controller
	s    *session.Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	sw, err := datapath.New(datapath.Config{Index: testDpIndex})
	require.NoError(t, err)
	sw.Activate()

	ctrl := New(sw, opts...)
	s, err := ctrl.Open(context.Background(), uuid.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Shutdown(context.Background()) })

	return &harness{t: t, sw: sw, ctrl: ctrl, s: s}
}

// msg returns a request header for family/cmd addressed from the session
// to the active datapath, at the family's current version.
func (h *harness) msg(family uint16, cmd uint8) netlink.Message {
	h.t.Helper()
	fam, err := h.ctrl.Registry().Family(family)
	require.NoError(h.t, err)
	return netlink.Message{
		Header: netlink.Header{
			Len:   netlink.MessageLen,
			Type:  family,
			Flags: netlink.FlagRequest,
			Seq:   42,
			PID:   h.s.PID(),
		},
		Genl:      netlink.GenlHeader{Cmd: cmd, Version: fam.Version},
		DpIfIndex: testDpIndex,
	}
}

func (h *harness) dumpMsg(family uint16, cmd uint8) netlink.Message {
	m := h.msg(family, cmd)
	m.Flags |= netlink.FlagDump
	return m
}

func encode(t *testing.T, m netlink.Message, fn func(b *netlink.MessageBuilder)) []byte {
	t.Helper()
	b := netlink.NewMessageBuilder(nlenc.Unbounded, m)
	if fn != nil {
		fn(b)
	}
	data, err := b.Finish()
	require.NoError(t, err)
	return data
}

func (h *harness) do(code Code, in []byte, outCap int) ([]byte, error) {
	var out []byte
	if outCap > 0 {
		out = make([]byte, outCap)
	}
	n, err := h.ctrl.DeviceControl(context.Background(), h.s, code, in, out)
	return out[:n], err
}

// transact sends m with attributes from fn and returns the reply.
func (h *harness) transact(m netlink.Message, fn func(b *netlink.MessageBuilder)) []byte {
	h.t.Helper()
	reply, err := h.do(CodeTransact, encode(h.t, m, fn), 4096)
	require.NoError(h.t, err)
	return reply
}

func (h *harness) write(m netlink.Message, fn func(b *netlink.MessageBuilder)) {
	h.t.Helper()
	n, err := h.ctrl.DeviceControl(context.Background(), h.s, CodeWrite, encode(h.t, m, fn), nil)
	require.NoError(h.t, err)
	require.Zero(h.t, n)
}

func (h *harness) read() []byte {
	h.t.Helper()
	reply, err := h.do(CodeRead, nil, 4096)
	require.NoError(h.t, err)
	return reply
}

func (h *harness) addPort(no uint32, name string) {
	h.t.Helper()
	require.NoError(h.t, h.sw.Ports().Update(func(w vport.Writer) error {
		_, err := w.Create(vport.Port{PortNo: no, Name: name, Type: ovs.PortTypeNetdev})
		return err
	}))
}

// anyAttrs accepts every attribute type a reply may carry.
var anyAttrs = func() netlink.Policy {
	p := netlink.Policy{}
	for t := uint16(1); t <= 16; t++ {
		p[t] = netlink.AttrPolicy{Optional: true}
	}
	return p
}()

func parseReply(t *testing.T, data []byte) (netlink.Message, netlink.Attrs) {
	t.Helper()
	m, err := netlink.ParseMessage(data)
	require.NoError(t, err)
	require.NotEqual(t, netlink.TypeError, m.Type, "unexpected error reply")
	attrs, err := netlink.ParseAttrs(m.Payload(data), anyAttrs, math.MaxUint16)
	require.NoError(t, err)
	return m, attrs
}

func errorCode(t *testing.T, data []byte) netlink.ErrorCode {
	t.Helper()
	em, err := netlink.ParseErrorMessage(data)
	require.NoError(t, err)
	require.Equal(t, netlink.TypeError, em.Type)
	return em.Error
}
