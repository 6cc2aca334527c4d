package packet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/spinlock"
)

func openSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.NewRegistry(&spinlock.Lock{}, 8).Open(uuid.New())
	require.NoError(t, err)
	return s
}

func TestTable_SubscribeRequiresOwnPID(t *testing.T) {
	tbl := NewTable()
	s := openSession(t)

	assert.ErrorIs(t, tbl.Subscribe(s, s.PID()+1, true), ErrPIDMismatch)
	assert.Nil(t, s.PacketQueue())

	require.NoError(t, tbl.Subscribe(s, s.PID(), true))
	assert.NotNil(t, s.PacketQueue())
	require.NoError(t, tbl.Subscribe(s, s.PID(), true), "joining twice is a no-op")

	require.NoError(t, tbl.Subscribe(s, s.PID(), false))
	assert.Nil(t, s.PacketQueue())
}

func TestTable_EnqueueAndRead(t *testing.T) {
	tbl := NewTable()
	s := openSession(t)
	require.NoError(t, tbl.Subscribe(s, s.PID(), true))

	require.NoError(t, tbl.Enqueue(s.PID(), Upcall{
		DpIfIndex: 1,
		Packet:    []byte{0xde, 0xad, 0xbe, 0xef, 0x01},
		Key:       []byte{1, 2, 3, 4},
		Userdata:  []byte{9},
	}))

	buf := make([]byte, 256)
	n, err := tbl.Read(s, buf)
	require.NoError(t, err)
	require.Positive(t, n)

	msg, err := netlink.ParseMessage(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, ovs.FamilyPacket, msg.Type)
	assert.Equal(t, ovs.PacketCmdMiss, msg.Genl.Cmd)
	assert.Equal(t, s.PID(), msg.PID)
	assert.Equal(t, int32(1), msg.DpIfIndex)

	attrs, err := netlink.ParseAttrs(msg.Payload(buf[:n]), netlink.Policy{
		ovs.PacketAttrPacket:   {Kind: netlink.KindUnspec},
		ovs.PacketAttrKey:      {Kind: netlink.KindUnspec},
		ovs.PacketAttrUserdata: {Kind: netlink.KindUnspec, Optional: true},
	}, ovs.PacketAttrMax)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 0x01}, attrs.Bytes(ovs.PacketAttrPacket))
	assert.Equal(t, []byte{9}, attrs.Bytes(ovs.PacketAttrUserdata))

	n, err = tbl.Read(s, buf)
	require.NoError(t, err)
	assert.Zero(t, n, "empty queue reads zero bytes")
}

func TestTable_ReadBufferTooSmallDropsUpcall(t *testing.T) {
	var lost int
	drops := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_packet_truncated_total"})
	tbl := NewTable(WithDropCounter(drops), WithLossHook(func() { lost++ }))
	s := openSession(t)
	require.NoError(t, tbl.Subscribe(s, s.PID(), true))
	require.NoError(t, tbl.Enqueue(s.PID(), Upcall{Packet: make([]byte, 64), Key: []byte{1}}))
	require.NoError(t, tbl.Enqueue(s.PID(), Upcall{Packet: []byte{7}, Key: []byte{2}}))

	_, err := tbl.Read(s, make([]byte, 32))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, 1, s.PacketQueue().Depth())
	assert.Equal(t, 1, lost)
	assert.Equal(t, float64(1), testutil.ToFloat64(drops))

	// The next upcall is not stuck behind the oversized one.
	buf := make([]byte, 256)
	n, err := tbl.Read(s, buf)
	require.NoError(t, err)
	msg, err := netlink.ParseMessage(buf[:n])
	require.NoError(t, err)
	attrs, err := netlink.ParseAttrs(msg.Payload(buf[:n]), netlink.Policy{
		ovs.PacketAttrPacket: {Optional: true},
		ovs.PacketAttrKey:    {Optional: true},
	}, ovs.PacketAttrMax)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, attrs.Bytes(ovs.PacketAttrPacket))
	assert.Zero(t, s.PacketQueue().Depth())
}

func TestTable_ReadWithoutSubscription(t *testing.T) {
	_, err := NewTable().Read(openSession(t), make([]byte, 64))
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestTable_LostAccounting(t *testing.T) {
	var lost int
	drops := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_packet_drops_total"})
	tbl := NewTable(WithDepth(1), WithDropCounter(drops), WithLossHook(func() { lost++ }))

	assert.ErrorIs(t, tbl.Enqueue(42, Upcall{}), ErrNoSubscriber)
	assert.Equal(t, 1, lost)

	s := openSession(t)
	require.NoError(t, tbl.Subscribe(s, s.PID(), true))
	require.NoError(t, tbl.Enqueue(s.PID(), Upcall{Packet: []byte{1}}))
	require.NoError(t, tbl.Enqueue(s.PID(), Upcall{Packet: []byte{2}}))

	assert.Equal(t, 2, lost)
	assert.Equal(t, float64(1), testutil.ToFloat64(drops))
}

func TestTable_WaitFulfilledByEnqueue(t *testing.T) {
	tbl := NewTable()
	s := openSession(t)
	require.NoError(t, tbl.Subscribe(s, s.PID(), true))

	f, err := tbl.Wait(s)
	require.NoError(t, err)
	go func() { _ = tbl.Enqueue(s.PID(), Upcall{Packet: []byte{1}}) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, f.Wait(ctx))
}

func TestTable_CleanupCancelsWait(t *testing.T) {
	tbl := NewTable()
	s := openSession(t)
	require.NoError(t, tbl.Subscribe(s, s.PID(), true))

	f, err := tbl.Wait(s)
	require.NoError(t, err)
	tbl.Cleanup(s)

	assert.ErrorIs(t, f.Wait(context.Background()), pend.ErrCanceled)
	assert.Nil(t, s.PacketQueue())
}
