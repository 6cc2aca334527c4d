package datapath

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/datapath/vport"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

func newTestSwitch(t *testing.T) *Switch {
	t.Helper()
	sw, err := New(Config{Index: 1})
	require.NoError(t, err)
	return sw
}

func actionAttr(kind uint16, arg uint32) []byte {
	b := binary.LittleEndian.AppendUint16(nil, 8)
	b = binary.LittleEndian.AppendUint16(b, kind)
	return binary.LittleEndian.AppendUint32(b, arg)
}

func addPort(t *testing.T, sw *Switch, no uint32, name string, upcallPID uint32) {
	t.Helper()
	require.NoError(t, sw.Ports().Update(func(w vport.Writer) error {
		_, err := w.Create(vport.Port{PortNo: no, Name: name, Type: ovs.PortTypeNetdev, UpcallPID: upcallPID})
		return err
	}))
}

func TestNew_CreatesLocalPort(t *testing.T) {
	sw := newTestSwitch(t)

	require.NoError(t, sw.Ports().View(func(r vport.Reader) error {
		p, ok := r.FindByNumber(ovs.PortNoLocal)
		require.True(t, ok)
		assert.Equal(t, ovs.DefaultDatapathName, p.Name)
		assert.Equal(t, ovs.PortTypeInternal, p.Type)
		return nil
	}))

	id := sw.Snapshot()
	assert.Equal(t, int32(1), id.Index)
	assert.Equal(t, ovs.DefaultDatapathName, id.Name)
}

func TestNew_RejectsInvalidIndex(t *testing.T) {
	_, err := New(Config{Index: 0})
	assert.Error(t, err)
}

func TestSwitch_ActivateDeactivate(t *testing.T) {
	sw := newTestSwitch(t)
	assert.False(t, sw.Ready())
	sw.Activate()
	assert.True(t, sw.Ready())
	sw.Deactivate()
	assert.False(t, sw.Ready())
}

func TestDatapath_Configure(t *testing.T) {
	sw := newTestSwitch(t)
	sw.Datapath().Configure(9, 0)
	sw.Datapath().Configure(0, 3)

	id := sw.Snapshot()
	assert.Equal(t, uint32(9), id.UpcallPID)
	assert.Equal(t, uint32(3), id.UserFeatures)
}

func TestReceive_MissQueuesUpcall(t *testing.T) {
	sw := newTestSwitch(t)
	s, err := session.NewRegistry(sw.ControlLock(), 4).Open(uuid.New())
	require.NoError(t, err)
	require.NoError(t, sw.Packets().Subscribe(s, s.PID(), true))
	addPort(t, sw, 1, "vif1", s.PID())

	require.NoError(t, sw.Receive(context.Background(), 1, []byte{1, 2, 3}, []byte("k")))

	assert.Equal(t, 1, s.PacketQueue().Depth())
	id := sw.Snapshot()
	assert.Equal(t, uint64(1), id.Misses)
	assert.Zero(t, id.Lost)
}

func TestReceive_MissWithoutListenerIsLost(t *testing.T) {
	sw := newTestSwitch(t)
	addPort(t, sw, 1, "vif1", 0)

	require.NoError(t, sw.Receive(context.Background(), 1, []byte{1}, []byte("k")))
	assert.Equal(t, uint64(1), sw.Snapshot().Lost)

	addPort(t, sw, 2, "vif2", 42)
	assert.Error(t, sw.Receive(context.Background(), 2, []byte{1}, []byte("k")))
	assert.Equal(t, uint64(2), sw.Snapshot().Lost)
}

func TestReceive_HitAppliesActions(t *testing.T) {
	sw := newTestSwitch(t)
	addPort(t, sw, 1, "in", 0)
	addPort(t, sw, 2, "out", 0)
	_, err := sw.Flows().New([]byte("k"), nil, actionAttr(ovs.ActionAttrOutput, 2))
	require.NoError(t, err)

	require.NoError(t, sw.Receive(context.Background(), 1, make([]byte, 60), []byte("k")))

	require.NoError(t, sw.Ports().View(func(r vport.Reader) error {
		in, _ := r.FindByNumber(1)
		out, _ := r.FindByNumber(2)
		assert.Equal(t, uint64(1), in.Stats.RxPackets)
		assert.Equal(t, uint64(60), out.Stats.TxBytes)
		return nil
	}))
	id := sw.Snapshot()
	assert.Equal(t, uint64(1), id.Hits)
	assert.Equal(t, uint64(1), id.Flows)
}

func TestExecute_RejectsBadActions(t *testing.T) {
	sw := newTestSwitch(t)

	err := sw.Executor().Execute(context.Background(), ExecuteRequest{Actions: actionAttr(99, 1)})
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = sw.Executor().Execute(context.Background(), ExecuteRequest{Actions: []byte{8, 0}})
	assert.Error(t, err)

	err = sw.Executor().Execute(context.Background(), ExecuteRequest{Actions: actionAttr(ovs.ActionAttrOutput, 77)})
	assert.ErrorIs(t, err, vport.ErrNotFound)
}
