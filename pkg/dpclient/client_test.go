package dpclient

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/transport"
)

type fixture struct {
	sw   *datapath.Switch
	ctrl *control.Controller
	path string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sw, err := datapath.New(datapath.Config{Index: 7})
	require.NoError(t, err)
	sw.Activate()

	ctrl := control.New(sw)
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv := transport.NewServer(transport.Config{Address: path, ShutdownTimeout: time.Second}, ctrl, nil)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()
	require.NotEmpty(t, srv.Addr())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
		<-served
	})
	return &fixture{sw: sw, ctrl: ctrl, path: path}
}

func (f *fixture) dial(t *testing.T) *Client {
	t.Helper()
	c, err := Dial(context.Background(), f.path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDial(t *testing.T) {
	f := newFixture(t)
	a, b := f.dial(t), f.dial(t)

	assert.NotZero(t, a.PID())
	assert.NotEqual(t, a.PID(), b.PID())
	assert.Equal(t, int32(7), a.DpIndex())
}

func TestDial_UnknownDatapath(t *testing.T) {
	f := newFixture(t)
	_, err := Dial(context.Background(), f.path, WithDatapathName("br-nope"))
	assert.True(t, IsNotFound(err))
}

func TestDial_NoSocket(t *testing.T) {
	_, err := Dial(context.Background(), filepath.Join(t.TempDir(), "missing.sock"))
	assert.Error(t, err)
}

func TestClient_Datapath(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	dp, err := c.Datapath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ovs.DefaultDatapathName, dp.Name)
	assert.Equal(t, int32(7), dp.Index)

	dp, err = c.SetUpcallPID(context.Background(), c.PID())
	require.NoError(t, err)
	assert.Equal(t, ovs.DefaultDatapathName, dp.Name)
}

func TestClient_VportLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.dial(t)

	created, err := c.NewVport(ctx, VportSpec{Name: "vif1", Type: ovs.PortTypeNetdev, UpcallPID: c.PID()})
	require.NoError(t, err)
	assert.Equal(t, "vif1", created.Name)
	assert.NotZero(t, created.PortNo)

	_, err = c.NewVport(ctx, VportSpec{Name: "vif1", Type: ovs.PortTypeNetdev})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.IsConflict())
	assert.Equal(t, ovs.VportFamilyName, pe.Family)

	got, err := c.Vport(ctx, "vif1")
	require.NoError(t, err)
	assert.Equal(t, created.PortNo, got.PortNo)

	set, err := c.SetVport(ctx, "vif1", 99)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), set.UpcallPID)

	ports, err := c.Vports(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{ovs.DefaultDatapathName, "vif1"}, names)

	_, err = c.DelVport(ctx, "vif1")
	require.NoError(t, err)
	_, err = c.Vport(ctx, "vif1")
	assert.True(t, IsNotFound(err))
}

func TestClient_Flows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.dial(t)

	key := func(b byte) []byte {
		w := nlenc.NewWriter(nlenc.Unbounded)
		netlink.PutAttr(w, 1, []byte{b, 0, 0, 0})
		return w.Bytes()
	}
	for i := byte(1); i <= 3; i++ {
		_, err := c.NewFlow(ctx, key(i), nil, []byte{})
		require.NoError(t, err)
	}

	flows, err := c.Flows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, key(1), flows[0].Key)

	require.NoError(t, c.FlushFlows(ctx))
	flows, err = c.Flows(ctx)
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestClient_NextEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := newFixture(t)
	watcher, admin := f.dial(t), f.dial(t)

	require.NoError(t, watcher.SubscribeEvents(ctx))

	got := make(chan Event, 1)
	errc := make(chan error, 1)
	go func() {
		ev, err := watcher.NextEvent(ctx)
		if err != nil {
			errc <- err
			return
		}
		got <- ev
	}()

	_, err := admin.NewVport(ctx, VportSpec{Name: "tap0", Type: ovs.PortTypeInternal})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.False(t, ev.Removed)
		assert.Equal(t, "tap0", ev.Name)
		assert.Equal(t, ovs.PortTypeInternal, ev.Type)
	case err := <-errc:
		t.Fatalf("NextEvent: %v", err)
	case <-ctx.Done():
		t.Fatal("no event")
	}

	_, err = admin.DelVport(ctx, "tap0")
	require.NoError(t, err)
	ev, err := watcher.NextEvent(ctx)
	require.NoError(t, err)
	assert.True(t, ev.Removed)
}

func TestClient_ReadEventNotSubscribed(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, _, err := c.ReadEvent(context.Background())
	assert.Equal(t, control.StatusInvalidParameter, StatusOf(err))
}

func TestClient_CloseCancelsPend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c, err := Dial(ctx, f.path)
	require.NoError(t, err)
	require.NoError(t, c.SubscribeEvents(ctx))

	errc := make(chan error, 1)
	go func() { errc <- c.PendEvent(ctx) }()
	require.Eventually(t, func() bool {
		for _, r := range f.ctrl.Report() {
			if r.PID == c.PID() && r.EventWait {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	err = <-errc
	assert.True(t, errors.Is(err, ErrClosed) || StatusOf(err) == control.StatusCanceled, "got %v", err)
	require.Eventually(t, func() bool { return f.ctrl.Sessions().Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ReplyCapacityClamped(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	// A capacity below one header would be refused by the switch.
	in, err := encode(c.header(ovs.FamilyControl, ovs.CtrlCmdGetPID, 0), nil)
	require.NoError(t, err)
	out, err := c.Transact(context.Background(), in, 0)
	require.NoError(t, err)
	assert.Len(t, out, netlink.MessageLen)

	hdr, err := netlink.ParseHeader(out)
	require.NoError(t, err)
	assert.Equal(t, c.PID(), hdr.PID)
}
