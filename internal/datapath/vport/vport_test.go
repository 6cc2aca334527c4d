package vport

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/datapath/event"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Entry
}

func (r *recorder) Publish(e event.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func create(t *testing.T, tbl *Table, p Port) {
	t.Helper()
	require.NoError(t, tbl.Update(func(w Writer) error {
		_, err := w.Create(p)
		return err
	}))
}

func TestTable_CreateAndFind(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)
	create(t, tbl, Port{PortNo: 5, Name: "vif5", Type: ovs.PortTypeNetdev})

	err := tbl.View(func(r Reader) error {
		p, ok := r.FindByName("vif5")
		require.True(t, ok)
		assert.Equal(t, uint32(5), p.PortNo)
		assert.Equal(t, LocalMAC(5), p.MAC)
		assert.Equal(t, uint32(DefaultMTU), p.MTU)
		assert.True(t, p.Connected)

		byNo, ok := r.FindByNumber(5)
		require.True(t, ok)
		assert.Same(t, p, byNo)

		_, ok = r.FindByNumber(5 + NumBuckets)
		assert.False(t, ok, "same bucket, different port")
		assert.Equal(t, 1, r.Len())
		return nil
	})
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, event.Entry{PortNo: 5, Name: "vif5", Type: ovs.PortTypeNetdev, Status: event.StatusConnect}, rec.events[0])
}

func TestTable_CreateConflicts(t *testing.T) {
	tbl := NewTable(nil)
	create(t, tbl, Port{PortNo: 1, Name: "a"})

	tests := []struct {
		name string
		port Port
		want error
	}{
		{"duplicate name", Port{PortNo: 2, Name: "a"}, ErrExists},
		{"duplicate number", Port{PortNo: 1, Name: "b"}, ErrPortNoInUse},
		{"empty name", Port{PortNo: 3}, ErrInvalidName},
		{"name too long", Port{PortNo: 3, Name: "sixteen-chars-xx"}, ErrInvalidName},
		{"number out of range", Port{PortNo: ovs.PortNoMax + 1, Name: "c"}, ErrPortNoRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.Update(func(w Writer) error {
				_, err := w.Create(tt.port)
				return err
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTable_FailedUpdatePublishesNothing(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)

	boom := errors.New("boom")
	err := tbl.Update(func(w Writer) error {
		if _, err := w.Create(Port{PortNo: 1, Name: "a"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.events)
}

func TestTable_DeleteKeepsIdentityInEvent(t *testing.T) {
	rec := &recorder{}
	tbl := NewTable(rec)
	create(t, tbl, Port{PortNo: 7, Name: "tun0", Type: ovs.PortTypeVXLAN})

	require.NoError(t, tbl.Update(func(w Writer) error {
		p, err := w.Delete(7)
		require.NoError(t, err)
		assert.False(t, p.Connected)
		return nil
	}))

	require.Len(t, rec.events, 2)
	assert.Equal(t, event.Entry{PortNo: 7, Name: "tun0", Type: ovs.PortTypeVXLAN, Status: event.StatusDisconnect}, rec.events[1])

	err := tbl.Update(func(w Writer) error {
		_, err := w.Delete(7)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTable_LocalPortCannotBeDeleted(t *testing.T) {
	tbl := NewTable(nil)
	create(t, tbl, Port{PortNo: ovs.PortNoLocal, Name: "ovs-system", Type: ovs.PortTypeInternal})

	err := tbl.Update(func(w Writer) error {
		_, err := w.Delete(ovs.PortNoLocal)
		return err
	})
	assert.ErrorIs(t, err, ErrLocalPortDel)
}

func TestTable_NextWalksAllBuckets(t *testing.T) {
	tbl := NewTable(nil)
	for _, p := range []Port{
		{PortNo: 3, Name: "c"},
		{PortNo: 1, Name: "a"},
		{PortNo: 1 + NumBuckets, Name: "a2"},
		{PortNo: 900, Name: "z"},
	} {
		create(t, tbl, p)
	}

	var got []uint32
	require.NoError(t, tbl.View(func(r Reader) error {
		c := session.BucketCursor{}
		for {
			p, next, ok := r.Next(c)
			if !ok {
				break
			}
			got = append(got, p.PortNo)
			c = next
		}
		return nil
	}))
	assert.Equal(t, []uint32{1, 1 + NumBuckets, 3, 900}, got)
}

func TestTable_NextToleratesRemoval(t *testing.T) {
	tbl := NewTable(nil)
	create(t, tbl, Port{PortNo: 1, Name: "a"})
	create(t, tbl, Port{PortNo: 2, Name: "b"})
	create(t, tbl, Port{PortNo: 3, Name: "c"})

	var c session.BucketCursor
	require.NoError(t, tbl.View(func(r Reader) error {
		_, c, _ = r.Next(c)
		return nil
	}))
	require.NoError(t, tbl.Update(func(w Writer) error {
		_, err := w.Delete(2)
		return err
	}))

	require.NoError(t, tbl.View(func(r Reader) error {
		p, _, ok := r.Next(c)
		require.True(t, ok)
		assert.Equal(t, uint32(3), p.PortNo)
		return nil
	}))
}

func TestTable_AllocateNumber(t *testing.T) {
	tbl := NewTable(nil)
	create(t, tbl, Port{PortNo: 0, Name: "local"})
	create(t, tbl, Port{PortNo: 1, Name: "a"})
	create(t, tbl, Port{PortNo: 3, Name: "c"})

	require.NoError(t, tbl.Update(func(w Writer) error {
		n, err := w.AllocateNumber()
		require.NoError(t, err)
		assert.Equal(t, uint32(2), n)
		return nil
	}))
}

func TestTable_MutatePort(t *testing.T) {
	tbl := NewTable(nil)
	create(t, tbl, Port{PortNo: 4, Name: "d"})

	require.NoError(t, tbl.Update(func(w Writer) error {
		if err := w.SetUpcallPID(4, 77); err != nil {
			return err
		}
		return w.UpdateStats(4, func(s *Stats) { s.RxPackets += 2 })
	}))
	assert.ErrorIs(t, tbl.Update(func(w Writer) error { return w.SetUpcallPID(99, 1) }), ErrNotFound)

	require.NoError(t, tbl.View(func(r Reader) error {
		p, _ := r.FindByNumber(4)
		assert.Equal(t, uint32(77), p.UpcallPID)
		assert.Equal(t, uint64(2), p.Stats.RxPackets)
		return nil
	}))
}
