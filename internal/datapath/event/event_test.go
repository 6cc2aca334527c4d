package event

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
	"github.com/marmos91/ovsdp/internal/spinlock"
)

func openSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.NewRegistry(&spinlock.Lock{}, 8).Open(uuid.New())
	require.NoError(t, err)
	return s
}

func TestBus_PublishAndPop(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))
	assert.NotNil(t, s.EventQueue())

	b.Publish(Entry{PortNo: 2, Name: "vif1", Status: StatusConnect})
	b.Publish(Entry{PortNo: 2, Name: "vif1", Status: StatusDisconnect})

	e, ok := b.Pop(s)
	require.True(t, ok)
	assert.Equal(t, StatusConnect, e.Status)
	e, ok = b.Pop(s)
	require.True(t, ok)
	assert.Equal(t, "vif1", e.Name)
	assert.True(t, e.Status.Removed())

	_, ok = b.Pop(s)
	assert.False(t, ok)
}

func TestBus_MaskFilters(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, StatusDisconnect))

	b.Publish(Entry{PortNo: 1, Status: StatusConnect})
	assert.Equal(t, 0, s.EventQueue().Depth())

	b.Publish(Entry{PortNo: 1, Status: StatusDisconnect})
	assert.Equal(t, 1, s.EventQueue().Depth())
}

func TestBus_SubscribeRejectsEmptyMask(t *testing.T) {
	b := NewBus()
	assert.Error(t, b.Subscribe(openSession(t), 1, 0))
}

func TestBus_OverflowDropsOldest(t *testing.T) {
	drops := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_event_drops_total"})
	b := NewBus(WithDepth(2), WithDropCounter(drops))
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))

	for i := uint32(1); i <= 3; i++ {
		b.Publish(Entry{PortNo: i, Status: StatusConnect})
	}

	e, _ := b.Pop(s)
	assert.Equal(t, uint32(2), e.PortNo)
	assert.Equal(t, float64(1), testutil.ToFloat64(drops))
	assert.Equal(t, uint64(1), s.EventQueue().(*Queue).Dropped())
}

func TestBus_WaitFulfilledByPublish(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))

	f, err := b.Wait(s)
	require.NoError(t, err)

	_, err = b.Wait(s)
	assert.ErrorIs(t, err, ErrWaitPending)

	go b.Publish(Entry{PortNo: 4, Status: StatusConnect})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx))
}

func TestBus_WaitImmediateWhenQueued(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))
	b.Publish(Entry{PortNo: 4, Status: StatusConnect})

	f, err := b.Wait(s)
	require.NoError(t, err)
	select {
	case <-f.Done():
	default:
		t.Fatal("future should already be complete")
	}
}

func TestBus_WaitWithoutSubscription(t *testing.T) {
	_, err := NewBus().Wait(openSession(t))
	assert.ErrorIs(t, err, ErrNotSubscribed)
}

func TestBus_CleanupCancelsWait(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))

	f, err := b.Wait(s)
	require.NoError(t, err)

	b.Cleanup(s)
	assert.ErrorIs(t, f.Wait(context.Background()), pend.ErrCanceled)
	assert.Nil(t, s.EventQueue())
	assert.Zero(t, b.Subscribers())

	// Cleanup of an unsubscribed session is a no-op.
	b.Cleanup(s)
	assert.ErrorIs(t, b.Unsubscribe(s), ErrNotSubscribed)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connect|link-down", (StatusConnect | StatusLinkDown).String())
	assert.Equal(t, "none", Status(0).String())
}

func TestBus_WaitAfterAbandonedWait(t *testing.T) {
	b := NewBus()
	s := openSession(t)
	require.NoError(t, b.Subscribe(s, 1, MaskAll))

	f, err := b.Wait(s)
	require.NoError(t, err)
	f.Cancel()

	g, err := b.Wait(s)
	require.NoError(t, err)
	assert.NotSame(t, f, g)
}
