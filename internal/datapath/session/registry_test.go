package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ovsdp/internal/spinlock"
)

func newTestRegistry(capacity int) *Registry {
	return NewRegistry(&spinlock.Lock{}, capacity)
}

type fakeQueue struct{ depth int }

func (q fakeQueue) Depth() int { return q.depth }

// =============================================================================
// Open
// =============================================================================

func TestRegistry_OpenAssignsIncreasingIDs(t *testing.T) {
	r := newTestRegistry(4)

	a, err := r.Open(uuid.New())
	require.NoError(t, err)
	b, err := r.Open(uuid.New())
	require.NoError(t, err)

	assert.Equal(t, uint32(1), a.PID())
	assert.Equal(t, uint32(2), b.PID())
	assert.Equal(t, 0, a.Cookie())
	assert.Equal(t, 1, b.Cookie())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_OpenReusesLowestFreeSlot(t *testing.T) {
	r := newTestRegistry(4)

	sessions := make([]*Session, 3)
	for i := range sessions {
		s, err := r.Open(uuid.New())
		require.NoError(t, err)
		sessions[i] = s
	}
	require.NoError(t, r.Close(sessions[1]))

	s, err := r.Open(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Cookie())
	assert.Equal(t, uint32(4), s.PID(), "ids are never reused from the freed slot")
}

func TestRegistry_OpenFullLeavesRegistryUnchanged(t *testing.T) {
	r := newTestRegistry(2)
	_, err := r.Open(uuid.New())
	require.NoError(t, err)
	_, err = r.Open(uuid.New())
	require.NoError(t, err)

	before := r.Sessions()
	_, err = r.Open(uuid.New())
	assert.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, before, r.Sessions())
}

func TestRegistry_OpenRejectsDuplicateHandle(t *testing.T) {
	r := newTestRegistry(4)
	h := uuid.New()
	_, err := r.Open(h)
	require.NoError(t, err)

	_, err = r.Open(h)
	assert.ErrorIs(t, err, ErrHandleInUse)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ConcurrentOpenUniqueIDs(t *testing.T) {
	r := newTestRegistry(DefaultCapacity)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[uint32]bool)
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Open(uuid.New())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, ids[s.PID()], "duplicate pid %d", s.PID())
			ids[s.PID()] = true
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 64)
	assert.Equal(t, 64, r.Len())
}

func TestRegistry_PIDRolloverSkipsZeroAndLiveIDs(t *testing.T) {
	r := newTestRegistry(8)

	// Hold pid 1 open, then force the counter to the top of its range.
	first, err := r.Open(uuid.New())
	require.NoError(t, err)
	require.Equal(t, uint32(1), first.PID())

	r.nextPID.Store(^uint32(0) - 1)

	last, err := r.Open(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, ^uint32(0), last.PID())

	wrapped, err := r.Open(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), wrapped.PID(), "0 and the live pid 1 are skipped")
}

// =============================================================================
// Close / Lookup
// =============================================================================

func TestRegistry_CloseAndLookup(t *testing.T) {
	r := newTestRegistry(4)
	h := uuid.New()
	s, err := r.Open(h)
	require.NoError(t, err)

	found, err := r.Lookup(h)
	require.NoError(t, err)
	assert.Same(t, s, found)

	require.NoError(t, r.Close(s))
	_, err = r.Lookup(h)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Close(s), ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CloseWithLiveStateIsInvariantViolation(t *testing.T) {
	r := newTestRegistry(4)

	t.Run("DumpCursor", func(t *testing.T) {
		s, err := r.Open(uuid.New())
		require.NoError(t, err)
		req := dumpRequest(s.PID())
		_, err = s.StartDump(req, req.Bytes(), SingletonCursor{})
		require.NoError(t, err)

		assert.ErrorIs(t, r.Close(s), ErrInvariant)
		found, err := r.Lookup(s.Handle())
		require.NoError(t, err, "registry must be unchanged")
		assert.Same(t, s, found)

		s.FreeDump()
		assert.NoError(t, r.Close(s))
	})

	t.Run("EventQueue", func(t *testing.T) {
		s, err := r.Open(uuid.New())
		require.NoError(t, err)
		require.True(t, s.AttachEventQueue(fakeQueue{}))

		assert.ErrorIs(t, r.Close(s), ErrInvariant)
		s.DetachEventQueue()
		assert.NoError(t, r.Close(s))
	})

	t.Run("PacketQueue", func(t *testing.T) {
		s, err := r.Open(uuid.New())
		require.NoError(t, err)
		require.True(t, s.AttachPacketQueue(fakeQueue{}))

		assert.ErrorIs(t, r.Close(s), ErrInvariant)
		s.DetachPacketQueue()
		assert.NoError(t, r.Close(s))
	})
}

// =============================================================================
// Session state
// =============================================================================

func TestSession_ExclusiveUse(t *testing.T) {
	s := &Session{}
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	assert.True(t, s.InUse())
	s.Release()
	assert.True(t, s.TryAcquire())
}

func TestSession_QueueAttach(t *testing.T) {
	s := &Session{}
	assert.Nil(t, s.EventQueue())
	assert.True(t, s.AttachEventQueue(fakeQueue{depth: 2}))
	assert.False(t, s.AttachEventQueue(fakeQueue{}), "second attach must fail")

	info := s.Info()
	assert.Equal(t, 2, info.EventDepth)
	assert.Equal(t, []string{"events"}, info.Subscribed)

	assert.NotNil(t, s.DetachEventQueue())
	assert.Nil(t, s.DetachEventQueue())
}
