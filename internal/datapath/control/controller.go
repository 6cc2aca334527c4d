// Package control is the message dispatcher of the datapath control device.
//
// Every call enters through DeviceControl, which classifies the control
// code into a device operation, checks the caller's buffers, resolves the
// request's family and command from the static family tables, validates
// the request against the calling session and hands it to the command's
// handler. Handlers answer with a reply in the caller's output buffer, a
// protocol error message, or a pend future the caller blocks on.
//
// Locking: the switch's control lock (a spin lock) guards session
// membership and the datapath identity and is never held across a blocking
// call. The port table has its own reader/writer lock, held by handlers for
// a whole lookup-plus-reply sequence.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/telemetry"
)

// Controller serves control calls for one switch.
type Controller struct {
	sw       *datapath.Switch
	sessions *session.Registry
	registry *Registry
	metrics  *Metrics
}

// Option customizes a Controller.
type Option func(*config)

type config struct {
	maxSessions int
	registry    *Registry
	metrics     *Metrics
}

// WithMaxSessions caps the number of open sessions.
func WithMaxSessions(n int) Option {
	return func(c *config) { c.maxSessions = n }
}

// WithRegistry replaces the family tables. Tests use it to serve extra
// families.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// New returns a controller for sw. The session registry shares the
// switch's control lock.
func New(sw *datapath.Switch, opts ...Option) *Controller {
	cfg := config{
		maxSessions: session.DefaultCapacity,
		registry:    DefaultRegistry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		sw:       sw,
		sessions: session.NewRegistry(sw.ControlLock(), cfg.maxSessions),
		registry: cfg.registry,
		metrics:  cfg.metrics,
	}
}

func (c *Controller) Switch() *datapath.Switch     { return c.sw }
func (c *Controller) Sessions() *session.Registry { return c.sessions }
func (c *Controller) Registry() *Registry          { return c.registry }

// ============================================================================
// Session lifecycle
// ============================================================================

// Open creates the session for a newly opened channel handle.
func (c *Controller) Open(ctx context.Context, handle uuid.UUID) (*session.Session, error) {
	_, span := telemetry.StartSpan(ctx, telemetry.SpanSessionOpen)
	defer span.End()

	s, err := c.sessions.Open(handle)
	switch {
	case errors.Is(err, session.ErrRegistryFull):
		c.metrics.sessionRejected()
		logger.WarnCtx(ctx, "Session registry full", "capacity", c.sessions.Capacity())
		return nil, statusErrorf(StatusInsufficientResources, "%v", err)
	case err != nil:
		return nil, statusErrorf(StatusInvalidParameter, "%v", err)
	}

	c.metrics.sessionOpened()
	span.SetAttributes(telemetry.PID(s.PID()))
	logger.DebugCtx(ctx, "Session opened",
		logger.PID(s.PID()), logger.KeyCookie, s.Cookie(), logger.KeyOperation, "open")
	return s, nil
}

// Cleanup releases everything the session holds in the collaborators: its
// event and packet queues (canceling outstanding pend waits) and its dump
// cursor. It must run before Close and may run more than once.
func (c *Controller) Cleanup(ctx context.Context, s *session.Session) {
	c.sw.Events().Cleanup(s)
	c.sw.Packets().Cleanup(s)
	freed := s.FreeDump()
	logger.DebugCtx(ctx, "Session cleaned up",
		logger.PID(s.PID()), "dump_freed", freed, logger.KeyOperation, "cleanup")
}

// Close removes the session from the registry. Closing a session that
// still holds a dump cursor or queue is an invariant violation: Close
// returns session.ErrInvariant and leaves the registry untouched.
func (c *Controller) Close(ctx context.Context, s *session.Session) error {
	_, span := telemetry.StartSpan(ctx, telemetry.SpanSessionDrop)
	defer span.End()

	if err := c.sessions.Close(s); err != nil {
		span.RecordError(err)
		return fmt.Errorf("control: close session %d: %w", s.PID(), err)
	}
	c.metrics.sessionClosed()
	logger.DebugCtx(ctx, "Session closed", logger.PID(s.PID()), logger.KeyOperation, "close")
	return nil
}

// Release runs Cleanup then Close, the order a channel teardown takes.
func (c *Controller) Release(ctx context.Context, s *session.Session) error {
	c.Cleanup(ctx, s)
	return c.Close(ctx, s)
}

// Shutdown releases every open session. Pend waits still outstanding
// complete with StatusCanceled.
func (c *Controller) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range c.sessions.Sessions() {
		if err := c.Release(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionReport describes one open session for diagnostics.
type SessionReport struct {
	session.Info
	EventWait  bool `json:"event_wait"`
	PacketWait bool `json:"packet_wait"`
}

// Report lists the open sessions with their queue and pend state.
func (c *Controller) Report() []SessionReport {
	sessions := c.sessions.Sessions()
	out := make([]SessionReport, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionReport{
			Info:       s.Info(),
			EventWait:  c.sw.Events().Waiting(s),
			PacketWait: c.sw.Packets().Waiting(s),
		})
	}
	return out
}
