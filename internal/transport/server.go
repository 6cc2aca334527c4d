// Package transport exposes a control Controller on a Unix-domain socket.
//
// Each accepted connection is one open channel handle on the control
// device and owns exactly one session. Request frames on a connection are
// served concurrently; responses may come back in any order and carry the
// request's tag.
package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/logger"
)

// Config holds the listener settings.
type Config struct {
	// Network is "unix" (the default) or "tcp" for tests and remote agents.
	Network string

	// Address is the socket path, or host:port for tcp.
	Address string

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int

	// ReadBufferSize sizes the per-connection read buffer. 0 selects
	// DefaultReadBufferSize.
	ReadBufferSize int

	// ShutdownTimeout bounds how long Stop waits for connections to drain
	// before force-closing them.
	ShutdownTimeout time.Duration

	// MetricsLogInterval enables a periodic log line with the connection
	// count. 0 disables it.
	MetricsLogInterval time.Duration
}

// DefaultReadBufferSize is the per-connection read buffer size.
const DefaultReadBufferSize = 64 << 10

// MetricsRecorder records connection lifecycle metrics. A nil recorder
// disables collection.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
	RecordFrame(code string, inBytes, replyBytes int)
}

// Server accepts control connections and serves them with a Controller.
//
// All exported methods are safe for concurrent use; Stop may be called
// more than once.
type Server struct {
	cfg     Config
	ctrl    *control.Controller
	metrics MetricsRecorder

	listener   net.Listener
	listenerMu sync.RWMutex
	ready      chan struct{}

	shutdown     chan struct{}
	shutdownOnce sync.Once

	// connCtx is canceled on shutdown to abort in-flight calls and pends.
	connCtx    context.Context
	cancelConn context.CancelFunc

	active    sync.WaitGroup
	connCount atomic.Int32
	conns     sync.Map // uuid.UUID -> net.Conn
	sem       chan struct{}
}

// NewServer returns a stopped server. Call Serve to start it.
func NewServer(cfg Config, ctrl *control.Controller, metrics MetricsRecorder) *Server {
	if cfg.Network == "" {
		cfg.Network = "unix"
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		ctrl:       ctrl,
		metrics:    metrics,
		ready:      make(chan struct{}),
		shutdown:   make(chan struct{}),
		connCtx:    ctx,
		cancelConn: cancel,
		sem:        sem,
	}
}

func (s *Server) listen() (net.Listener, error) {
	if s.cfg.Network == "unix" {
		// A socket file left behind by a crashed process blocks the bind.
		if fi, err := os.Stat(s.cfg.Address); err == nil && fi.Mode()&os.ModeSocket != 0 {
			if err := os.Remove(s.cfg.Address); err != nil {
				return nil, fmt.Errorf("remove stale socket %s: %w", s.cfg.Address, err)
			}
			logger.Debug("Removed stale control socket", logger.KeySocket, s.cfg.Address)
		}
	}
	return net.Listen(s.cfg.Network, s.cfg.Address)
}

// Serve runs the accept loop until ctx is canceled or Stop is called.
// It returns nil on a graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		close(s.ready)
		return fmt.Errorf("control listener on %s %s: %w", s.cfg.Network, s.cfg.Address, err)
	}

	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	close(s.ready)

	logger.Info("Control device listening",
		logger.KeySocket, ln.Addr().String(),
		"max_connections", s.cfg.MaxConnections)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Control device shutdown signal received", logger.KeyError, ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.cfg.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
			case <-s.shutdown:
				return s.drain(s.cfg.ShutdownTimeout)
			}
		}

		nc, err := ln.Accept()
		if err != nil {
			if s.sem != nil {
				<-s.sem
			}
			select {
			case <-s.shutdown:
				return s.drain(s.cfg.ShutdownTimeout)
			default:
				logger.Debug("Error accepting control connection", logger.KeyError, err)
				continue
			}
		}

		s.track(nc)
	}
}

func (s *Server) track(nc net.Conn) {
	id := uuid.New()
	s.active.Add(1)
	count := s.connCount.Add(1)
	s.conns.Store(id, nc)

	if s.metrics != nil {
		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(count)
	}
	logger.Debug("Control connection accepted",
		logger.ConnectionID(id.String()), "peer", describePeer(nc), "active", count)

	c := newConn(id, nc, s.ctrl, s.metrics, s.cfg.ReadBufferSize)
	go func() {
		defer func() {
			s.conns.Delete(id)
			s.active.Done()
			remaining := s.connCount.Add(-1)
			if s.sem != nil {
				<-s.sem
			}
			if s.metrics != nil {
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(remaining)
			}
			logger.Debug("Control connection closed",
				logger.ConnectionID(id.String()), "active", remaining)
		}()
		c.serve(s.connCtx)
	}()
}

// initiateShutdown stops accepting, interrupts blocked reads and cancels
// every in-flight call.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing control listener", logger.KeyError, err)
			}
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.conns.Range(func(_, v any) bool {
			_ = v.(net.Conn).SetReadDeadline(deadline)
			return true
		})

		s.cancelConn()
	})
}

// drain waits for connections to finish, force-closing them after timeout.
// A zero timeout waits forever.
func (s *Server) drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	logger.Info("Control device draining connections",
		"active", s.connCount.Load(), "timeout", timeout)

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-done:
		logger.Info("Control device shutdown complete")
		return nil
	case <-expired:
		remaining := s.connCount.Load()
		logger.Warn("Control device shutdown timeout exceeded, forcing closure",
			"active", remaining, "timeout", timeout)
		s.forceClose()
		return fmt.Errorf("control device shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceClose() {
	s.conns.Range(func(k, v any) bool {
		if err := v.(net.Conn).Close(); err == nil && s.metrics != nil {
			s.metrics.RecordConnectionForceClosed()
		}
		logger.Debug("Force-closed control connection", logger.ConnectionID(k.(uuid.UUID).String()))
		return true
	})
}

// Stop shuts the server down and waits for connections to drain, bounded
// by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceClose()
		return ctx.Err()
	}
}

func (s *Server) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Control device metrics",
				"active_connections", s.connCount.Load(),
				"sessions", s.ctrl.Sessions().Len())
		}
	}
}

// ActiveConnections returns the number of open connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr blocks until the listener is up and returns its address.
func (s *Server) Addr() string {
	<-s.ready

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

