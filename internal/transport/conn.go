package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/telemetry"
	"github.com/marmos91/ovsdp/pkg/bufpool"
)

// conn serves the frames of one connection against its session.
type conn struct {
	id      uuid.UUID
	nc      net.Conn
	ctrl    *control.Controller
	metrics MetricsRecorder
	bufSize int

	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

func newConn(id uuid.UUID, nc net.Conn, ctrl *control.Controller, metrics MetricsRecorder, bufSize int) *conn {
	return &conn{id: id, nc: nc, ctrl: ctrl, metrics: metrics, bufSize: bufSize}
}

func (c *conn) serve(parent context.Context) {
	defer func() { _ = c.nc.Close() }()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	lctx := logger.WithContext(ctx, logger.NewLogContext(0))
	s, err := c.ctrl.Open(lctx, c.id)
	if err != nil {
		logger.WarnCtx(lctx, "Control connection refused", logger.ConnectionID(c.id.String()), logger.Err(err))
		c.refuse(control.StatusOf(err))
		return
	}

	r := bufio.NewReaderSize(c.nc, c.bufSize)
	for {
		req, err := ReadRequest(r)
		if err != nil {
			c.logReadError(err)
			break
		}
		c.inflight.Add(1)
		go c.handle(ctx, s, req)
	}

	c.teardown(ctx, cancel, s)
}

// teardown ends outstanding pend waits with a canceled status, waits for
// every in-flight frame and only then drops the session.
func (c *conn) teardown(ctx context.Context, cancel context.CancelFunc, s *session.Session) {
	c.ctrl.Cleanup(ctx, s)
	cancel()
	c.inflight.Wait()

	if err := c.ctrl.Release(context.Background(), s); err != nil {
		logger.Error("Session release failed",
			logger.ConnectionID(c.id.String()), logger.PID(s.PID()), logger.Err(err))
	}
}

func (c *conn) handle(ctx context.Context, s *session.Session, req Request) {
	defer c.inflight.Done()
	defer bufpool.Put(req.In)

	ctx, span := telemetry.StartFrameSpan(ctx, c.id.String(), req.Tag)
	defer span.End()

	out := bufpool.GetUint32(req.OutCap)
	defer bufpool.Put(out)

	code := control.Code(req.Code)
	n, err := c.ctrl.DeviceControl(ctx, s, code, req.In, out)
	if c.metrics != nil {
		c.metrics.RecordFrame(code.String(), len(req.In), n)
	}

	c.write(Response{
		Tag:    req.Tag,
		Status: uint32(control.StatusOf(err)),
		Reply:  out[:n],
	})
}

// refuse answers every frame with status until the peer hangs up. The
// connection has no session so nothing is dispatched.
func (c *conn) refuse(status control.Status) {
	r := bufio.NewReaderSize(c.nc, c.bufSize)
	for {
		req, err := ReadRequest(r)
		if err != nil {
			return
		}
		bufpool.Put(req.In)
		c.write(Response{Tag: req.Tag, Status: uint32(status)})
	}
}

func (c *conn) write(resp Response) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := WriteResponse(c.nc, resp); err != nil {
		logger.Debug("Control response not delivered",
			logger.ConnectionID(c.id.String()), logger.KeyFrameTag, resp.Tag, logger.Err(err))
	}
}

func (c *conn) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrDeadlineExceeded):
		logger.Debug("Control connection ended", logger.ConnectionID(c.id.String()), logger.Err(err))
	case errors.Is(err, ErrFrameTooLarge):
		logger.Warn("Control frame rejected", logger.ConnectionID(c.id.String()), logger.Err(err))
	default:
		logger.Debug("Control connection read failed", logger.ConnectionID(c.id.String()), logger.Err(err))
	}
}
