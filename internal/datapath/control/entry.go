package control

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/internal/telemetry"
)

// ============================================================================
// Control Entry Point
// ============================================================================

// callInfo collects what the pipeline learned about a call, for logging
// and metrics.
type callInfo struct {
	family  string
	command string
	seq     uint32
	dpIndex int32
}

// DeviceControl serves one control call on session s. input is the
// caller's request (ignored for read operations) and output the reply
// buffer; its length is the caller's capacity. On success it returns the
// number of reply bytes written to output. A non-nil error is a
// *StatusError (or a context error) carrying the transport status.
//
// Pend commands block here, after the session's exclusive-use flag has
// been released, until the wait is fulfilled (zero-length reply), the
// session is torn down (StatusCanceled) or ctx ends.
func (c *Controller) DeviceControl(ctx context.Context, s *session.Session, code Code, input, output []byte) (int, error) {
	if s == nil {
		return 0, statusErrorf(StatusInvalidDeviceState, "no session on handle")
	}

	op, _ := code.DevOp()
	ctx, span := telemetry.StartControlSpan(ctx, op.String(), s.PID())
	defer span.End()

	lc := logger.NewLogContext(s.PID()).
		WithDevOp(op.String()).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	var info callInfo
	res, err := c.serve(ctx, s, code, input, output, &info)
	status := StatusOf(err)
	c.metrics.recordRequest(info.family, info.command, op, status, time.Since(lc.StartTime))

	telemetry.AnnotateCall(ctx, info.family, info.command, info.seq, info.dpIndex)
	if res.ErrorCode != netlink.ErrorNone {
		c.metrics.recordProtocolError(info.family, info.command, res.ErrorCode.String())
		span.SetAttributes(telemetry.ErrorCode(int32(res.ErrorCode)))
	}

	if status == StatusPending && res.Pend != nil {
		span.SetAttributes(telemetry.Pending(true))
		err = c.awaitPend(ctx, s, res.Pend)
		status = StatusOf(err)
		res.ReplyLen = 0
	}

	span.SetAttributes(telemetry.Status(status.String()), telemetry.ReplyLen(res.ReplyLen))
	if err != nil {
		telemetry.RecordError(ctx, err)
	}

	if logger.Enabled(logger.LevelDebug) {
		lc = lc.WithCommand(info.family, info.command).WithMessage(info.seq, info.dpIndex)
		logger.DebugCtx(logger.WithContext(ctx, lc), "Control call",
			logger.Status(status),
			logger.KeyReplyLen, res.ReplyLen,
			logger.ErrorCode(int32(res.ErrorCode)),
			logger.DurationMs(lc.DurationMs()),
			logger.Err(err))
	}

	if err != nil {
		return 0, err
	}
	return res.ReplyLen, nil
}

// serve runs the synchronous part of a call while holding the session's
// exclusive-use flag.
func (c *Controller) serve(ctx context.Context, s *session.Session, code Code, input, output []byte, info *callInfo) (Result, error) {
	if !c.sw.Ready() {
		return Result{}, statusErrorf(StatusDeviceNotReady, "datapath is not active")
	}

	if !s.TryAcquire() {
		c.metrics.recordInUse()
		return Result{}, statusErrorf(StatusResourceInUse, "session %d has a call in flight", s.PID())
	}
	defer s.Release()

	req, err := classify(s, code, input, output)
	if err != nil || req == nil {
		return Result{}, err
	}
	info.seq = req.Msg.Seq
	info.dpIndex = req.Msg.DpIfIndex

	fam, err := c.registry.Family(req.Msg.Type)
	if err != nil {
		return Result{}, statusErrorf(StatusInvalidParameter, "%v", err)
	}
	req.Family = fam
	info.family = fam.Name

	// Read-originated requests were built from session state and were
	// validated when the dump started.
	if req.DevOp&readOps == 0 {
		if err := c.validate(req); err != nil {
			if req.Command != nil {
				info.command = req.Command.Name
			}
			return Result{}, err
		}
	}

	return c.dispatch(ctx, req, info)
}

// classify derives the device operation from code, checks the buffers it
// requires and frames the request. It returns a nil request for a plain
// read with no dump in progress, which completes with no data.
func classify(s *session.Session, code Code, input, output []byte) (*Request, error) {
	op, ok := code.DevOp()
	if !ok {
		return nil, statusErrorf(StatusInvalidDeviceRequest, "unknown control code %s", code)
	}

	req := &Request{DevOp: op, Session: s}

	switch op {
	case DevOpTransact:
		if err := checkOutput(output); err != nil {
			return nil, err
		}
		msg, err := parseInput(input)
		if err != nil {
			return nil, err
		}
		req.Msg, req.Input, req.Output = msg, input, output

	case DevOpReadEvent, DevOpReadPacket:
		if err := checkOutput(output); err != nil {
			return nil, err
		}
		cmd := ovs.CtrlCmdEventNotify
		if op == DevOpReadPacket {
			cmd = ovs.CtrlCmdReadNotify
		}
		req.Msg = netlink.Message{
			Header: netlink.Header{
				Len:  netlink.MessageLen,
				Type: ovs.FamilyControl,
				PID:  s.PID(),
			},
			Genl: netlink.GenlHeader{Cmd: cmd},
		}
		req.Output = output

	case DevOpRead:
		if err := checkOutput(output); err != nil {
			return nil, err
		}
		dump := s.Dump()
		if dump == nil {
			return nil, nil
		}
		req.Msg, req.Output = dump.Request, output

	case DevOpWrite:
		msg, err := parseInput(input)
		if err != nil {
			return nil, err
		}
		req.Msg, req.Input = msg, input
	}
	return req, nil
}

func checkOutput(output []byte) error {
	if len(output) == 0 {
		return statusErrorf(StatusInvalidLength, "output buffer required")
	}
	if len(output) < netlink.MessageLen {
		return statusErrorf(StatusInvalidLength, "output buffer %d bytes, need %d", len(output), netlink.MessageLen)
	}
	return nil
}

func parseInput(input []byte) (netlink.Message, error) {
	if len(input) < netlink.MessageLen {
		return netlink.Message{}, statusErrorf(StatusInvalidLength, "input buffer %d bytes, need %d", len(input), netlink.MessageLen)
	}
	msg, err := netlink.ParseMessage(input)
	if err != nil {
		return netlink.Message{}, statusErrorf(StatusInvalidLength, "%v", err)
	}
	return msg, nil
}

// awaitPend blocks on a pend future after the session was released.
func (c *Controller) awaitPend(ctx context.Context, s *session.Session, f *pend.Future) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPendWait)
	defer span.End()

	err := f.Wait(ctx)
	switch {
	case err == nil:
		c.metrics.recordPend("fulfilled")
		return nil
	case errors.Is(err, pend.ErrCanceled):
		c.metrics.recordPend("canceled")
		return statusErrorf(StatusCanceled, "session %d torn down while waiting", s.PID())
	default:
		// Abandon the wait so the next pend on this queue can register.
		f.Cancel()
		c.metrics.recordPend("aborted")
		return err
	}
}
