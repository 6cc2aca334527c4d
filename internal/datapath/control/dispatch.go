package control

import (
	"context"

	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/telemetry"
)

// ============================================================================
// Command Dispatcher
// ============================================================================

// dispatch invokes the handler of req's command. The handler's status is
// returned as is.
func (c *Controller) dispatch(ctx context.Context, req *Request, info *callInfo) (Result, error) {
	if req.Command == nil {
		cmd, ok := req.Family.Command(req.Msg.Genl.Cmd)
		if !ok {
			return Result{}, statusErrorf(StatusInvalidParameter, "%s has no command %d", req.Family.Name, req.Msg.Genl.Cmd)
		}
		req.Command = cmd
	}
	info.command = req.Command.Name

	var (
		res Result
		err error
	)
	telemetry.Profile(ctx, req.Family.Name, req.Command.Name, func(ctx context.Context) {
		res, err = req.Command.Handler(c, ctx, req)
	})
	if err == nil && res.ReplyLen > len(req.Output) {
		// A handler must never claim more than it was given.
		logger.ErrorCtx(ctx, "Handler overran output buffer",
			logger.Family(req.Family.Name), logger.Command(req.Command.Name),
			logger.KeyReplyLen, res.ReplyLen, "capacity", len(req.Output))
		return Result{}, statusErrorf(StatusInsufficientResources, "reply overran output buffer")
	}
	return res, err
}

// ============================================================================
// Shared handler helpers
// ============================================================================

// attrs parses the request's attributes against policy. A malformed or
// policy-violating payload is StatusInvalidParameter.
func (r *Request) attrs(policy netlink.Policy) (netlink.Attrs, error) {
	a, err := netlink.ParseAttrs(r.Msg.Payload(r.Input), policy, r.Family.MaxAttr)
	if err != nil {
		return nil, statusErrorf(StatusInvalidParameter, "%s %s: %v", r.Family.Name, r.Command.Name, err)
	}
	return a, nil
}

// replyError writes a protocol error reply for req into its output buffer.
// The call itself succeeds.
func (r *Request) replyError(code netlink.ErrorCode) (Result, error) {
	n, err := netlink.WriteError(r.Output, r.Msg, code)
	if err != nil {
		return Result{}, statusErrorf(StatusInsufficientResources, "error reply: %v", err)
	}
	return Result{ReplyLen: n, ErrorCode: code}, nil
}

// newReply starts a reply to req in its output buffer.
func (r *Request) newReply(hdr netlink.Message) *netlink.MessageBuilder {
	return netlink.NewMessageBuilder(len(r.Output), hdr)
}

// finish copies a built reply into the output buffer. A reply that does
// not fit is reported with tooSmall.
func (r *Request) finish(b *netlink.MessageBuilder, tooSmall Status) (Result, error) {
	data, err := b.Finish()
	if err != nil {
		return Result{}, statusErrorf(tooSmall, "reply needs more than %d bytes", len(r.Output))
	}
	return Result{ReplyLen: copy(r.Output, data)}, nil
}

// startDump moves the session into the active dump phase for a Write with
// the dump flag set. The reply is empty.
func (r *Request) startDump(initial session.Cursor) (Result, error) {
	if _, err := r.Session.StartDump(r.Msg, r.Input, initial); err != nil {
		return Result{}, statusErrorf(StatusInvalidParameter, "%s %s: %v", r.Family.Name, r.Command.Name, err)
	}
	return Result{}, nil
}

// dumpState returns the session's active dump, or StatusInvalidDeviceState
// when a read reached a dump handler without one.
func (r *Request) dumpState() (*session.DumpState, error) {
	d := r.Session.Dump()
	if d == nil {
		return nil, statusErrorf(StatusInvalidDeviceState, "no dump in progress on session %d", r.Session.PID())
	}
	return d, nil
}
