package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for control-plane spans.
const (
	// ========================================================================
	// Control calls
	// ========================================================================
	AttrDevOp      = "ovs.devop"       // transact, write, read, read_event, read_packet
	AttrFamily     = "ovs.family"      // ovs_vport, ovs_flow, ...
	AttrCommand    = "ovs.command"     // command name within the family
	AttrPID        = "ovs.pid"         // session id of the caller
	AttrSeq        = "ovs.seq"         // netlink sequence number
	AttrStatus     = "ovs.status"      // transport status
	AttrErrorCode  = "ovs.error_code"  // protocol error in the reply, if any
	AttrReplyLen   = "ovs.reply_len"   // bytes written to the output buffer
	AttrDpIfIndex  = "ovs.dp_ifindex"  // datapath index
	AttrPending    = "ovs.pending"     // the call blocked on a pend wait
	AttrConnection = "ovs.connection"  // transport connection id

	// ========================================================================
	// Datapath objects
	// ========================================================================
	AttrDatapath = "ovs.datapath"
	AttrPortNo   = "ovs.port.no"
	AttrPortName = "ovs.port.name"
	AttrPortType = "ovs.port.type"
)

// Span names.
const (
	SpanControl     = "ovs.control"
	SpanPendWait    = "ovs.pend_wait"
	SpanSessionOpen = "ovs.session.open"
	SpanSessionDrop = "ovs.session.close"
	SpanFrame       = "transport.frame"
)

func DevOp(op string) attribute.KeyValue {
	return attribute.String(AttrDevOp, op)
}

func Family(name string) attribute.KeyValue {
	return attribute.String(AttrFamily, name)
}

func Command(name string) attribute.KeyValue {
	return attribute.String(AttrCommand, name)
}

// PID returns an attribute for a session id.
func PID(pid uint32) attribute.KeyValue {
	return attribute.Int64(AttrPID, int64(pid))
}

func Seq(seq uint32) attribute.KeyValue {
	return attribute.Int64(AttrSeq, int64(seq))
}

// Status returns an attribute for a transport status name.
func Status(name string) attribute.KeyValue {
	return attribute.String(AttrStatus, name)
}

func ErrorCode(code int32) attribute.KeyValue {
	return attribute.Int(AttrErrorCode, int(code))
}

func ReplyLen(n int) attribute.KeyValue {
	return attribute.Int(AttrReplyLen, n)
}

func DpIfIndex(idx int32) attribute.KeyValue {
	return attribute.Int(AttrDpIfIndex, int(idx))
}

func Pending(p bool) attribute.KeyValue {
	return attribute.Bool(AttrPending, p)
}

func Connection(id string) attribute.KeyValue {
	return attribute.String(AttrConnection, id)
}

func PortNo(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrPortNo, int64(n))
}

func PortName(name string) attribute.KeyValue {
	return attribute.String(AttrPortName, name)
}

func PortType(typ string) attribute.KeyValue {
	return attribute.String(AttrPortType, typ)
}

// StartControlSpan starts the span covering one control call. Family and
// command are added by the caller once the request has been decoded.
func StartControlSpan(ctx context.Context, devOp string, pid uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{DevOp(devOp), PID(pid)}, attrs...)
	return StartSpan(ctx, SpanControl, trace.WithAttributes(all...))
}

// AnnotateCall adds what decoding the request revealed to the span in
// ctx: the family and command it addresses, its sequence number and the
// datapath index it declared.
func AnnotateCall(ctx context.Context, family, command string, seq uint32, dpIndex int32) {
	trace.SpanFromContext(ctx).SetAttributes(
		Family(family),
		Command(command),
		Seq(seq),
		DpIfIndex(dpIndex),
	)
}

// AnnotatePort records the port a vport command acted on.
func AnnotatePort(ctx context.Context, no uint32, name, typ string) {
	trace.SpanFromContext(ctx).SetAttributes(PortNo(no), PortName(name), PortType(typ))
}

// StartFrameSpan starts a span for one transport frame.
func StartFrameSpan(ctx context.Context, connID string, tag uint32) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanFrame,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(Connection(connID), attribute.Int64("transport.tag", int64(tag))),
	)
}
