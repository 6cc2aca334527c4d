package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds the request-scoped fields of one control call.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	PID       uint32    // Session id of the calling channel
	Family    string    // Family name (ovs_vport, ovs_flow, ...)
	Command   string    // Command name within the family
	DevOp     string    // Device operation: transact, write, read, ...
	Seq       uint32    // Netlink sequence number of the request
	DpIndex   int32     // Datapath index the request declared
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for a call on session pid.
func NewLogContext(pid uint32) *LogContext {
	return &LogContext{
		PID:       pid,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithCommand returns a copy with the family and command names set.
func (lc *LogContext) WithCommand(family, command string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Family = family
		clone.Command = command
	}
	return clone
}

// WithMessage returns a copy carrying the decoded message's sequence
// number and datapath index.
func (lc *LogContext) WithMessage(seq uint32, dpIndex int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Seq = seq
		clone.DpIndex = dpIndex
	}
	return clone
}

// WithDevOp returns a copy with the device operation set.
func (lc *LogContext) WithDevOp(devOp string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.DevOp = devOp
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// appendFields prepends lc's non-zero fields to args. A nil lc returns
// args unchanged.
func (lc *LogContext) appendFields(args []any) []any {
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 16+len(args))
	add := func(key string, v any, set bool) {
		if set {
			fields = append(fields, key, v)
		}
	}
	add(KeyTraceID, lc.TraceID, lc.TraceID != "")
	add(KeySpanID, lc.SpanID, lc.SpanID != "")
	add(KeyPID, lc.PID, lc.PID != 0)
	add(KeyFamily, lc.Family, lc.Family != "")
	add(KeyCommand, lc.Command, lc.Command != "")
	add(KeyDevOp, lc.DevOp, lc.DevOp != "")
	add(KeySeq, lc.Seq, lc.Seq != 0)
	add(KeyMsgDp, lc.DpIndex, lc.DpIndex != 0)
	return append(fields, args...)
}
