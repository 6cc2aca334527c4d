package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently so
// control-plane logs can be aggregated and queried by session, family and
// command.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Control Calls
	// ========================================================================
	KeyPID       = "pid"        // Session id of the calling channel
	KeyCookie    = "cookie"     // Session registry slot
	KeyFamily    = "family"     // Family name
	KeyCommand   = "command"    // Command name
	KeyDevOp     = "devop"      // Device operation
	KeyCode      = "code"       // Raw control code
	KeyStatus    = "status"     // Transport status
	KeyErrorCode = "error_code" // Protocol error code carried in an error reply
	KeySeq       = "seq"        // Netlink sequence number
	KeyMsgDp     = "msg_dp"     // dp_ifindex declared by the request
	KeyReplyLen  = "reply_len"  // Bytes written to the output buffer

	// ========================================================================
	// Datapath Objects
	// ========================================================================
	KeyDatapath  = "datapath"
	KeyDpIndex   = "dp_index"
	KeyPortNo    = "port_no"
	KeyPortName  = "port_name"
	KeyPortType  = "port_type"
	KeyUpcallPID = "upcall_pid"
	KeyFlows     = "flows"
	KeyQueue     = "queue" // events or packets
	KeyDepth     = "depth"
	KeyDropped   = "dropped"

	// ========================================================================
	// Transport
	// ========================================================================
	KeyConnectionID = "connection_id"
	KeySocket       = "socket"
	KeyFrameTag     = "tag"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
)

// PID returns a slog.Attr for a session id.
func PID(pid uint32) slog.Attr {
	return slog.Uint64(KeyPID, uint64(pid))
}

// Family returns a slog.Attr for a family name.
func Family(name string) slog.Attr {
	return slog.String(KeyFamily, name)
}

// Command returns a slog.Attr for a command name.
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// DevOp returns a slog.Attr for a device operation.
func DevOp(op string) slog.Attr {
	return slog.String(KeyDevOp, op)
}

// Status returns a slog.Attr for a transport status.
func Status(s fmt.Stringer) slog.Attr {
	return slog.String(KeyStatus, s.String())
}

// ErrorCode returns a slog.Attr for a protocol error code.
func ErrorCode(code int32) slog.Attr {
	return slog.Int(KeyErrorCode, int(code))
}

// PortNo returns a slog.Attr for a port number.
func PortNo(n uint32) slog.Attr {
	return slog.Uint64(KeyPortNo, uint64(n))
}

// PortName returns a slog.Attr for a port name.
func PortName(name string) slog.Attr {
	return slog.String(KeyPortName, name)
}

// ConnectionID returns a slog.Attr for a transport connection id.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// DurationMs returns a slog.Attr for an operation duration.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or an empty attr when err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
