package netlink

import "fmt"

// ErrorCode is a protocol-level error carried inside an error reply. It is
// distinct from the transport status of the control call: a call can
// complete successfully while its reply reports one of these codes.
type ErrorCode int32

const (
	ErrorNone    ErrorCode = 0
	ErrorNoEnt   ErrorCode = 2
	ErrorNoMem   ErrorCode = 12
	ErrorExist   ErrorCode = 17
	ErrorNoDev   ErrorCode = 19
	ErrorInval   ErrorCode = 22
	ErrorMsgSize ErrorCode = 90
	ErrorNotSupp ErrorCode = 95
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "success"
	case ErrorNoEnt:
		return "no such entry"
	case ErrorNoMem:
		return "out of memory"
	case ErrorExist:
		return "already exists"
	case ErrorNoDev:
		return "no such device"
	case ErrorInval:
		return "invalid argument"
	case ErrorMsgSize:
		return "message too long"
	case ErrorNotSupp:
		return "not supported"
	default:
		return fmt.Sprintf("error %d", int32(c))
	}
}
