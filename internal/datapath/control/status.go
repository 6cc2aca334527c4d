package control

import (
	"context"
	"errors"
	"fmt"
)

// Status is the transport-level outcome of a control call. It tells the
// caller whether the call completed and its buffers were usable; the
// outcome of the requested operation itself travels as a protocol error
// inside the reply. Values follow the NT_STATUS numbering the control
// device has always used.
type Status uint32

const (
	StatusSuccess               Status = 0x00000000
	StatusPending               Status = 0x00000103
	StatusInvalidParameter      Status = 0xC000000D
	StatusInvalidDeviceRequest  Status = 0xC0000010
	StatusInsufficientResources Status = 0xC000009A
	StatusDeviceNotReady        Status = 0xC00000A3
	StatusCanceled              Status = 0xC0000120
	StatusInvalidDeviceState    Status = 0xC0000184
	StatusInvalidBufferSize     Status = 0xC0000206
	StatusResourceInUse         Status = 0xC0000708
	StatusInvalidLength         Status = 0xC0231014
)

// String returns a short lowercase name, used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	case StatusInvalidParameter:
		return "invalid_parameter"
	case StatusInvalidDeviceRequest:
		return "invalid_device_request"
	case StatusInsufficientResources:
		return "insufficient_resources"
	case StatusDeviceNotReady:
		return "device_not_ready"
	case StatusCanceled:
		return "canceled"
	case StatusInvalidDeviceState:
		return "invalid_device_state"
	case StatusInvalidBufferSize:
		return "invalid_buffer_size"
	case StatusResourceInUse:
		return "resource_in_use"
	case StatusInvalidLength:
		return "invalid_length"
	default:
		return fmt.Sprintf("status_%#08x", uint32(s))
	}
}

// StatusError is returned by DeviceControl for any status other than
// success.
type StatusError struct {
	Status Status
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Reason
}

// Is lets errors.Is match on the status alone.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Reason == "" && t.Status == e.Status
}

func statusErrorf(s Status, format string, args ...any) *StatusError {
	return &StatusError{Status: s, Reason: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrInvalidParameter      = &StatusError{Status: StatusInvalidParameter}
	ErrInvalidDeviceRequest  = &StatusError{Status: StatusInvalidDeviceRequest}
	ErrInsufficientResources = &StatusError{Status: StatusInsufficientResources}
	ErrDeviceNotReady        = &StatusError{Status: StatusDeviceNotReady}
	ErrCanceled              = &StatusError{Status: StatusCanceled}
	ErrInvalidDeviceState    = &StatusError{Status: StatusInvalidDeviceState}
	ErrInvalidBufferSize     = &StatusError{Status: StatusInvalidBufferSize}
	ErrResourceInUse         = &StatusError{Status: StatusResourceInUse}
	ErrInvalidLength         = &StatusError{Status: StatusInvalidLength}
)

// StatusOf maps an error returned by DeviceControl onto the status sent to
// the caller. Context errors map to canceled; anything unrecognized is an
// invalid parameter.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StatusCanceled
	}
	return StatusInvalidParameter
}
