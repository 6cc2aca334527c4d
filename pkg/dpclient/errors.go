package dpclient

import (
	"errors"
	"fmt"

	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
)

// ErrClosed is returned by calls made after the connection went away.
var ErrClosed = errors.New("dpclient: connection closed")

// ProtocolError is an error reply from a command handler. The control call
// itself succeeded.
type ProtocolError struct {
	Family string
	Cmd    uint8
	Code   netlink.ErrorCode
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s cmd %d: %s", e.Family, e.Cmd, e.Code)
}

// IsNotFound reports whether the object did not exist.
func (e *ProtocolError) IsNotFound() bool {
	return e.Code == netlink.ErrorNoDev || e.Code == netlink.ErrorNoEnt
}

// IsConflict reports whether the object already existed.
func (e *ProtocolError) IsConflict() bool {
	return e.Code == netlink.ErrorExist
}

// StatusError is a control call that did not complete: the request was
// rejected before or while it was dispatched.
type StatusError struct {
	Status control.Status
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return "control call failed: " + e.Status.String()
}

// IsNotFound reports whether err is a ProtocolError for a missing object.
func IsNotFound(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.IsNotFound()
}

// StatusOf returns the transport status carried by err, or StatusSuccess
// when err is not a StatusError.
func StatusOf(err error) control.Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return control.StatusSuccess
}
