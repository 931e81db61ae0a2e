package usb

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound indicates that enumeration produced no device at the
	// requested index.
	ErrDeviceNotFound = errors.New("usb: device not found")

	// ErrEndpointNotFound indicates that no endpoint matches the requested
	// transfer type and direction.
	ErrEndpointNotFound = errors.New("usb: no matching endpoint")

	// ErrEndpointAmbiguous indicates that more than one endpoint matches the
	// requested transfer type and direction.
	ErrEndpointAmbiguous = errors.New("usb: multiple matching endpoints")

	// ErrDeviceClosed indicates an operation on a closed device handle.
	ErrDeviceClosed = errors.New("usb: device closed")
)

// TransferError wraps a host-stack error from a control, bulk or interrupt
// transfer together with the operation that produced it.
type TransferError struct {
	// Op names the failed operation, e.g. "control", "bulk-out".
	Op string
	// Err is the underlying host-stack error.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("usb: %s transfer failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying host-stack error.
func (e *TransferError) Unwrap() error { return e.Err }

// NewTransferError creates a TransferError for the given operation.
func NewTransferError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}
