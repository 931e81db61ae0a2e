package pl2303

import "errors"

// Construction-time precondition errors. These surface synchronously from
// Open; no session is produced when one of them is returned.
var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("pl2303: config is nil")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("pl2303: transport is nil")

	// ErrUnsupportedDeviceClass indicates that the selected device reports
	// the communications device class, which marks a PL2303 variant this
	// driver does not handle.
	ErrUnsupportedDeviceClass = errors.New("pl2303: unsupported device class")

	// ErrUnsupportedPacketSize indicates that the selected device's control
	// packet size does not match the HX chip variant.
	ErrUnsupportedPacketSize = errors.New("pl2303: unexpected control packet size, not an HX variant")

	// ErrUnexpectedInterfaceCount indicates that the selected device does not
	// expose exactly one USB interface.
	ErrUnexpectedInterfaceCount = errors.New("pl2303: device does not have exactly one interface")
)

// Baud rate negotiation errors.
var (
	// ErrInvalidBaudRate indicates that a non-positive baud rate was
	// requested.
	ErrInvalidBaudRate = errors.New("pl2303: baud rate must be positive")

	// ErrBaudRateTooHigh indicates a requested baud rate above the limit of
	// the standard request path. Rates above the limit are never clamped;
	// they fail negotiation outright.
	ErrBaudRateTooHigh = errors.New("pl2303: baud rate exceeds 115200")
)

// Session lifecycle errors.
var (
	// ErrNotReady indicates that Send was called before the bring-up
	// sequence completed.
	ErrNotReady = errors.New("pl2303: session is not ready")

	// ErrSessionClosed indicates an operation on a closed session.
	ErrSessionClosed = errors.New("pl2303: session closed")

	// ErrBringupFailed indicates that a bring-up step failed and the session
	// will never become ready. The step error is attached via wrapping.
	ErrBringupFailed = errors.New("pl2303: bring-up failed")

	// ErrInvalidTransition is returned when an attempt is made to transition
	// the session state to an invalid state.
	ErrInvalidTransition = errors.New("pl2303: invalid state transition")

	// ErrCloseTimeout indicates that session tasks did not terminate within
	// the configured close timeout.
	ErrCloseTimeout = errors.New("pl2303: close timeout")
)
