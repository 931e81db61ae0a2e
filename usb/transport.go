package usb

import (
	"context"
)

// TransferType represents a USB endpoint transfer type.
type TransferType uint8

// USB endpoint transfer types.
const (
	TransferTypeControl TransferType = iota
	TransferTypeIsochronous
	TransferTypeBulk
	TransferTypeInterrupt
)

// String returns string representation of the transfer type.
func (t TransferType) String() string {
	switch t {
	case TransferTypeControl:
		return "control"
	case TransferTypeIsochronous:
		return "isochronous"
	case TransferTypeBulk:
		return "bulk"
	case TransferTypeInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Direction represents a USB endpoint direction relative to the host.
type Direction uint8

// USB endpoint directions.
const (
	DirectionOut Direction = iota
	DirectionIn
)

// String returns string representation of the direction.
func (d Direction) String() string {
	if d == DirectionIn {
		return "in"
	}
	return "out"
}

// EndpointDesc describes a single endpoint of a claimed interface.
type EndpointDesc struct {
	// Address is the raw endpoint address, including the direction bit.
	Address uint8
	// Number is the endpoint number without the direction bit.
	Number int
	// Direction is the endpoint direction relative to the host.
	Direction Direction
	// TransferType is the endpoint transfer type.
	TransferType TransferType
	// MaxPacketSize is the maximum transfer size of a single packet.
	MaxPacketSize int
}

// Transport abstracts the USB host stack used to reach PL2303 devices.
//
// Implementations must return devices in a stable order across calls within
// a process run, so that a port index selects the same physical device.
type Transport interface {
	// Enumerate returns all attached devices matching the given vendor and
	// product IDs, in a stable order.
	Enumerate(vendorID, productID uint16) ([]Device, error)
}

// Device represents a single USB device obtained from a Transport.
type Device interface {
	// Open prepares the device for use. It must be called before Claim or
	// Control.
	Open() error

	// Close releases the device handle. The device must not be used after
	// Close returns.
	Close() error

	// Class returns the bDeviceClass value from the device descriptor.
	Class() uint8

	// MaxControlPacketSize returns the maximum packet size of endpoint 0.
	MaxControlPacketSize() int

	// NumInterfaces returns the number of interfaces in the active
	// configuration.
	NumInterfaces() int

	// Claim claims the device's single interface for exclusive use and
	// returns a handle to it.
	Claim() (Interface, error)

	// Control performs a control transfer on endpoint 0.
	//
	// For device-to-host transfers (reqType bit 7 set) the response is read
	// into data and the number of bytes received is returned. For
	// host-to-device transfers data is the payload, which may be nil.
	Control(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error)
}

// Interface represents a claimed USB interface.
type Interface interface {
	// Endpoints returns descriptors of all endpoints of the interface.
	Endpoints() []EndpointDesc

	// Endpoint resolves the endpoint with the given transfer type and
	// direction and returns a handle to it.
	//
	// It returns ErrEndpointNotFound if no endpoint matches, or
	// ErrEndpointAmbiguous if more than one does.
	Endpoint(tt TransferType, dir Direction) (Endpoint, error)

	// Release releases the interface claim. If reset is true the device is
	// reset as part of the release.
	Release(reset bool) error
}

// Endpoint represents a single bulk or interrupt endpoint of a claimed
// interface.
type Endpoint interface {
	// Desc returns the endpoint descriptor.
	Desc() EndpointDesc

	// Read reads up to len(buf) bytes from an in endpoint.
	Read(ctx context.Context, buf []byte) (int, error)

	// Write writes buf to an out endpoint.
	Write(ctx context.Context, buf []byte) (int, error)
}

// FindEndpoint selects the single endpoint descriptor matching the given
// transfer type and direction.
//
// It returns ErrEndpointNotFound if no descriptor matches, or
// ErrEndpointAmbiguous if more than one does. Both cases are configuration
// errors: the PL2303 interface layout has exactly one endpoint per required
// (type, direction) pair.
func FindEndpoint(descs []EndpointDesc, tt TransferType, dir Direction) (EndpointDesc, error) {
	var found EndpointDesc
	count := 0
	for _, desc := range descs {
		if desc.TransferType == tt && desc.Direction == dir {
			found = desc
			count++
		}
	}

	switch count {
	case 0:
		return EndpointDesc{}, ErrEndpointNotFound
	case 1:
		return found, nil
	default:
		return EndpointDesc{}, ErrEndpointAmbiguous
	}
}
