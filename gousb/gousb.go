// Package gousb implements the go-pl2303 transport abstraction on top of
// github.com/google/gousb (libusb).
//
// A Transport wraps a libusb context and enumerates PL2303 devices without
// opening them; devices are opened lazily when the driver selects one by
// port index. The adapter detaches a bound kernel driver automatically on
// open, so the user-space driver can claim the interface.
package gousb

import (
	"fmt"

	libusb "github.com/google/gousb"

	"github.com/serialio/go-pl2303/usb"
)

// Transport is a usb.Transport backed by a libusb context.
type Transport struct {
	ctx *libusb.Context
}

var _ usb.Transport = (*Transport)(nil)

// NewTransport creates a Transport with a fresh libusb context.
//
// The caller must Close the transport after all sessions opened through it
// are closed.
func NewTransport() *Transport {
	return &Transport{ctx: libusb.NewContext()}
}

// Enumerate returns all attached devices matching the given vendor and
// product IDs, in libusb's enumeration order. The devices are not opened;
// each returned handle opens its device on Open.
func (t *Transport) Enumerate(vendorID, productID uint16) ([]usb.Device, error) {
	var found []*libusb.DeviceDesc

	// the matcher only records descriptors; returning false keeps every
	// device unopened
	_, err := t.ctx.OpenDevices(func(desc *libusb.DeviceDesc) bool {
		if uint16(desc.Vendor) == vendorID && uint16(desc.Product) == productID {
			found = append(found, desc)
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("gousb: enumerate: %w", err)
	}

	devices := make([]usb.Device, 0, len(found))
	for _, desc := range found {
		devices = append(devices, &Device{ctx: t.ctx, desc: desc})
	}

	return devices, nil
}

// Close releases the libusb context.
func (t *Transport) Close() error {
	return t.ctx.Close()
}
