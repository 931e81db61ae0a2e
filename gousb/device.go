package gousb

import (
	"context"
	"fmt"
	"time"

	libusb "github.com/google/gousb"

	"github.com/serialio/go-pl2303/usb"
)

// Device is a usb.Device backed by a libusb device.
type Device struct {
	ctx  *libusb.Context
	desc *libusb.DeviceDesc
	dev  *libusb.Device
}

var _ usb.Device = (*Device)(nil)

// Open opens the device recorded at enumeration time, identified by its bus
// number and address, and detaches a bound kernel driver if present.
func (d *Device) Open() error {
	if d.dev != nil {
		return nil
	}

	devs, err := d.ctx.OpenDevices(func(desc *libusb.DeviceDesc) bool {
		return desc.Bus == d.desc.Bus && desc.Address == d.desc.Address
	})
	if err != nil {
		for _, dev := range devs {
			dev.Close()
		}
		return fmt.Errorf("gousb: open device: %w", err)
	}
	if len(devs) == 0 {
		return usb.ErrDeviceNotFound
	}

	d.dev = devs[0]
	// a device can't be at two addresses at once, but be safe
	for _, dev := range devs[1:] {
		dev.Close()
	}

	if err := d.dev.SetAutoDetach(true); err != nil {
		_ = d.dev.Close()
		d.dev = nil
		return fmt.Errorf("gousb: set auto-detach: %w", err)
	}

	return nil
}

// Close closes the device handle.
func (d *Device) Close() error {
	if d.dev == nil {
		return nil
	}

	err := d.dev.Close()
	d.dev = nil
	if err != nil {
		return fmt.Errorf("gousb: close device: %w", err)
	}

	return nil
}

// Class returns the bDeviceClass value from the device descriptor.
func (d *Device) Class() uint8 {
	return uint8(d.desc.Class)
}

// MaxControlPacketSize returns the maximum packet size of endpoint 0.
func (d *Device) MaxControlPacketSize() int {
	return d.desc.MaxControlPacketSize
}

// NumInterfaces returns the number of interfaces in the device's first
// configuration.
func (d *Device) NumInterfaces() int {
	cfg, ok := d.firstConfig()
	if !ok {
		return 0
	}

	return len(cfg.Interfaces)
}

// Claim claims interface 0 of the device's first configuration.
func (d *Device) Claim() (usb.Interface, error) {
	if d.dev == nil {
		return nil, usb.ErrDeviceClosed
	}

	cfgDesc, ok := d.firstConfig()
	if !ok {
		return nil, fmt.Errorf("gousb: device has no configuration")
	}

	cfg, err := d.dev.Config(cfgDesc.Number)
	if err != nil {
		return nil, fmt.Errorf("gousb: select config %d: %w", cfgDesc.Number, err)
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		_ = cfg.Close()
		return nil, fmt.Errorf("gousb: claim interface: %w", err)
	}

	return &Interface{dev: d, cfg: cfg, intf: intf}, nil
}

// Control performs a control transfer on endpoint 0. A deadline on ctx is
// translated into libusb's control timeout.
func (d *Device) Control(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error) {
	if d.dev == nil {
		return 0, usb.ErrDeviceClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		d.dev.ControlTimeout = time.Until(deadline)
	}

	n, err := d.dev.Control(reqType, request, value, index, data)
	if err != nil {
		return n, usb.NewTransferError("control", err)
	}

	return n, nil
}

// firstConfig returns the configuration descriptor with the lowest number.
// PL2303 devices expose a single configuration, numbered 1.
func (d *Device) firstConfig() (libusb.ConfigDesc, bool) {
	if cfg, ok := d.desc.Configs[1]; ok {
		return cfg, true
	}

	best := -1
	var found libusb.ConfigDesc
	for num, cfg := range d.desc.Configs {
		if best < 0 || num < best {
			best = num
			found = cfg
		}
	}

	return found, best >= 0
}

// Interface is a usb.Interface backed by a claimed libusb interface.
type Interface struct {
	dev  *Device
	cfg  *libusb.Config
	intf *libusb.Interface
}

var _ usb.Interface = (*Interface)(nil)

// Endpoints returns descriptors of all endpoints of the interface.
func (i *Interface) Endpoints() []usb.EndpointDesc {
	descs := make([]usb.EndpointDesc, 0, len(i.intf.Setting.Endpoints))
	for _, ed := range i.intf.Setting.Endpoints {
		descs = append(descs, convertEndpointDesc(ed))
	}

	return descs
}

// Endpoint resolves the single endpoint with the given transfer type and
// direction and returns a handle to it.
func (i *Interface) Endpoint(tt usb.TransferType, dir usb.Direction) (usb.Endpoint, error) {
	desc, err := usb.FindEndpoint(i.Endpoints(), tt, dir)
	if err != nil {
		return nil, err
	}

	if dir == usb.DirectionIn {
		ep, err := i.intf.InEndpoint(desc.Number)
		if err != nil {
			return nil, fmt.Errorf("gousb: open in endpoint %d: %w", desc.Number, err)
		}
		return &endpoint{desc: desc, in: ep}, nil
	}

	ep, err := i.intf.OutEndpoint(desc.Number)
	if err != nil {
		return nil, fmt.Errorf("gousb: open out endpoint %d: %w", desc.Number, err)
	}
	return &endpoint{desc: desc, out: ep}, nil
}

// Release releases the interface claim and the configuration. If reset is
// true the device is reset afterwards.
func (i *Interface) Release(reset bool) error {
	i.intf.Close()

	err := i.cfg.Close()

	if reset && i.dev.dev != nil {
		if rerr := i.dev.dev.Reset(); rerr != nil && err == nil {
			err = rerr
		}
	}

	if err != nil {
		return fmt.Errorf("gousb: release interface: %w", err)
	}

	return nil
}

func convertEndpointDesc(ed libusb.EndpointDesc) usb.EndpointDesc {
	desc := usb.EndpointDesc{
		Address:       uint8(ed.Address),
		Number:        ed.Number,
		MaxPacketSize: ed.MaxPacketSize,
	}

	if ed.Direction == libusb.EndpointDirectionIn {
		desc.Direction = usb.DirectionIn
	} else {
		desc.Direction = usb.DirectionOut
	}

	switch ed.TransferType {
	case libusb.TransferTypeControl:
		desc.TransferType = usb.TransferTypeControl
	case libusb.TransferTypeIsochronous:
		desc.TransferType = usb.TransferTypeIsochronous
	case libusb.TransferTypeBulk:
		desc.TransferType = usb.TransferTypeBulk
	case libusb.TransferTypeInterrupt:
		desc.TransferType = usb.TransferTypeInterrupt
	}

	return desc
}
