package gousb

import (
	"context"
	"fmt"

	libusb "github.com/google/gousb"

	"github.com/serialio/go-pl2303/usb"
)

// endpoint is a usb.Endpoint backed by a libusb in or out endpoint.
type endpoint struct {
	desc usb.EndpointDesc
	in   *libusb.InEndpoint
	out  *libusb.OutEndpoint
}

var _ usb.Endpoint = (*endpoint)(nil)

func (e *endpoint) Desc() usb.EndpointDesc {
	return e.desc
}

func (e *endpoint) Read(ctx context.Context, buf []byte) (int, error) {
	if e.in == nil {
		return 0, fmt.Errorf("gousb: endpoint 0x%02x is not an in endpoint", e.desc.Address)
	}

	n, err := e.in.ReadContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, usb.NewTransferError(e.opName(), err)
	}

	return n, nil
}

func (e *endpoint) Write(ctx context.Context, buf []byte) (int, error) {
	if e.out == nil {
		return 0, fmt.Errorf("gousb: endpoint 0x%02x is not an out endpoint", e.desc.Address)
	}

	n, err := e.out.WriteContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, usb.NewTransferError(e.opName(), err)
	}

	return n, nil
}

func (e *endpoint) opName() string {
	return e.desc.TransferType.String() + "-" + e.desc.Direction.String()
}
