package pl2303

import (
	"context"
	"sync"

	"github.com/serialio/go-pl2303/usb"
)

// controlOp records one control transfer issued against a fake device.
type controlOp struct {
	reqType uint8
	request uint8
	value   uint16
	index   uint16
	length  int
	payload []byte
}

// fakeTransport implements usb.Transport over a fixed device list.
type fakeTransport struct {
	devices []usb.Device
	enumErr error
}

func (t *fakeTransport) Enumerate(vendorID, productID uint16) ([]usb.Device, error) {
	if t.enumErr != nil {
		return nil, t.enumErr
	}
	return t.devices, nil
}

// fakeDevice implements usb.Device with a scriptable control transfer log.
type fakeDevice struct {
	mu sync.Mutex

	class     uint8
	maxPacket int
	numIfaces int

	opened bool
	closed bool

	controlOps []controlOp

	// controlErrAt fails the Nth control transfer (1-based); 0 disables.
	controlErrAt int
	controlErr   error

	// controlGate, when non-nil, blocks the first control transfer until
	// the channel is closed. It lets tests observe the session mid-bringup.
	controlGate chan struct{}

	lineTemplate [lineConfigSize]byte

	intf     *fakeInterface
	claimErr error
}

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		maxPacket: 64,
		numIfaces: 1,
	}
	d.intf = newFakeInterface()
	return d
}

func (d *fakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = true
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDevice) Class() uint8              { return d.class }
func (d *fakeDevice) MaxControlPacketSize() int { return d.maxPacket }
func (d *fakeDevice) NumInterfaces() int        { return d.numIfaces }

func (d *fakeDevice) Claim() (usb.Interface, error) {
	if d.claimErr != nil {
		return nil, d.claimErr
	}
	return d.intf, nil
}

func (d *fakeDevice) Control(ctx context.Context, reqType, request uint8, value, index uint16, data []byte) (int, error) {
	d.mu.Lock()
	gate := d.controlGate
	d.controlGate = nil
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	op := controlOp{
		reqType: reqType,
		request: request,
		value:   value,
		index:   index,
		length:  len(data),
	}
	if reqType == setLineRequestType {
		op.payload = append([]byte(nil), data...)
	}
	d.controlOps = append(d.controlOps, op)

	if d.controlErrAt > 0 && len(d.controlOps) == d.controlErrAt {
		return 0, d.controlErr
	}

	switch reqType {
	case vendorReadRequestType:
		if len(data) > 0 {
			data[0] = 0xaa
		}
		return 1, nil
	case getLineRequestType:
		return copy(data, d.lineTemplate[:]), nil
	default:
		return len(data), nil
	}
}

func (d *fakeDevice) ops() []controlOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]controlOp(nil), d.controlOps...)
}

// fakeInterface implements usb.Interface with the PL2303 endpoint layout.
type fakeInterface struct {
	mu        sync.Mutex
	endpoints []*fakeEndpoint

	released  bool
	resetFlag bool
}

func newFakeInterface() *fakeInterface {
	return &fakeInterface{
		endpoints: []*fakeEndpoint{
			newFakeEndpoint(usb.EndpointDesc{
				Address: 0x81, Number: 1,
				Direction: usb.DirectionIn, TransferType: usb.TransferTypeInterrupt,
				MaxPacketSize: 10,
			}),
			newFakeEndpoint(usb.EndpointDesc{
				Address: 0x82, Number: 2,
				Direction: usb.DirectionIn, TransferType: usb.TransferTypeBulk,
				MaxPacketSize: 64,
			}),
			newFakeEndpoint(usb.EndpointDesc{
				Address: 0x02, Number: 2,
				Direction: usb.DirectionOut, TransferType: usb.TransferTypeBulk,
				MaxPacketSize: 64,
			}),
		},
	}
}

func (i *fakeInterface) Endpoints() []usb.EndpointDesc {
	descs := make([]usb.EndpointDesc, 0, len(i.endpoints))
	for _, ep := range i.endpoints {
		descs = append(descs, ep.desc)
	}
	return descs
}

func (i *fakeInterface) Endpoint(tt usb.TransferType, dir usb.Direction) (usb.Endpoint, error) {
	if _, err := usb.FindEndpoint(i.Endpoints(), tt, dir); err != nil {
		return nil, err
	}
	for _, ep := range i.endpoints {
		if ep.desc.TransferType == tt && ep.desc.Direction == dir {
			return ep, nil
		}
	}
	return nil, usb.ErrEndpointNotFound
}

func (i *fakeInterface) Release(reset bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.released = true
	i.resetFlag = reset
	return nil
}

func (i *fakeInterface) releaseState() (released, reset bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.released, i.resetFlag
}

// dropEndpoint removes all endpoints matching the pair, to trigger the
// missing-endpoint precondition.
func (i *fakeInterface) dropEndpoint(tt usb.TransferType, dir usb.Direction) {
	kept := i.endpoints[:0]
	for _, ep := range i.endpoints {
		if ep.desc.TransferType != tt || ep.desc.Direction != dir {
			kept = append(kept, ep)
		}
	}
	i.endpoints = kept
}

// addEndpoint appends an endpoint, to trigger the duplicate-endpoint
// precondition.
func (i *fakeInterface) addEndpoint(desc usb.EndpointDesc) {
	i.endpoints = append(i.endpoints, newFakeEndpoint(desc))
}

// fakeEndpoint implements usb.Endpoint. Reads block until a payload is
// pushed with push or the context is done; writes are recorded.
type fakeEndpoint struct {
	desc   usb.EndpointDesc
	readCh chan []byte

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
}

func newFakeEndpoint(desc usb.EndpointDesc) *fakeEndpoint {
	return &fakeEndpoint{desc: desc, readCh: make(chan []byte, 8)}
}

func (e *fakeEndpoint) Desc() usb.EndpointDesc { return e.desc }

func (e *fakeEndpoint) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case p := <-e.readCh:
		return copy(buf, p), nil
	}
}

func (e *fakeEndpoint) Write(ctx context.Context, buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writeErr != nil {
		return 0, e.writeErr
	}

	e.writes = append(e.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (e *fakeEndpoint) setWriteErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeErr = err
}

func (e *fakeEndpoint) push(p []byte) {
	e.readCh <- p
}

func (e *fakeEndpoint) recorded() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.writes...)
}

func (i *fakeInterface) endpoint(tt usb.TransferType, dir usb.Direction) *fakeEndpoint {
	for _, ep := range i.endpoints {
		if ep.desc.TransferType == tt && ep.desc.Direction == dir {
			return ep
		}
	}
	return nil
}
