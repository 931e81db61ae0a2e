// Package usb defines the transport abstraction the go-pl2303 driver is built on.
//
// The driver itself never talks to a USB host stack directly. It consumes the
// Transport, Device, Interface and Endpoint interfaces defined here, which an
// adapter implements on top of a real host stack (see the gousb package for a
// libusb-backed adapter).
//
// The contract is intentionally small:
//   - Transport enumerates devices by vendor/product ID in a stable order.
//   - Device supports open/close, control transfers and interface claiming.
//   - Interface resolves endpoints by (transfer type, direction), requiring
//     exactly one match, and releases the claim on teardown.
//   - Endpoint moves bytes for bulk and interrupt transfers.
//
// The package also provides the TaskManager used to run endpoint polling and
// event dispatch goroutines with structured lifecycle management.
package usb
