// Package pl2303 implements a user-space driver for the Prolific PL2303
// family of USB-to-serial bridge chips.
//
// The driver brings the chip from "just opened" to "ready to stream" by
// executing the vendor-specific register initialization sequence, negotiating
// the requested baud rate against the chip's fixed table of supported rates,
// and writing the line configuration (8 data bits, no parity, 1 stop bit).
// Once ready, it exposes the chip's three endpoints as a byte-stream session:
// bulk-out for transmitted data, bulk-in for received data and interrupt-in
// for modem status updates.
//
// A Session is created with Open, which claims the device's single interface,
// resolves the endpoint triple and starts the bring-up sequence
// asynchronously. Consumers subscribe to typed notifications:
//
//	sess, err := pl2303.Open(ctx, transport, cfg)
//	if err != nil { ... }
//	sess.OnData(func(p []byte) { ... })
//	sess.OnStatus(func(status []byte) { ... })
//	sess.OnError(func(err error) { ... })
//	if err := sess.WaitReady(ctx); err != nil { ... }
//	sess.Send([]byte("AT\r\n"))
//
// Status notifications may be observed before the session is ready; modem
// status is available as soon as interrupt polling starts, which is
// deliberately decoupled from bring-up completion.
//
// The transport argument is any implementation of usb.Transport; the gousb
// package provides one backed by libusb.
package pl2303
