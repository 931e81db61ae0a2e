package pl2303

// USB identity of the PL2303 family.
const (
	// VendorID is the Prolific Technology vendor ID.
	VendorID uint16 = 0x067b
	// ProductID is the PL2303 product ID.
	ProductID uint16 = 0x2303
)

// Control transfer codes of the vendor register protocol and the line
// configuration requests. These values are fixed by the chip and must be
// reproduced bit-exactly.
const (
	// vendorReadRequestType is the bmRequestType of a device-to-host vendor
	// register read.
	vendorReadRequestType uint8 = 0xc0
	// vendorWriteRequestType is the bmRequestType of a host-to-device vendor
	// register write.
	vendorWriteRequestType uint8 = 0x40
	// vendorRequest is the bRequest code shared by vendor register reads and
	// writes.
	vendorRequest uint8 = 0x01

	// getLineRequestType/getLineRequest read the 7-byte line configuration
	// block from the chip.
	getLineRequestType uint8 = 0xa1
	getLineRequest     uint8 = 0x21

	// setLineRequestType/setLineRequest write the 7-byte line configuration
	// block back to the chip.
	setLineRequestType uint8 = 0x21
	setLineRequest     uint8 = 0x20
)

// Vendor register addresses used by the bring-up sequence.
const (
	regStatusA uint16 = 0x8484
	regStatusB uint16 = 0x8383
	regSetupA  uint16 = 0x0404

	regFlowControl uint16 = 0x0000
	regSetup1      uint16 = 0x0001
	regSetup2      uint16 = 0x0002
	regResetRxPipe uint16 = 0x0008
	regResetTxPipe uint16 = 0x0009
)

const (
	// commDeviceClass marks the communications-class PL2303 variant, which
	// speaks a different protocol and is not handled by this driver.
	commDeviceClass uint8 = 0x02

	// hxMaxControlPacketSize is the endpoint 0 maximum packet size of the HX
	// chip variant, the only one this driver supports.
	hxMaxControlPacketSize = 64

	// lineConfigSize is the size of the line configuration block.
	lineConfigSize = 7
)
