package pl2303

import (
	"context"
	"fmt"
)

// vendorRead reads one byte from a chip-internal vendor register.
//
// It issues a device-to-host control transfer with the vendor request type;
// the register address travels in the wValue field.
func (s *Session) vendorRead(ctx context.Context, reg uint16) (byte, error) {
	buf := make([]byte, 1)
	n, err := s.dev.Control(ctx, vendorReadRequestType, vendorRequest, reg, 0, buf)
	if err != nil {
		return 0, fmt.Errorf("pl2303: vendor read 0x%04x: %w", reg, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("pl2303: vendor read 0x%04x: short response (%d bytes)", reg, n)
	}

	s.logger.Debug("vendor read", "reg", fmt.Sprintf("0x%04x", reg), "value", fmt.Sprintf("0x%02x", buf[0]))

	return buf[0], nil
}

// vendorWrite writes a value to a chip-internal vendor register.
//
// It issues a host-to-device control transfer with the vendor request type
// and no payload; the register address travels in the wValue field and the
// value in the wIndex field.
func (s *Session) vendorWrite(ctx context.Context, reg, value uint16) error {
	_, err := s.dev.Control(ctx, vendorWriteRequestType, vendorRequest, reg, value, nil)
	if err != nil {
		return fmt.Errorf("pl2303: vendor write 0x%04x=0x%02x: %w", reg, value, err)
	}

	s.logger.Debug("vendor write", "reg", fmt.Sprintf("0x%04x", reg), "value", fmt.Sprintf("0x%02x", value))

	return nil
}

// readLineConfig reads the current 7-byte line configuration block from the chip.
func (s *Session) readLineConfig(ctx context.Context, block []byte) error {
	n, err := s.dev.Control(ctx, getLineRequestType, getLineRequest, 0, 0, block)
	if err != nil {
		return fmt.Errorf("pl2303: get line config: %w", err)
	}
	if n < lineConfigSize {
		return fmt.Errorf("pl2303: get line config: short response (%d bytes)", n)
	}

	return nil
}

// writeLineConfig writes a 7-byte line configuration block back to the chip.
func (s *Session) writeLineConfig(ctx context.Context, block []byte) error {
	if _, err := s.dev.Control(ctx, setLineRequestType, setLineRequest, 0, 0, block); err != nil {
		return fmt.Errorf("pl2303: set line config: %w", err)
	}

	return nil
}
