package pl2303

import "encoding/binary"

// supportedBaudRates is the fixed ascending table of rates the chip accepts.
// Entries above MaxRequestBaudRate exist in chip firmware but are reachable
// only through a separate high-speed path that this driver does not use.
var supportedBaudRates = []int{
	75, 150, 300, 600, 1200, 1800, 2400, 3600, 4800, 7200, 9600,
	14400, 19200, 28800, 38400, 57600, 115200, 230400, 460800, 614400,
	921600, 1228800, 2457600, 3000000, 6000000,
}

// MaxRequestBaudRate is the highest baud rate accepted by the standard
// request path.
const MaxRequestBaudRate = 115200

// NegotiateBaudRate quantizes the requested rate to the nearest entry of the
// chip's supported rate table.
//
// When two table entries are equidistant from the requested rate, the lower
// one wins: the table is iterated in ascending order and a later entry only
// replaces the current candidate on a strictly smaller distance.
//
// Requested rates above MaxRequestBaudRate fail with ErrBaudRateTooHigh;
// they are never clamped.
func NegotiateBaudRate(requested int) (int, error) {
	if requested <= 0 {
		return 0, ErrInvalidBaudRate
	}
	if requested > MaxRequestBaudRate {
		return 0, ErrBaudRateTooHigh
	}

	best := supportedBaudRates[0]
	bestDist := absDiff(requested, best)
	for _, rate := range supportedBaudRates[1:] {
		if d := absDiff(requested, rate); d < bestDist {
			best = rate
			bestDist = d
		}
	}

	return best, nil
}

// SupportedBaudRates returns a copy of the chip's rate table.
func SupportedBaudRates() []int {
	rates := make([]int, len(supportedBaudRates))
	copy(rates, supportedBaudRates)
	return rates
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// encodeLineConfig mutates a 7-byte line configuration block in place:
// bytes 0..3 carry the baud rate little-endian, byte 4 the stop bit count
// encoding (0 = one stop bit), byte 5 the parity (0 = none) and byte 6 the
// number of data bits.
func encodeLineConfig(block []byte, rate int) {
	_ = block[lineConfigSize-1]
	binary.LittleEndian.PutUint32(block[0:4], uint32(rate))
	block[4] = 0 // one stop bit
	block[5] = 0 // no parity
	block[6] = 8 // eight data bits
}
