package pl2303

// ModemStatus holds the decoded modem status bits from an interrupt-in
// transfer.
type ModemStatus struct {
	// CTS is the clear-to-send line state.
	CTS bool
	// DSR is the data-set-ready line state.
	DSR bool
	// RI is the ring-indicator line state.
	RI bool
	// DCD is the data-carrier-detect line state.
	DCD bool
}

// Modem status bit positions within the status byte.
const (
	modemStatusCTS = 0x80
	modemStatusDSR = 0x02
	modemStatusRI  = 0x08
	modemStatusDCD = 0x01

	// modemStatusIndex is the offset of the status byte within the
	// interrupt-in payload.
	modemStatusIndex = 8
)

// ParseModemStatus decodes the raw interrupt-in payload delivered to a
// StatusHandler. It returns false if the payload is too short to carry a
// status byte.
func ParseModemStatus(payload []byte) (ModemStatus, bool) {
	if len(payload) <= modemStatusIndex {
		return ModemStatus{}, false
	}

	b := payload[modemStatusIndex]
	return ModemStatus{
		CTS: b&modemStatusCTS != 0,
		DSR: b&modemStatusDSR != 0,
		RI:  b&modemStatusRI != 0,
		DCD: b&modemStatusDCD != 0,
	}, true
}
