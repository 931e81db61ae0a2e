package pl2303

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a serial session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// BytesSent indicates the number of bytes transferred on the bulk-out endpoint.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes received on the bulk-in endpoint.
	BytesRecv atomic.Uint64

	// SendCount indicates the number of completed bulk-out transfers.
	SendCount atomic.Uint64
	// RecvCount indicates the number of completed bulk-in transfers.
	RecvCount atomic.Uint64
	// StatusCount indicates the number of completed interrupt-in transfers.
	StatusCount atomic.Uint64

	// TransferErrCount indicates the number of transfer errors from any
	// endpoint, including bring-up step failures.
	TransferErrCount atomic.Uint64
}

func (m *SessionMetrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n))
	m.SendCount.Add(1)
}

func (m *SessionMetrics) addBytesRecv(n int) {
	m.BytesRecv.Add(uint64(n))
	m.RecvCount.Add(1)
}

func (m *SessionMetrics) incStatusCount() {
	m.StatusCount.Add(1)
}

func (m *SessionMetrics) incTransferErrCount() {
	m.TransferErrCount.Add(1)
}
