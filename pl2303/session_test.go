package pl2303

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/serialio/go-pl2303/usb"
)

func waitReady(t *testing.T, sess *Session) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sess.WaitReady(ctx))
}

func TestOpenNilArguments(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)

	_, err = Open(context.Background(), nil, cfg)
	require.ErrorIs(err, ErrTransportNil)

	_, err = Open(context.Background(), &fakeTransport{}, nil)
	require.ErrorIs(err, ErrConfigNil)
}

func TestOpenPortSelection(t *testing.T) {
	require := require.New(t)

	first := newFakeDevice()
	second := newFakeDevice()
	transport := &fakeTransport{devices: []usb.Device{first, second}}

	cfg, err := NewConfig(WithPort(1))
	require.NoError(err)

	sess, err := Open(context.Background(), transport, cfg)
	require.NoError(err)
	defer sess.Close()

	waitReady(t, sess)

	// the session talks to the second device only
	require.NotEmpty(second.ops())
	require.Empty(first.ops())
}

func TestOpenPortOutOfRange(t *testing.T) {
	require := require.New(t)

	transport := &fakeTransport{devices: []usb.Device{newFakeDevice(), newFakeDevice()}}

	cfg, err := NewConfig(WithPort(2))
	require.NoError(err)

	_, err = Open(context.Background(), transport, cfg)
	require.ErrorIs(err, usb.ErrDeviceNotFound)
}

func TestOpenNoDevices(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)

	_, err = Open(context.Background(), &fakeTransport{}, cfg)
	require.ErrorIs(err, usb.ErrDeviceNotFound)
}

func TestOpenEnumerateError(t *testing.T) {
	require := require.New(t)

	enumErr := errors.New("no bus access")
	cfg, err := NewConfig()
	require.NoError(err)

	_, err = Open(context.Background(), &fakeTransport{enumErr: enumErr}, cfg)
	require.ErrorIs(err, enumErr)
}

func TestOpenDevicePreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(dev *fakeDevice)
		wantErr error
	}{
		{
			name:    "communications class device",
			mutate:  func(dev *fakeDevice) { dev.class = commDeviceClass },
			wantErr: ErrUnsupportedDeviceClass,
		},
		{
			name:    "wrong control packet size",
			mutate:  func(dev *fakeDevice) { dev.maxPacket = 8 },
			wantErr: ErrUnsupportedPacketSize,
		},
		{
			name:    "multiple interfaces",
			mutate:  func(dev *fakeDevice) { dev.numIfaces = 2 },
			wantErr: ErrUnexpectedInterfaceCount,
		},
		{
			name: "missing bulk-in endpoint",
			mutate: func(dev *fakeDevice) {
				dev.intf.dropEndpoint(usb.TransferTypeBulk, usb.DirectionIn)
			},
			wantErr: usb.ErrEndpointNotFound,
		},
		{
			name: "missing interrupt-in endpoint",
			mutate: func(dev *fakeDevice) {
				dev.intf.dropEndpoint(usb.TransferTypeInterrupt, usb.DirectionIn)
			},
			wantErr: usb.ErrEndpointNotFound,
		},
		{
			name: "duplicate bulk-out endpoint",
			mutate: func(dev *fakeDevice) {
				dev.intf.addEndpoint(usb.EndpointDesc{
					Address: 0x03, Number: 3,
					Direction: usb.DirectionOut, TransferType: usb.TransferTypeBulk,
					MaxPacketSize: 64,
				})
			},
			wantErr: usb.ErrEndpointAmbiguous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			dev := newFakeDevice()
			tt.mutate(dev)

			cfg, err := NewConfig()
			require.NoError(err)

			_, err = Open(context.Background(), &fakeTransport{devices: []usb.Device{dev}}, cfg)
			require.ErrorIs(err, tt.wantErr)

			// the device handle never leaks past a failed open
			require.True(dev.isClosed())
		})
	}
}

func TestSendBeforeReady(t *testing.T) {
	require := require.New(t)

	// hold bring-up at its first control transfer
	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.controlGate = gate

	sess := openTestSession(t, dev)
	defer close(gate)

	require.Equal(OpeningState, sess.State())
	require.ErrorIs(sess.Send([]byte("too early")), ErrNotReady)
	require.Empty(dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionOut).recorded())
}

func TestSendAfterReady(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	require.NoError(sess.Send([]byte("hello")))
	require.NoError(sess.Send([]byte{0x00, 0xff, 0x10}))

	bulkOut := dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionOut)
	require.Eventually(func() bool {
		return len(bulkOut.recorded()) == 2
	}, time.Second, 5*time.Millisecond)

	writes := bulkOut.recorded()
	require.Equal([]byte("hello"), writes[0])
	require.Equal([]byte{0x00, 0xff, 0x10}, writes[1])

	require.Eventually(func() bool {
		return sess.Metrics().BytesSent.Load() == 8
	}, time.Second, 5*time.Millisecond)
}

func TestSendCopiesBuffer(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	buf := []byte("original")
	require.NoError(sess.Send(buf))
	copy(buf, "clobber!")

	bulkOut := dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionOut)
	require.Eventually(func() bool {
		writes := bulkOut.recorded()
		return len(writes) == 1 && bytes.Equal(writes[0], []byte("original"))
	}, time.Second, 5*time.Millisecond)
}

func TestSendTransferErrorKeepsSessionReady(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	errCh := make(chan error, 1)
	sess.OnError(func(err error) { errCh <- err })

	writeErr := errors.New("endpoint stall")
	dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionOut).setWriteErr(writeErr)

	require.NoError(sess.Send([]byte("doomed")))

	select {
	case err := <-errCh:
		require.ErrorIs(err, writeErr)
	case <-time.After(time.Second):
		t.Fatal("no error notification for failed transfer")
	}

	// a transfer failure does not tear the session down
	require.Equal(ReadyState, sess.State())
	require.Equal(uint64(1), sess.Metrics().TransferErrCount.Load())
}

func TestSendAfterClose(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	require.NoError(sess.Close())
	require.ErrorIs(sess.Send([]byte("late")), ErrSessionClosed)
}

func TestDataNotifications(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	dataCh := make(chan []byte, 4)
	sess.OnData(func(p []byte) { dataCh <- p })

	bulkIn := dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionIn)
	bulkIn.push([]byte("chunk-1"))
	bulkIn.push([]byte("chunk-2"))

	for _, want := range []string{"chunk-1", "chunk-2"} {
		select {
		case p := <-dataCh:
			require.Equal([]byte(want), p)
		case <-time.After(time.Second):
			t.Fatalf("data notification %q not received", want)
		}
	}

	require.Equal(uint64(14), sess.Metrics().BytesRecv.Load())
}

func TestStatusNotificationsBeforeReady(t *testing.T) {
	require := require.New(t)

	// hold bring-up; status polling must already be live
	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.controlGate = gate

	sess := openTestSession(t, dev)
	defer close(gate)

	statusCh := make(chan []byte, 1)
	sess.OnStatus(func(p []byte) { statusCh <- p })

	payload := make([]byte, 10)
	payload[modemStatusIndex] = modemStatusCTS | modemStatusDCD
	dev.intf.endpoint(usb.TransferTypeInterrupt, usb.DirectionIn).push(payload)

	select {
	case p := <-statusCh:
		status, ok := ParseModemStatus(p)
		require.True(ok)
		require.True(status.CTS)
		require.True(status.DCD)
		require.False(status.DSR)
		require.False(status.RI)
	case <-time.After(time.Second):
		t.Fatal("status notification not received before ready")
	}

	require.NotEqual(ReadyState, sess.State())
	require.Equal(uint64(1), sess.Metrics().StatusCount.Load())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	var delivered atomic.Int32
	seen := make(chan struct{}, 4)
	id := sess.OnData(func(p []byte) {
		delivered.Add(1)
		seen <- struct{}{}
	})
	keptCh := make(chan []byte, 4)
	sess.OnData(func(p []byte) { keptCh <- p })

	bulkIn := dev.intf.endpoint(usb.TransferTypeBulk, usb.DirectionIn)
	bulkIn.push([]byte("first"))

	select {
	case <-seen:
	case <-time.After(time.Second):
		t.Fatal("first data notification not received")
	}
	<-keptCh

	sess.Unsubscribe(id)
	bulkIn.push([]byte("second"))

	// the surviving subscription still sees the payload
	select {
	case p := <-keptCh:
		require.Equal([]byte("second"), p)
	case <-time.After(time.Second):
		t.Fatal("second data notification not received")
	}

	require.Equal(int32(1), delivered.Load())
}

func TestCloseReleasesDevice(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	require.NoError(sess.Close())
	require.Equal(ClosedState, sess.State())

	released, reset := dev.intf.releaseState()
	require.True(released)
	require.True(reset, "interface release must reset the device")
	require.True(dev.isClosed())
}

func TestCloseIdempotent(t *testing.T) {
	require := require.New(t)

	dev := newFakeDevice()
	sess := openTestSession(t, dev)
	waitReady(t, sess)

	require.NoError(sess.Close())
	require.NoError(sess.Close())
	require.NoError(sess.Close())
	require.Equal(ClosedState, sess.State())
}

func TestCloseBeforeReady(t *testing.T) {
	require := require.New(t)

	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.controlGate = gate

	sess := openTestSession(t, dev)
	close(gate)

	require.NoError(sess.Close())
	require.Equal(ClosedState, sess.State())
	require.True(dev.isClosed())
}

func TestWaitReadyAfterClose(t *testing.T) {
	require := require.New(t)

	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.controlGate = gate

	sess := openTestSession(t, dev)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = sess.Close()
		close(gate)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.ErrorIs(sess.WaitReady(ctx), ErrSessionClosed)
}

func TestStateChangeHandlerObservesLifecycle(t *testing.T) {
	require := require.New(t)

	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.controlGate = gate

	sess := openTestSession(t, dev)

	var transitions []SessionState
	done := make(chan struct{})
	sess.AddStateChangeHandler(func(prev, cur SessionState) {
		transitions = append(transitions, cur)
		if cur == ReadyState {
			close(done)
		}
	})
	close(gate)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ready transition not observed")
	}

	require.Equal([]SessionState{NegotiatingState, ReadyState}, transitions)
}
