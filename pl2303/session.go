package pl2303

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/serialio/go-pl2303/internal/pool"
	"github.com/serialio/go-pl2303/internal/util"
	"github.com/serialio/go-pl2303/logger"
	"github.com/serialio/go-pl2303/usb"
)

const (
	// closeCheckInterval is the interval for checking task termination in Close().
	closeCheckInterval = 5 * time.Millisecond

	// defaultPollBufSize is the poll buffer size used when an endpoint
	// reports no maximum packet size.
	defaultPollBufSize = 64
)

// Session represents an open serial session with a PL2303 device.
//
// It exclusively owns the device handle, the interface claim and the
// endpoint triple for its entire lifetime; all three are released by Close.
type Session struct {
	pctx   context.Context
	cfg    *Config
	logger logger.Logger

	dev  usb.Device
	intf usb.Interface

	// The endpoint triple, resolved once at open time.
	intrIn  usb.Endpoint
	bulkIn  usb.Endpoint
	bulkOut usb.Endpoint

	stateMgr *StateMgr
	taskMgr  *usb.TaskManager
	hub      *eventHub

	eventChan chan event
	sendChan  chan []byte

	negotiatedRate atomic.Int64

	bringupErrMu sync.Mutex
	bringupErr   error

	closed atomic.Bool

	metrics SessionMetrics
}

// Open enumerates PL2303 devices on the given transport, selects the one at
// the configured port index and constructs a serial session on it.
//
// Construction claims the device's single interface, resolves the endpoint
// triple and starts interrupt-endpoint polling immediately; modem status
// notifications can fire before the session is ready. The bring-up sequence
// runs asynchronously — subscribe with OnReady/OnError or block with
// WaitReady to learn its outcome.
//
// Precondition violations (missing device, unsupported chip variant,
// unexpected interface or endpoint layout) fail synchronously; no session is
// produced and nothing is left claimed.
func Open(ctx context.Context, transport usb.Transport, cfg *Config) (*Session, error) {
	if transport == nil {
		return nil, ErrTransportNil
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}

	devices, err := transport.Enumerate(VendorID, ProductID)
	if err != nil {
		return nil, fmt.Errorf("pl2303: enumerate devices: %w", err)
	}

	port := cfg.Port()
	if port >= len(devices) {
		return nil, fmt.Errorf("pl2303: port %d: %d matching device(s) attached: %w",
			port, len(devices), usb.ErrDeviceNotFound)
	}

	dev := devices[port]
	if err := dev.Open(); err != nil {
		return nil, fmt.Errorf("pl2303: open device: %w", err)
	}

	if err := checkDevice(dev); err != nil {
		_ = dev.Close()
		return nil, err
	}

	intf, err := dev.Claim()
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("pl2303: claim interface: %w", err)
	}

	s := &Session{
		pctx:   ctx,
		cfg:    cfg,
		logger: cfg.Logger(),
		dev:    dev,
		intf:   intf,
	}

	if err := s.resolveEndpoints(); err != nil {
		_ = intf.Release(false)
		_ = dev.Close()
		return nil, err
	}

	s.stateMgr = NewStateMgr(s.logger)
	s.taskMgr = usb.NewTaskManager(ctx, s.logger)
	s.hub = newEventHub()
	s.eventChan = make(chan event, cfg.EventQueueSize())
	s.sendChan = make(chan []byte, cfg.SendQueueSize())

	if err := s.startTasks(); err != nil {
		s.taskMgr.Stop()
		_ = intf.Release(false)
		_ = dev.Close()
		return nil, err
	}

	s.logger.Info("session opened", "port", port, "requestedBaudRate", cfg.BaudRate())

	return s, nil
}

// checkDevice verifies the chip variant preconditions.
func checkDevice(dev usb.Device) error {
	if dev.Class() == commDeviceClass {
		return fmt.Errorf("pl2303: device class 0x%02x: %w", dev.Class(), ErrUnsupportedDeviceClass)
	}
	if dev.MaxControlPacketSize() != hxMaxControlPacketSize {
		return fmt.Errorf("pl2303: control packet size %d: %w", dev.MaxControlPacketSize(), ErrUnsupportedPacketSize)
	}
	if dev.NumInterfaces() != 1 {
		return fmt.Errorf("pl2303: %d interfaces: %w", dev.NumInterfaces(), ErrUnexpectedInterfaceCount)
	}

	return nil
}

// resolveEndpoints resolves the endpoint triple. Exactly one endpoint of
// each required (transfer type, direction) pair must exist.
func (s *Session) resolveEndpoints() error {
	var err error

	if s.intrIn, err = s.intf.Endpoint(usb.TransferTypeInterrupt, usb.DirectionIn); err != nil {
		return fmt.Errorf("pl2303: resolve interrupt-in endpoint: %w", err)
	}
	if s.bulkIn, err = s.intf.Endpoint(usb.TransferTypeBulk, usb.DirectionIn); err != nil {
		return fmt.Errorf("pl2303: resolve bulk-in endpoint: %w", err)
	}
	if s.bulkOut, err = s.intf.Endpoint(usb.TransferTypeBulk, usb.DirectionOut); err != nil {
		return fmt.Errorf("pl2303: resolve bulk-out endpoint: %w", err)
	}

	return nil
}

// startTasks starts the dispatch, sender and interrupt polling tasks and
// kicks off the bring-up sequence. Bulk-in polling starts later, as the last
// bring-up step before ready.
func (s *Session) startTasks() error {
	if err := s.taskMgr.Start("eventDispatch", s.dispatchTask); err != nil {
		return err
	}

	if err := s.taskMgr.StartSender("bulkOutSender", s.sendTask, nil, s.sendChan); err != nil {
		return err
	}

	// status polling starts now, decoupled from bring-up completion
	if err := s.taskMgr.StartPoller("interruptInPoller", s.pollBufSize(s.intrIn), s.interruptPollTask, nil); err != nil {
		return err
	}

	return s.taskMgr.Start("bringup", func() bool {
		s.runBringup(s.taskMgr.Context())
		return false
	})
}

// startBulkInPoller begins bulk-in endpoint polling. Called by the bring-up
// sequence as its final step.
func (s *Session) startBulkInPoller() error {
	return s.taskMgr.StartPoller("bulkInPoller", s.pollBufSize(s.bulkIn), s.bulkPollTask, nil)
}

func (s *Session) pollBufSize(ep usb.Endpoint) int {
	if size := ep.Desc().MaxPacketSize; size > 0 {
		return size
	}
	return defaultPollBufSize
}

// dispatchTask drains the event queue and fans notifications out to
// registered handlers.
func (s *Session) dispatchTask() bool {
	ctx := s.taskMgr.Context()
	select {
	case <-ctx.Done():
		return false
	case ev := <-s.eventChan:
		s.hub.dispatch(ev)
		return true
	}
}

// sendTask transfers one outbound buffer on the bulk-out endpoint.
// Transfer errors are reported via the error notification and do not halt
// the session.
func (s *Session) sendTask(p []byte) bool {
	n, err := s.bulkOut.Write(s.taskMgr.Context(), p)
	if err != nil {
		if s.taskMgr.Context().Err() != nil {
			return false
		}
		s.metrics.incTransferErrCount()
		s.emit(event{kind: eventError, err: fmt.Errorf("pl2303: bulk-out transfer: %w", err)})
		return true
	}

	s.metrics.addBytesSent(n)

	return true
}

// interruptPollTask performs one interrupt-in poll and emits a status
// notification per completed transfer.
func (s *Session) interruptPollTask(buf []byte) bool {
	return s.pollIn(s.intrIn, buf, "interrupt-in", func(p []byte) {
		s.metrics.incStatusCount()
		s.emit(event{kind: eventStatus, payload: p})
	})
}

// bulkPollTask performs one bulk-in poll and emits a data notification per
// completed transfer.
func (s *Session) bulkPollTask(buf []byte) bool {
	return s.pollIn(s.bulkIn, buf, "bulk-in", func(p []byte) {
		s.metrics.addBytesRecv(len(p))
		s.emit(event{kind: eventData, payload: p})
	})
}

// pollIn reads once from an in endpoint. The read buffer is reused across
// polls, so the payload is cloned before it is handed to the event queue.
func (s *Session) pollIn(ep usb.Endpoint, buf []byte, name string, deliver func(p []byte)) bool {
	ctx := s.taskMgr.Context()

	n, err := ep.Read(ctx, buf)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// poll timeout, nothing received
			return true
		}
		s.metrics.incTransferErrCount()
		s.emit(event{kind: eventError, err: fmt.Errorf("pl2303: %s transfer: %w", name, err)})
		return true
	}

	if n > 0 {
		deliver(util.CloneSlice(buf[:n], 0))
	}

	return true
}

// emit queues one notification for dispatch. Events are dropped once the
// session's tasks have been stopped.
func (s *Session) emit(ev event) {
	select {
	case s.eventChan <- ev:
	case <-s.taskMgr.Context().Done():
	}
}

// OnStatus registers a handler for modem status notifications.
// It returns a Subscription that can be passed to Unsubscribe.
func (s *Session) OnStatus(fn StatusHandler) Subscription { return s.hub.onStatus(fn) }

// OnData registers a handler for received data notifications.
// It returns a Subscription that can be passed to Unsubscribe.
func (s *Session) OnData(fn DataHandler) Subscription { return s.hub.onData(fn) }

// OnReady registers a handler invoked once after bring-up succeeds.
// It returns a Subscription that can be passed to Unsubscribe.
func (s *Session) OnReady(fn ReadyHandler) Subscription { return s.hub.onReady(fn) }

// OnError registers a handler for transport and bring-up errors.
// It returns a Subscription that can be passed to Unsubscribe.
func (s *Session) OnError(fn ErrorHandler) Subscription { return s.hub.onError(fn) }

// Unsubscribe removes a previously registered handler.
func (s *Session) Unsubscribe(id Subscription) { s.hub.unsubscribe(id) }

// Send queues a buffer for transfer on the bulk-out endpoint.
//
// The transfer is fire-and-forget: Send returns once the buffer is queued,
// and transfer failures surface via the error notification. The buffer is
// copied, so the caller may reuse it immediately.
//
// Send returns ErrNotReady before the bring-up sequence completes and
// ErrSessionClosed after Close. This is a deliberate strengthening over the
// chip protocol, which imposes no such guard.
func (s *Session) Send(p []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.stateMgr.IsReady() {
		return ErrNotReady
	}

	cp := util.CloneSlice(p, 0)

	select {
	case s.sendChan <- cp:
		return nil
	case <-s.taskMgr.Context().Done():
		return ErrSessionClosed
	}
}

// WaitReady blocks until the session becomes ready, the bring-up sequence
// fails, the session is closed, or ctx is done.
//
// It returns nil when the session is ready, the bring-up error after a
// failure, ErrSessionClosed after Close, or the context error.
func (s *Session) WaitReady(ctx context.Context) error {
	state, err := s.stateMgr.WaitAny(ctx, ReadyState, FailedState, ClosedState)
	if err != nil {
		return err
	}

	switch state {
	case ReadyState:
		return nil
	case FailedState:
		if berr := s.BringupError(); berr != nil {
			return berr
		}
		return ErrBringupFailed
	default:
		return ErrSessionClosed
	}
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return s.stateMgr.State()
}

// AddStateChangeHandler adds one or more StateChangeHandler functions to be
// invoked when the session state changes.
func (s *Session) AddStateChangeHandler(handlers ...StateChangeHandler) {
	s.stateMgr.AddHandler(handlers...)
}

// NegotiatedBaudRate returns the baud rate selected by negotiation, or 0 if
// the line configuration step has not run yet.
func (s *Session) NegotiatedBaudRate() int {
	return int(s.negotiatedRate.Load())
}

// Metrics returns the session's transfer metrics.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// Close tears the session down: it detaches all notification subscribers,
// stops the polling, sender and dispatch tasks, releases the interface claim
// with a device reset, and closes the device handle.
//
// Close is idempotent; second and later calls are no-ops returning nil.
// This is a deliberate strengthening over the chip protocol, which leaves
// double-close behavior undefined.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Debug("start to close session", "state", s.stateMgr.State().String())

	s.hub.detachAll()
	s.stateMgr.ToClosed()
	s.taskMgr.Stop()

	err := s.waitTasks()

	if rerr := s.intf.Release(true); rerr != nil && err == nil {
		err = fmt.Errorf("pl2303: release interface: %w", rerr)
	}
	if cerr := s.dev.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("pl2303: close device: %w", cerr)
	}

	s.logger.Info("session closed")

	return err
}

// waitTasks waits for all session tasks to terminate, bounded by the
// configured close timeout.
func (s *Session) waitTasks() error {
	done := make(chan struct{})
	go func() {
		s.taskMgr.Wait()
		close(done)
	}()

	closeTimer := pool.GetTimer(s.cfg.CloseTimeout())
	defer pool.PutTimer(closeTimer)

	checkTicker := time.NewTicker(closeCheckInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-done:
			return nil

		case <-closeTimer.C:
			s.logger.Error("close session timeout",
				"timeout", s.cfg.CloseTimeout(),
				"task_count", s.taskMgr.TaskCount())
			return ErrCloseTimeout

		case <-checkTicker.C:
			// keep checking until the timer fires
		}
	}
}
