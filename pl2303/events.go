package pl2303

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// StatusHandler is invoked once per completed interrupt-in transfer with the
// raw modem status bytes reported by the chip. Decode them with ParseModemStatus.
type StatusHandler func(status []byte)

// DataHandler is invoked once per completed bulk-in transfer with the
// received bytes. The slice is owned by the handler and is not reused by the
// driver.
type DataHandler func(data []byte)

// ReadyHandler is invoked exactly once, after the bring-up sequence
// completed successfully.
type ReadyHandler func()

// ErrorHandler is invoked on any transport error from interrupt polling,
// bulk polling, bulk-out transfers or a bring-up step failure. It may be
// invoked multiple times; an error does not itself close the session.
type ErrorHandler func(err error)

// Subscription identifies a registered handler and is used to unsubscribe it.
type Subscription uint64

// eventKind discriminates queued notifications.
type eventKind uint8

const (
	eventStatus eventKind = iota
	eventData
	eventReady
	eventError
)

// event is one queued notification awaiting dispatch.
type event struct {
	kind    eventKind
	payload []byte
	err     error
}

// eventHub holds the per-kind handler registries of a session.
//
// Registration and removal are concurrent-safe; dispatch iterates a registry
// without holding locks, so handlers registered during dispatch may or may
// not observe the in-flight event.
type eventHub struct {
	nextID atomic.Uint64

	statusHandlers *xsync.MapOf[Subscription, StatusHandler]
	dataHandlers   *xsync.MapOf[Subscription, DataHandler]
	readyHandlers  *xsync.MapOf[Subscription, ReadyHandler]
	errorHandlers  *xsync.MapOf[Subscription, ErrorHandler]
}

func newEventHub() *eventHub {
	return &eventHub{
		statusHandlers: xsync.NewMapOf[Subscription, StatusHandler](),
		dataHandlers:   xsync.NewMapOf[Subscription, DataHandler](),
		readyHandlers:  xsync.NewMapOf[Subscription, ReadyHandler](),
		errorHandlers:  xsync.NewMapOf[Subscription, ErrorHandler](),
	}
}

func (h *eventHub) newSubscription() Subscription {
	return Subscription(h.nextID.Add(1))
}

func (h *eventHub) onStatus(fn StatusHandler) Subscription {
	id := h.newSubscription()
	h.statusHandlers.Store(id, fn)
	return id
}

func (h *eventHub) onData(fn DataHandler) Subscription {
	id := h.newSubscription()
	h.dataHandlers.Store(id, fn)
	return id
}

func (h *eventHub) onReady(fn ReadyHandler) Subscription {
	id := h.newSubscription()
	h.readyHandlers.Store(id, fn)
	return id
}

func (h *eventHub) onError(fn ErrorHandler) Subscription {
	id := h.newSubscription()
	h.errorHandlers.Store(id, fn)
	return id
}

// unsubscribe removes the handler with the given id, whatever its kind.
// Subscription ids are unique across kinds.
func (h *eventHub) unsubscribe(id Subscription) {
	h.statusHandlers.Delete(id)
	h.dataHandlers.Delete(id)
	h.readyHandlers.Delete(id)
	h.errorHandlers.Delete(id)
}

// detachAll removes all registered handlers. Called once from Close.
func (h *eventHub) detachAll() {
	h.statusHandlers.Clear()
	h.dataHandlers.Clear()
	h.readyHandlers.Clear()
	h.errorHandlers.Clear()
}

// dispatch fans one event out to all handlers of its kind.
func (h *eventHub) dispatch(ev event) {
	switch ev.kind {
	case eventStatus:
		h.statusHandlers.Range(func(_ Subscription, fn StatusHandler) bool {
			fn(ev.payload)
			return true
		})
	case eventData:
		h.dataHandlers.Range(func(_ Subscription, fn DataHandler) bool {
			fn(ev.payload)
			return true
		})
	case eventReady:
		h.readyHandlers.Range(func(_ Subscription, fn ReadyHandler) bool {
			fn()
			return true
		})
	case eventError:
		h.errorHandlers.Range(func(_ Subscription, fn ErrorHandler) bool {
			fn(ev.err)
			return true
		})
	}
}
