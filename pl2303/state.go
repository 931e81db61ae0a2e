package pl2303

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/serialio/go-pl2303/logger"
)

// SessionState represents the various stages of a serial session.
type SessionState uint32

// Session states. A session starts in OpeningState; the bring-up sequence
// drives it forward. ClosedState is terminal and irreversible.
const (
	// OpeningState indicates that the device is opened and the register
	// initialization prelude is running.
	OpeningState SessionState = iota
	// NegotiatingState indicates that the baud rate and line configuration
	// are being applied.
	NegotiatingState
	// ReadyState indicates that bring-up completed and the session streams
	// data.
	ReadyState
	// FailedState indicates that a bring-up step failed; the session will
	// never become ready and must be closed.
	FailedState
	// ClosedState indicates that the session was torn down.
	ClosedState
)

// IsReady returns if the session is ready for data exchange.
func (s SessionState) IsReady() bool { return s == ReadyState }

// IsFailed returns if the bring-up sequence failed.
func (s SessionState) IsFailed() bool { return s == FailedState }

// IsClosed returns if the session is closed.
func (s SessionState) IsClosed() bool { return s == ClosedState }

// String returns string representation of the current state.
func (s SessionState) String() string {
	switch s {
	case OpeningState:
		return "opening"
	case NegotiatingState:
		return "negotiating"
	case ReadyState:
		return "ready"
	case FailedState:
		return "failed"
	case ClosedState:
		return "closed"
	default:
		return "unknown"
	}
}

// StateChangeHandler is a function type that represents a handler for session state changes.
//
// Note: the handler will be invoked in a blocking mode. Take care with long-running implementations.
//
// The handler function receives two arguments:
//   - prevState: The previous session state.
//   - newState: The current session state.
type StateChangeHandler func(prevState SessionState, newState SessionState)

// StateMgr manages the state of a serial session.
//
// It provides methods for managing state transitions and notifying listeners
// of state changes. The state transitions are thread safe in concurrent
// environments.
type StateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []StateChangeHandler
}

// NewStateMgr creates a new StateMgr instance, initializing it to OpeningState.
//
// It accepts optional StateChangeHandler functions that will be invoked when the session state changes.
func NewStateMgr(l logger.Logger, handlers ...StateChangeHandler) *StateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	mgr := &StateMgr{
		logger:   l,
		handlers: make([]StateChangeHandler, 0, len(handlers)),
	}
	mgr.handlers = append(mgr.handlers, handlers...)
	mgr.state.Store(uint32(OpeningState))
	mgr.cond = sync.NewCond(&mgr.mu)

	return mgr
}

// State returns the current session state.
func (mgr *StateMgr) State() SessionState {
	return SessionState(mgr.state.Load())
}

// AddHandler adds one or more StateChangeHandler functions to be invoked on state changes.
func (mgr *StateMgr) AddHandler(handlers ...StateChangeHandler) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.handlers = append(mgr.handlers, handlers...)
}

// WaitState waits for the session state to reach the specified state or until the context is done.
// It returns nil if the desired state is reached, or an error if the context is canceled or times out.
func (mgr *StateMgr) WaitState(ctx context.Context, state SessionState) error {
	_, err := mgr.WaitAny(ctx, state)
	return err
}

// WaitAny waits for the session state to reach any of the specified states or
// until the context is done. It returns the state that was reached, or an
// error if the context is canceled or times out.
func (mgr *StateMgr) WaitAny(ctx context.Context, states ...SessionState) (SessionState, error) {
	match := func(cur SessionState) bool {
		for _, s := range states {
			if cur == s {
				return true
			}
		}
		return false
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if match(mgr.State()) {
		return mgr.State(), nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		mgr.cond.Broadcast()
	})
	defer stopFunc()

	for !match(mgr.State()) {
		select {
		case <-ctx.Done():
			mgr.logger.Debug("wait session state receive ctx done", "cur_state", mgr.State())
			return mgr.State(), ctx.Err()
		default:
			mgr.cond.Wait()
		}
	}

	return mgr.State(), nil
}

// ToNegotiating transitions the session state to NegotiatingState.
//
// This transition is only allowed from OpeningState.
// Returns nil on success, or ErrInvalidTransition otherwise.
func (mgr *StateMgr) ToNegotiating() error {
	return mgr.transition(NegotiatingState, OpeningState)
}

// ToReady transitions the session state to ReadyState.
//
// This transition is only allowed from NegotiatingState and indicates that
// the bring-up sequence completed.
// Returns nil on success, or ErrInvalidTransition otherwise.
func (mgr *StateMgr) ToReady() error {
	return mgr.transition(ReadyState, NegotiatingState)
}

// ToFailed transitions the session state to FailedState.
//
// This transition is only allowed from OpeningState or NegotiatingState; a
// failure can only happen while the bring-up sequence is running.
// Returns nil on success, or ErrInvalidTransition otherwise.
func (mgr *StateMgr) ToFailed() error {
	return mgr.transition(FailedState, OpeningState, NegotiatingState)
}

// ToClosed transitions the session state to ClosedState.
//
// This transition is allowed from any state. ClosedState is terminal: once
// reached, no further transition succeeds. If the state is already
// ClosedState, the function is a no-op.
func (mgr *StateMgr) ToClosed() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	curState := mgr.State()
	if curState.IsClosed() {
		return
	}

	// change state before handlers run so that waiters observe Closed even
	// if a handler blocks
	mgr.setState(ClosedState)
	mgr.invokeHandlers(curState, ClosedState)
}

// IsReady returns if the current state is ready.
func (mgr *StateMgr) IsReady() bool { return mgr.State().IsReady() }

// IsFailed returns if the current state is failed.
func (mgr *StateMgr) IsFailed() bool { return mgr.State().IsFailed() }

// IsClosed returns if the current state is closed.
func (mgr *StateMgr) IsClosed() bool { return mgr.State().IsClosed() }

// transition moves to newState if the current state is one of the allowed
// states. It is a no-op when the state already equals newState.
func (mgr *StateMgr) transition(newState SessionState, allowed ...SessionState) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	curState := mgr.State()
	if curState == newState {
		return nil
	}

	ok := false
	for _, s := range allowed {
		if curState == s {
			ok = true
			break
		}
	}
	if !ok {
		return ErrInvalidTransition
	}

	mgr.invokeHandlers(curState, newState)
	// change state after all handlers finished
	mgr.setState(newState)

	return nil
}

// setState atomically set current state to the newState. It also broadcasts a signal to any waiting goroutines.
func (mgr *StateMgr) setState(newState SessionState) {
	mgr.state.Store(uint32(newState))
	mgr.cond.Broadcast()
}

// invokeHandlers invokes all registered StateChangeHandler functions with the previous and new states.
func (mgr *StateMgr) invokeHandlers(prevState SessionState, newState SessionState) {
	for _, handler := range mgr.handlers {
		if handler != nil {
			handler(prevState, newState)
		}
	}
}
