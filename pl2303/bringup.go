package pl2303

import (
	"context"
	"fmt"
)

// bringupStep is one operation of the initialization chain. Steps run
// strictly in order; a step only starts after the previous one completed,
// and the first failure short-circuits the rest.
type bringupStep struct {
	name string
	run  func(ctx context.Context) error
}

// bringupSteps returns the fixed register initialization chain of the HX
// variant. The order is load-bearing: the chip rejects data traffic unless
// the reads and writes happen exactly in this sequence. Only the line
// configuration step varies with the requested baud rate.
func (s *Session) bringupSteps() []bringupStep {
	read := func(reg uint16) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			_, err := s.vendorRead(ctx, reg)
			return err
		}
	}
	write := func(reg, value uint16) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return s.vendorWrite(ctx, reg, value)
		}
	}

	return []bringupStep{
		{"read status A", read(regStatusA)},
		{"write setup A 0", write(regSetupA, 0)},
		{"read status A", read(regStatusA)},
		{"read status B", read(regStatusB)},
		{"read status A", read(regStatusA)},
		{"write setup A 1", write(regSetupA, 1)},
		{"read status A", read(regStatusA)},
		{"read status B", read(regStatusB)},
		{"write setup 0", write(regFlowControl, 1)},
		{"write setup 1", write(regSetup1, 0)},
		{"write setup 2", write(regSetup2, 0x44)},
		{"configure line", s.configureLine},
		{"disable flow control", write(regFlowControl, 0)},
		{"reset rx pipe", write(regResetRxPipe, 0)},
		{"reset tx pipe", write(regResetTxPipe, 0)},
	}
}

// runBringup executes the bring-up chain. It runs once in its own task.
//
// Any step failing transitions the session to FailedState, surfaces exactly
// one error notification and leaves the remaining steps unexecuted. There is
// no retry and no rollback; registers already written stay written, and the
// caller must close and discard the session.
func (s *Session) runBringup(ctx context.Context) {
	for _, step := range s.bringupSteps() {
		if err := ctx.Err(); err != nil {
			s.logger.Debug("bring-up canceled", "step", step.name)
			s.failBringup(fmt.Errorf("pl2303: bring-up canceled: %w", err))
			return
		}

		if err := step.run(ctx); err != nil {
			s.logger.Error("bring-up step failed", "step", step.name, "error", err)
			s.failBringup(err)
			return
		}
	}

	// start streaming received data; status polling is already running
	if err := s.startBulkInPoller(); err != nil {
		s.failBringup(fmt.Errorf("pl2303: start bulk-in polling: %w", err))
		return
	}

	if err := s.stateMgr.ToReady(); err != nil {
		s.failBringup(err)
		return
	}

	s.logger.Info("session ready", "baudRate", s.NegotiatedBaudRate())
	s.emit(event{kind: eventReady})
}

// configureLine negotiates the requested baud rate and applies the line
// configuration with a read-modify-write of the 7-byte block.
func (s *Session) configureLine(ctx context.Context) error {
	if err := s.stateMgr.ToNegotiating(); err != nil {
		return err
	}

	rate, err := NegotiateBaudRate(s.cfg.BaudRate())
	if err != nil {
		return err
	}
	s.negotiatedRate.Store(int64(rate))

	if rate != s.cfg.BaudRate() {
		s.logger.Info("baud rate quantized", "requested", s.cfg.BaudRate(), "negotiated", rate)
	}

	block := make([]byte, lineConfigSize)
	if err := s.readLineConfig(ctx, block); err != nil {
		return err
	}

	encodeLineConfig(block, rate)

	return s.writeLineConfig(ctx, block)
}

// failBringup records the bring-up error, transitions to FailedState and
// emits the single error notification for this open attempt.
func (s *Session) failBringup(err error) {
	s.bringupErrMu.Lock()
	if s.bringupErr == nil {
		s.bringupErr = err
	}
	s.bringupErrMu.Unlock()

	if terr := s.stateMgr.ToFailed(); terr != nil {
		// already closed or failed; the error stays recorded for WaitReady
		s.logger.Debug("bring-up failure after terminal state", "error", err)
		return
	}

	s.metrics.incTransferErrCount()
	s.emit(event{kind: eventError, err: fmt.Errorf("%w: %w", ErrBringupFailed, err)})
}

// BringupError returns the error that failed the bring-up sequence, or nil
// if bring-up has not failed.
func (s *Session) BringupError() error {
	s.bringupErrMu.Lock()
	defer s.bringupErrMu.Unlock()

	return s.bringupErr
}
