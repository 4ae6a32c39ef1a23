package twostate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-beamline/internal/pool"
	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pv"
	"github.com/arloliu/go-beamline/status"
)

// activateValue is the raw value written to a command channel to request
// motion.
const activateValue int32 = 1

// failValue is the raw value written to a fail indicator channel to mark a
// refused move.
const failValue int32 = 1

const eventTimeFormat = "2006-01-02 15:04:05"

// setOperation tracks one asynchronous move toward a target state. It owns
// the readback and acknowledgment subscriptions for the duration of the move
// and resolves its status handle exactly once.
type setOperation struct {
	act    *Actuator
	ctx    context.Context
	cancel context.CancelFunc

	target     string
	side       *side
	maxRetries int
	retryDelay time.Duration

	// enum label tables, fetched once per operation
	readbackLabels []string
	ackLabels      []string
	enableLabels   []string

	status *status.Status
	logger logger.Logger

	mu        sync.Mutex
	done      bool
	attempts  int
	rbSub     pv.Subscription
	rbSubbed  bool
	ackSub    pv.Subscription
	ackSubbed bool
}

func newSetOperation(act *Actuator, s *side, target string, rbLabels []string, maxRetries int, retryDelay time.Duration) *setOperation {
	ctx, cancel := context.WithCancel(act.pctx)

	return &setOperation{
		act:            act,
		ctx:            ctx,
		cancel:         cancel,
		target:         target,
		side:           s,
		maxRetries:     maxRetries,
		retryDelay:     retryDelay,
		readbackLabels: rbLabels,
		status:         status.New(),
		logger:         act.logger.With("device", act.cfg.name, "target", target),
	}
}

// start subscribes the operation to its device channels and issues the first
// activation write. Any fault resolves the status handle.
func (op *setOperation) start() {
	if err := op.subscribeReadback(); err != nil {
		op.complete(err)
		return
	}

	// the subscription delivers no initial event; re-read to close the gap
	// between the pre-subscription read and the first monitor event
	cur, err := op.act.readback.Read()
	if err != nil {
		op.complete(fmt.Errorf("twostate: read readback: %w", err))
		return
	}
	if label, err := pv.DecodeLabel(op.readbackLabels, cur.Raw); err == nil && label == op.target {
		op.complete(nil)
		return
	}

	if err := op.subscribeAck(); err != nil {
		op.complete(err)
		return
	}

	if op.act.enable != nil {
		labels, err := op.act.enable.EnumLabels()
		if err != nil {
			op.complete(fmt.Errorf("twostate: read enable labels: %w", err))
			return
		}
		op.enableLabels = labels

		enabled, err := op.moveEnabled()
		if err != nil {
			op.complete(err)
			return
		}
		if !enabled {
			op.failDisabled()
			return
		}
	}

	op.writeCommand(false)
}

// onReadback resolves the operation when the readback reaches the target
// state.
func (op *setOperation) onReadback(v pv.Value) {
	label, err := pv.DecodeLabel(op.readbackLabels, v.Raw)
	if err != nil {
		op.logger.Debug("readback value out of range", "raw", v.Raw)
		return
	}

	if label == op.target {
		op.complete(nil)
	}
}

// onAck drives the retry machinery. Each acknowledgment event consumes one
// attempt; an idle acknowledgment with the readback away from the target
// means the device dropped the command, so it is re-issued after the retry
// delay. Any other acknowledgment stops the retry driving while the
// operation keeps waiting on the readback.
func (op *setOperation) onAck(v pv.Value) {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return
	}
	op.attempts++
	attempts := op.attempts
	op.mu.Unlock()

	if attempts > op.maxRetries {
		if op.complete(ErrRetriesExhausted) {
			op.act.metrics.incExhaustedCount()
		}

		return
	}

	label, err := pv.DecodeLabel(op.ackLabels, v.Raw)
	if err != nil {
		op.logger.Debug("acknowledgment value out of range", "raw", v.Raw)
		return
	}

	if label == op.act.cfg.ackIdleLabel && !op.atTarget() {
		if op.act.enable != nil {
			enabled, err := op.moveEnabled()
			if err != nil {
				op.complete(err)
				return
			}
			if !enabled {
				op.failDisabled()
				return
			}
		}

		op.scheduleReactuate(v, attempts)

		return
	}

	op.unsubscribeAck()
}

// scheduleReactuate re-issues the activation write after the retry delay on
// a separate goroutine. Completion of the operation cancels the wait.
func (op *setOperation) scheduleReactuate(v pv.Value, attempt int) {
	go func() {
		if !pool.Sleep(op.ctx, op.retryDelay) {
			return
		}
		if op.ctx.Err() != nil {
			return
		}

		op.writeCommand(true)
		op.logger.Info("had to reactuate device",
			"eventTime", v.Time.Format(eventTimeFormat),
			"attempt", attempt,
		)
	}()
}

// writeCommand issues one activation write to the command channel. The
// counters update before the write because the write may resolve the whole
// operation before it returns.
func (op *setOperation) writeCommand(retry bool) {
	if op.ctx.Err() != nil {
		return
	}

	op.act.metrics.incCommandWriteCount()
	if retry {
		op.act.metrics.incRetryCount()
	}

	if err := op.side.command.Write(activateValue); err != nil {
		op.complete(fmt.Errorf("twostate: write command: %w", err))
	}
}

// moveEnabled reads the facility enable channel and reports whether moves
// are currently permitted.
func (op *setOperation) moveEnabled() (bool, error) {
	v, err := op.act.enable.Read()
	if err != nil {
		return false, fmt.Errorf("twostate: read enable: %w", err)
	}

	label, err := pv.DecodeLabel(op.enableLabels, v.Raw)
	if err != nil {
		return false, fmt.Errorf("twostate: decode enable: %w", err)
	}

	return label == op.act.cfg.enabledLabel, nil
}

// failDisabled marks the fail indicator for the target side and resolves the
// operation with ErrMovesDisabled.
func (op *setOperation) failDisabled() {
	op.act.metrics.incDisabledCount()

	if err := op.side.fail.Write(failValue); err != nil {
		op.logger.Warn("failed to mark fail indicator", "error", err)
	}

	op.complete(ErrMovesDisabled)
}

// atTarget re-reads the readback and reports whether it shows the target
// state.
func (op *setOperation) atTarget() bool {
	v, err := op.act.readback.Read()
	if err != nil {
		return false
	}

	label, err := pv.DecodeLabel(op.readbackLabels, v.Raw)

	return err == nil && label == op.target
}

// complete resolves the operation exactly once: it cancels pending
// reactivations, tears down both subscriptions, releases the actuator's
// operation slot, and finishes the status handle. It reports whether this
// call performed the resolution.
func (op *setOperation) complete(err error) bool {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return false
	}
	op.done = true
	op.mu.Unlock()

	op.cancel()

	op.unsubscribeReadback()
	op.unsubscribeAck()

	// release the slot before resolving so a completion waiter can issue
	// the next set immediately
	op.act.clearSlot(op)

	op.act.metrics.setActiveGauge(false)
	if err != nil {
		op.act.metrics.incSetFailureCount()
		op.logger.Warn("set operation failed", "error", err)
	} else {
		op.act.metrics.incSetSuccessCount()
		op.logger.Debug("set operation resolved")
	}

	op.status.Finish(err)

	return true
}

func (op *setOperation) subscribeReadback() error {
	sub, err := op.act.readback.Subscribe(op.onReadback)
	if err != nil {
		return fmt.Errorf("twostate: subscribe readback: %w", err)
	}

	op.mu.Lock()
	op.rbSub = sub
	op.rbSubbed = true
	done := op.done
	op.mu.Unlock()

	// the operation may resolve from an event delivered before the
	// subscription handle was recorded
	if done {
		op.unsubscribeReadback()
	}

	return nil
}

func (op *setOperation) subscribeAck() error {
	labels, err := op.side.command.EnumLabels()
	if err != nil {
		return fmt.Errorf("twostate: read acknowledgment labels: %w", err)
	}
	op.ackLabels = labels

	sub, err := op.side.command.Subscribe(op.onAck)
	if err != nil {
		return fmt.Errorf("twostate: subscribe acknowledgment: %w", err)
	}

	op.mu.Lock()
	op.ackSub = sub
	op.ackSubbed = true
	done := op.done
	op.mu.Unlock()

	if done {
		op.unsubscribeAck()
	}

	return nil
}

func (op *setOperation) unsubscribeReadback() {
	op.mu.Lock()
	subbed := op.rbSubbed
	sub := op.rbSub
	op.rbSubbed = false
	op.mu.Unlock()

	if !subbed {
		return
	}

	if err := op.act.readback.Unsubscribe(sub); err != nil {
		op.logger.Debug("unsubscribe readback failed", "error", err)
	}
}

func (op *setOperation) unsubscribeAck() {
	op.mu.Lock()
	subbed := op.ackSubbed
	sub := op.ackSub
	op.ackSubbed = false
	op.mu.Unlock()

	if !subbed {
		return
	}

	if err := op.side.command.Unsubscribe(sub); err != nil {
		op.logger.Debug("unsubscribe acknowledgment failed", "error", err)
	}
}
