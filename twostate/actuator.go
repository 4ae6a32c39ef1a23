package twostate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pv"
	"github.com/arloliu/go-beamline/status"
)

// side groups the channels that drive the actuator toward one of its two
// states.
type side struct {
	label   string
	command pv.Channel
	fail    pv.Channel
}

// Actuator drives a two-state beamline device such as a photon shutter, gate
// valve, or pneumatic insert through its EPS command, readback, fail, and
// enable channels. It issues activation writes, monitors the acknowledgment
// channel for dropped commands, re-issues the command up to the configured
// retry budget, and resolves a status.Status handle when the readback reaches
// the target state or the operation fails.
type Actuator struct {
	pctx   context.Context
	cfg    *Config
	logger logger.Logger

	readback pv.Channel
	enable   pv.Channel // nil when the enable gate is off
	sides    [2]side

	mu      sync.Mutex // guards op, restore, and runtime config updates
	op      *setOperation
	restore string // state to return to on Resume, set by Stop

	metrics ActuatorMetrics
}

// NewActuator creates a new two-state Actuator with the given context,
// channel provider, and configuration. It resolves all device channels
// eagerly and returns an error if any channel is missing.
func NewActuator(ctx context.Context, provider pv.Provider, cfg *Config) (*Actuator, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if provider == nil {
		return nil, errors.New("twostate: channel provider is nil")
	}

	names := cfg.ChannelNames()
	state1, state2 := cfg.StateLabels()

	act := &Actuator{
		pctx:   ctx,
		cfg:    cfg,
		logger: cfg.logger,
	}

	var err error
	if act.readback, err = provider.Channel(names.Readback); err != nil {
		return nil, fmt.Errorf("twostate: resolve readback channel %q: %w", names.Readback, err)
	}

	act.sides[0] = side{label: state1}
	if act.sides[0].command, err = provider.Channel(names.Command1); err != nil {
		return nil, fmt.Errorf("twostate: resolve command channel %q: %w", names.Command1, err)
	}
	if act.sides[0].fail, err = provider.Channel(names.Fail1); err != nil {
		return nil, fmt.Errorf("twostate: resolve fail channel %q: %w", names.Fail1, err)
	}

	act.sides[1] = side{label: state2}
	if act.sides[1].command, err = provider.Channel(names.Command2); err != nil {
		return nil, fmt.Errorf("twostate: resolve command channel %q: %w", names.Command2, err)
	}
	if act.sides[1].fail, err = provider.Channel(names.Fail2); err != nil {
		return nil, fmt.Errorf("twostate: resolve fail channel %q: %w", names.Fail2, err)
	}

	if cfg.enableGate {
		if act.enable, err = provider.Channel(names.Enable); err != nil {
			return nil, fmt.Errorf("twostate: resolve enable channel %q: %w", names.Enable, err)
		}
	}

	return act, nil
}

// Name returns the human-readable device name.
func (a *Actuator) Name() string {
	return a.cfg.name
}

// GetLogger returns the logger associated with the actuator.
func (a *Actuator) GetLogger() logger.Logger {
	return a.logger
}

// GetMetrics returns the metrics associated with the actuator.
func (a *Actuator) GetMetrics() *ActuatorMetrics {
	return &a.metrics
}

// UpdateConfigOptions updates the actuator configuration at runtime.
// Only options marked as runtime-changeable are accepted; the new values
// apply to the next set operation.
func (a *Actuator) UpdateConfigOptions(opts ...Option) error {
	for _, opt := range opts {
		f, ok := opt.(*optFunc)
		if !ok {
			return errors.New("twostate: invalid Option type")
		}
		if !f.runtime {
			return fmt.Errorf("twostate: option %s can't be changed at runtime", f.name)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, opt := range opts {
		if err := opt.apply(a.cfg); err != nil {
			return err
		}
	}

	return nil
}

// State reads the readback channel and returns the current state label.
func (a *Actuator) State() (string, error) {
	labels, err := a.readback.EnumLabels()
	if err != nil {
		return "", fmt.Errorf("twostate: read readback labels: %w", err)
	}

	v, err := a.readback.Read()
	if err != nil {
		return "", fmt.Errorf("twostate: read readback: %w", err)
	}

	label, err := pv.DecodeLabel(labels, v.Raw)
	if err != nil {
		return "", fmt.Errorf("twostate: decode readback: %w", err)
	}

	return label, nil
}

// Set starts an asynchronous move toward the target state label and returns
// a completion handle immediately. It never blocks on device motion.
//
// When the readback already reports the target state, Set returns an already
// resolved handle without writing to the device. When another set operation
// is still active it returns ErrSetInProgress, and when the target is neither
// configured state label it returns ErrUnknownTarget. All later outcomes,
// including channel faults, ErrRetriesExhausted, ErrMovesDisabled, and
// ErrCanceled, resolve through the returned handle.
func (a *Actuator) Set(target string) (*status.Status, error) {
	sideIdx := -1
	for i := range a.sides {
		if a.sides[i].label == target {
			sideIdx = i
			break
		}
	}
	if sideIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	rbLabels, err := a.readback.EnumLabels()
	if err != nil {
		return nil, fmt.Errorf("twostate: read readback labels: %w", err)
	}

	cur, err := a.readback.Read()
	if err != nil {
		return nil, fmt.Errorf("twostate: read readback: %w", err)
	}

	if label, err := pv.DecodeLabel(rbLabels, cur.Raw); err == nil && label == target {
		a.metrics.incFastPathCount()

		st := status.New()
		st.Finish(nil)

		return st, nil
	}

	a.mu.Lock()
	if a.op != nil {
		a.mu.Unlock()
		return nil, ErrSetInProgress
	}
	op := newSetOperation(a, &a.sides[sideIdx], target, rbLabels, a.cfg.maxRetries, a.cfg.retryDelay)
	a.op = op
	a.mu.Unlock()

	a.metrics.incSetCount()
	a.metrics.setActiveGauge(true)

	op.start()

	return op.status, nil
}

// Cancel tears down the active set operation, resolving its handle with
// ErrCanceled. It reports whether an operation was canceled.
func (a *Actuator) Cancel() bool {
	a.mu.Lock()
	op := a.op
	a.mu.Unlock()

	if op == nil {
		return false
	}

	if !op.complete(ErrCanceled) {
		return false
	}
	a.metrics.incCanceledCount()

	return true
}

// Stop waits for any active set operation to resolve, remembers whether the
// actuator was away from its failsafe state, and drives it to the failsafe
// state, blocking until that move resolves. A later Resume undoes the move.
//
// Stop is intended for interlock and suspension handlers that are allowed to
// block; regular clients should use Set.
func (a *Actuator) Stop(ctx context.Context) error {
	if st := a.activeStatus(); st != nil {
		_ = st.Wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	failsafe := a.cfg.FailsafeLabel()

	cur, err := a.State()
	if err != nil {
		return err
	}

	a.mu.Lock()
	if cur != failsafe {
		a.restore = cur
	} else {
		a.restore = ""
	}
	a.mu.Unlock()

	st, err := a.Set(failsafe)
	if err != nil {
		return err
	}

	return st.Wait(ctx)
}

// Resume drives the actuator back to the state recorded by the preceding
// Stop, blocking until the move resolves. It is a no-op when the actuator
// was already at its failsafe state when Stop was called.
func (a *Actuator) Resume(ctx context.Context) error {
	a.mu.Lock()
	restore := a.restore
	a.restore = ""
	a.mu.Unlock()

	if restore == "" {
		return nil
	}

	st, err := a.Set(restore)
	if err != nil {
		return err
	}

	return st.Wait(ctx)
}

// activeStatus returns the completion handle of the active set operation,
// or nil when the actuator is idle.
func (a *Actuator) activeStatus() *status.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.op == nil {
		return nil
	}

	return a.op.status
}

// clearSlot releases the single-operation slot if op still owns it.
func (a *Actuator) clearSlot(op *setOperation) {
	a.mu.Lock()
	if a.op == op {
		a.op = nil
	}
	a.mu.Unlock()
}
