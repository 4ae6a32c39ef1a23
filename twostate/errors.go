package twostate

import "errors"

var (
	// ErrSetInProgress is returned by Set when another set operation is still
	// active on the same actuator. Wait on the active operation's Status, or
	// call Cancel, before issuing a new target.
	ErrSetInProgress = errors.New("twostate: set operation already in progress")

	// ErrUnknownTarget is returned by Set when the target label is neither of
	// the actuator's two configured state labels.
	ErrUnknownTarget = errors.New("twostate: unknown target state label")

	// ErrRetriesExhausted resolves a set operation that re-issued its command
	// more times than the configured retry budget without the readback
	// reaching the target state.
	ErrRetriesExhausted = errors.New("twostate: retries exhausted")

	// ErrMovesDisabled resolves a set operation aborted because the facility
	// enable channel reports that moves are forbidden.
	ErrMovesDisabled = errors.New("twostate: moves disabled by facility")

	// ErrCanceled resolves a set operation torn down by Cancel before it
	// reached the target state.
	ErrCanceled = errors.New("twostate: set operation canceled")

	// ErrConfigNil is returned when a nil Config is passed to NewActuator or
	// an Option is applied to a nil Config.
	ErrConfigNil = errors.New("twostate: config is nil")

	// ErrDuplicateActuator is returned by Registry.Register when an actuator
	// with the same name is already registered.
	ErrDuplicateActuator = errors.New("twostate: actuator already registered")
)
