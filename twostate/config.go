package twostate

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-beamline/logger"
)

// Config represents the configuration for a two-state actuator.
type Config struct {
	prefix string
	name   string

	// state1Label specifies the readback label of the first stable state.
	// Default: "Open"
	state1Label string
	// state2Label specifies the readback label of the second stable state.
	// Default: "Closed"
	state2Label string

	// uid1 specifies the channel name part for the first state.
	// Default: "Opn"
	uid1 string
	// uid2 specifies the channel name part for the second state.
	// Default: "Cls"
	uid2 string

	// maxRetries specifies how many times a dropped command is re-issued
	// before the operation resolves with ErrRetriesExhausted.
	// Default: 5
	maxRetries int
	// retryDelay specifies the delay before a dropped command is re-issued.
	// Default: 500 milliseconds
	retryDelay time.Duration

	// ackIdleLabel specifies the acknowledgment label that reports a command
	// write was absorbed without starting motion.
	// Default: "None"
	ackIdleLabel string
	// enabledLabel specifies the enable channel label that permits moves.
	// Default: "True"
	enabledLabel string
	// enableGate specifies whether the enable channel is consulted before
	// command writes. Devices without an enable channel disable the gate.
	// Default: true
	enableGate bool
	// failsafeState specifies which state Stop drives the actuator to,
	// either 1 or 2.
	// Default: 2
	failsafeState int

	logger logger.Logger
}

// NewConfig creates a new two-state actuator Config with the given device
// prefix, human-readable device name, and options.
func NewConfig(prefix string, name string, opts ...Option) (*Config, error) {
	if prefix == "" {
		return nil, errors.New("twostate: device prefix is empty")
	}
	if name == "" {
		return nil, errors.New("twostate: device name is empty")
	}

	cfg := &Config{
		prefix:        prefix,
		name:          name,
		state1Label:   "Open",
		state2Label:   "Closed",
		uid1:          "Opn",
		uid2:          "Cls",
		maxRetries:    5,
		retryDelay:    500 * time.Millisecond,
		ackIdleLabel:  "None",
		enabledLabel:  "True",
		enableGate:    true,
		failsafeState: 2,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Prefix returns the device channel prefix.
func (c *Config) Prefix() string { return c.prefix }

// Name returns the human-readable device name.
func (c *Config) Name() string { return c.name }

// StateLabels returns the readback labels of the two stable states.
func (c *Config) StateLabels() (string, string) { return c.state1Label, c.state2Label }

// MaxRetries returns the retry budget for dropped commands.
func (c *Config) MaxRetries() int { return c.maxRetries }

// RetryDelay returns the delay before a dropped command is re-issued.
func (c *Config) RetryDelay() time.Duration { return c.retryDelay }

// AckIdleLabel returns the acknowledgment label for an absorbed command.
func (c *Config) AckIdleLabel() string { return c.ackIdleLabel }

// EnabledLabel returns the enable channel label that permits moves.
func (c *Config) EnabledLabel() string { return c.enabledLabel }

// EnableGate reports whether the enable channel is consulted before writes.
func (c *Config) EnableGate() bool { return c.enableGate }

// FailsafeLabel returns the state label Stop drives the actuator to.
func (c *Config) FailsafeLabel() string {
	if c.failsafeState == 1 {
		return c.state1Label
	}

	return c.state2Label
}

// Logger returns the logger held by the configuration.
func (c *Config) Logger() logger.Logger { return c.logger }

// ChannelNames returns the resolved channel names for the device.
func (c *Config) ChannelNames() ChannelNames {
	return buildChannelNames(c.prefix, c.uid1, c.uid2)
}

// Option represents a configuration option for a two-state actuator.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	runtime   bool
	applyFunc func(*Config) error
}

func newOptFunc(f func(*Config) error, name string, runtime bool) *optFunc {
	return &optFunc{name: name, runtime: runtime, applyFunc: f}
}

func (f *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return f.applyFunc(cfg)
}

// WithStateLabels sets the readback labels of the two stable states. The
// labels are also the targets accepted by Set.
//
// The default values are "Open" and "Closed".
//
// This option can't be changed at runtime.
func WithStateLabels(state1 string, state2 string) Option {
	return newOptFunc(func(cfg *Config) error {
		if state1 == "" || state2 == "" {
			return errors.New("twostate: state labels can't be empty")
		}
		if state1 == state2 {
			return fmt.Errorf("twostate: state labels must differ, got %q twice", state1)
		}
		cfg.state1Label = state1
		cfg.state2Label = state2

		return nil
	}, "WithStateLabels", false)
}

// WithChannelUIDs sets the per-state channel name parts used to expand the
// command and fail indicator channel names.
//
// The default values are "Opn" and "Cls".
//
// This option can't be changed at runtime.
func WithChannelUIDs(uid1 string, uid2 string) Option {
	return newOptFunc(func(cfg *Config) error {
		if uid1 == "" || uid2 == "" {
			return errors.New("twostate: channel UIDs can't be empty")
		}
		cfg.uid1 = uid1
		cfg.uid2 = uid2

		return nil
	}, "WithChannelUIDs", false)
}

// WithMaxRetries sets how many times a dropped command is re-issued before
// the set operation resolves with ErrRetriesExhausted. A budget of 0 fails
// the operation on the first dropped command.
//
// The default value is 5.
//
// This option can be changed at runtime; the new budget applies to the next
// set operation.
func WithMaxRetries(n int) Option {
	return newOptFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("twostate: max retries must be >= 0, got %d", n)
		}
		cfg.maxRetries = n

		return nil
	}, "WithMaxRetries", true)
}

// WithRetryDelay sets the delay between observing a dropped command and
// re-issuing it.
//
// The default value is 500 milliseconds.
//
// This option can be changed at runtime; the new delay applies to the next
// set operation.
func WithRetryDelay(d time.Duration) Option {
	return newOptFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("twostate: retry delay must be >= 0, got %v", d)
		}
		cfg.retryDelay = d

		return nil
	}, "WithRetryDelay", true)
}

// WithAckIdleLabel sets the acknowledgment label that reports a command
// write was absorbed without starting motion.
//
// The default value is "None".
//
// This option can't be changed at runtime.
func WithAckIdleLabel(label string) Option {
	return newOptFunc(func(cfg *Config) error {
		if label == "" {
			return errors.New("twostate: ack idle label can't be empty")
		}
		cfg.ackIdleLabel = label

		return nil
	}, "WithAckIdleLabel", false)
}

// WithEnabledLabel sets the enable channel label that permits moves.
//
// The default value is "True".
//
// This option can't be changed at runtime.
func WithEnabledLabel(label string) Option {
	return newOptFunc(func(cfg *Config) error {
		if label == "" {
			return errors.New("twostate: enabled label can't be empty")
		}
		cfg.enabledLabel = label

		return nil
	}, "WithEnabledLabel", false)
}

// WithoutEnableGate disables consulting the enable channel before command
// writes, for devices that don't expose an enable channel.
//
// The enable gate is on by default.
//
// This option can't be changed at runtime.
func WithoutEnableGate() Option {
	return newOptFunc(func(cfg *Config) error {
		cfg.enableGate = false

		return nil
	}, "WithoutEnableGate", false)
}

// WithFailsafeState1 makes Stop drive the actuator to the first state
// instead of the second.
//
// The default failsafe state is the second state.
//
// This option can't be changed at runtime.
func WithFailsafeState1() Option {
	return newOptFunc(func(cfg *Config) error {
		cfg.failsafeState = 1

		return nil
	}, "WithFailsafeState1", false)
}

// WithLogger sets the logger for the actuator.
//
// The default logger is the global logger instance.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) Option {
	return newOptFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("twostate: logger can't be nil")
		}
		cfg.logger = l

		return nil
	}, "WithLogger", false)
}
