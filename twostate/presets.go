package twostate

import (
	"context"

	"github.com/arloliu/go-beamline/pv"
)

// NewPhotonShutter creates an actuator for a front-end photon shutter with
// Open/Closed states and a retry budget of 5. Additional options override
// the preset.
func NewPhotonShutter(ctx context.Context, provider pv.Provider, prefix string, name string, opts ...Option) (*Actuator, error) {
	return newPreset(ctx, provider, prefix, name, []Option{
		WithStateLabels("Open", "Closed"),
		WithChannelUIDs("Opn", "Cls"),
		WithMaxRetries(5),
	}, opts)
}

// NewGateValve creates an actuator for a beamline gate valve with Open/Closed
// states and a retry budget of 1. Gate valves latch a hardware fault when
// over-driven, so the budget stays small. Additional options override the
// preset.
func NewGateValve(ctx context.Context, provider pv.Provider, prefix string, name string, opts ...Option) (*Actuator, error) {
	return newPreset(ctx, provider, prefix, name, []Option{
		WithStateLabels("Open", "Closed"),
		WithChannelUIDs("Opn", "Cls"),
		WithMaxRetries(1),
	}, opts)
}

// NewPneumaticActuator creates an actuator for a pneumatic insert with In/Out
// states, In/Out channel UIDs, and a retry budget of 5. The Out position is
// the failsafe state. Additional options override the preset.
func NewPneumaticActuator(ctx context.Context, provider pv.Provider, prefix string, name string, opts ...Option) (*Actuator, error) {
	return newPreset(ctx, provider, prefix, name, []Option{
		WithStateLabels("In", "Out"),
		WithChannelUIDs("In", "Out"),
		WithMaxRetries(5),
	}, opts)
}

func newPreset(ctx context.Context, provider pv.Provider, prefix string, name string, preset []Option, opts []Option) (*Actuator, error) {
	cfg, err := NewConfig(prefix, name, append(preset, opts...)...)
	if err != nil {
		return nil, err
	}

	return NewActuator(ctx, provider, cfg)
}
