package pvsim

import (
	"sync"
)

// Raw codes shared by the two-state device's enum PVs.
const (
	cmdIdle   int32 = 0 // "None": no command pending
	cmdDone   int32 = 1 // "Done": command latched by the device
	boolFalse int32 = 0
	boolTrue  int32 = 1
)

var (
	defaultPosLabels = []string{"Open", "Closed"}
	cmdLabels        = []string{"None", "Done"}
	boolLabels       = []string{"False", "True"}
)

// IOCOption configures a TwoStateIOC at construction time.
type IOCOption func(*TwoStateIOC)

// WithRequiredAttempts sets how many command writes the device consumes
// before it acts; earlier writes are dropped with a "None" acknowledgment.
// The default is 1: the device acts on the first write.
func WithRequiredAttempts(n int) IOCOption {
	return func(ioc *TwoStateIOC) {
		if n > 0 {
			ioc.required = n
		}
	}
}

// WithPositionLabels sets the two position readback labels. The default is
// "Open"/"Closed"; pneumatic actuators use "In"/"Out".
func WithPositionLabels(state1, state2 string) IOCOption {
	return func(ioc *TwoStateIOC) {
		ioc.posLabels = []string{state1, state2}
	}
}

// WithChannelUIDs sets the per-side channel name parts used in the command
// and fail-indicator PV names. The default is "Opn"/"Cls".
func WithChannelUIDs(uid1, uid2 string) IOCOption {
	return func(ioc *TwoStateIOC) {
		ioc.uids = [2]string{uid1, uid2}
	}
}

// WithEnabled sets the initial state of the facility enable PV. Enabled by
// default.
func WithEnabled(enabled bool) IOCOption {
	return func(ioc *TwoStateIOC) {
		ioc.enabled = enabled
	}
}

// WithHardwareError starts the device with its hardware-error flag raised:
// commands latch ("Done") and the fail indicator trips, but nothing moves.
func WithHardwareError() IOCOption {
	return func(ioc *TwoStateIOC) {
		ioc.hwErrorInit = true
	}
}

// WithStatusError starts the device with its position-status-error flag
// raised: commands latch ("Done") but the readback never updates.
func WithStatusError() IOCOption {
	return func(ioc *TwoStateIOC) {
		ioc.stsErrorInit = true
	}
}

// TwoStateIOC simulates an EPS two-state device: a position readback, one
// command PV per target state, per-state fail indicators, a facility enable
// PV, and two error-injection PVs.
//
// A command write that the device accepts updates the position readback
// before the acknowledgment value is stored, so readback monitor events
// always precede the corresponding acknowledgment event, as on the real
// hardware.
type TwoStateIOC struct {
	prefix    string
	posLabels []string
	uids      [2]string
	required  int

	enabled      bool
	hwErrorInit  bool
	stsErrorInit bool

	mu       sync.Mutex // guards attempts, shared by both command PVs
	attempts int

	pos      *PV
	cmds     [2]*PV
	fails    [2]*PV
	enable   *PV
	hwError  *PV
	stsError *PV
}

// NewTwoStateIOC creates a simulated device whose PV names start with
// prefix, e.g. "XF:31ID-EPS{Sh:FE}".
func NewTwoStateIOC(prefix string, opts ...IOCOption) *TwoStateIOC {
	ioc := &TwoStateIOC{
		prefix:    prefix,
		posLabels: defaultPosLabels,
		uids:      [2]string{"Opn", "Cls"},
		required:  1,
		enabled:   true,
	}

	for _, opt := range opts {
		opt(ioc)
	}

	ioc.pos = NewEnumPV(prefix+"Pos-Sts", ioc.posLabels, 0, WithReadOnly())

	for side := 0; side < 2; side++ {
		ioc.cmds[side] = NewEnumPV(prefix+"Cmd:"+ioc.uids[side]+"-Cmd", cmdLabels, cmdIdle,
			WithPutter(ioc.commandPutter(side)))
		// fail indicators stay client-writable: the actuator marks them when
		// a move is attempted while disabled
		ioc.fails[side] = NewEnumPV(prefix+"Sts:Fail"+ioc.uids[side]+"-Sts", boolLabels, boolFalse)
	}

	ioc.enable = NewEnumPV(prefix+"Enbl-Sts", boolLabels, boolToRaw(ioc.enabled))
	ioc.hwError = NewEnumPV(prefix+"HwError-Sts", boolLabels, boolToRaw(ioc.hwErrorInit))
	ioc.stsError = NewEnumPV(prefix+"StsError-Sts", boolLabels, boolToRaw(ioc.stsErrorInit))

	return ioc
}

// Install registers all of the device's PVs with the provider.
func (ioc *TwoStateIOC) Install(p *Provider) error {
	return p.Add(ioc.pos, ioc.cmds[0], ioc.cmds[1], ioc.fails[0], ioc.fails[1],
		ioc.enable, ioc.hwError, ioc.stsError)
}

// Prefix returns the PV name prefix.
func (ioc *TwoStateIOC) Prefix() string {
	return ioc.prefix
}

// Position returns the position readback PV.
func (ioc *TwoStateIOC) Position() *PV {
	return ioc.pos
}

// Command returns the command PV for side 0 (state1) or 1 (state2).
func (ioc *TwoStateIOC) Command(side int) *PV {
	return ioc.cmds[side]
}

// Fail returns the fail-to-reach-state indicator PV for side 0 or 1.
func (ioc *TwoStateIOC) Fail(side int) *PV {
	return ioc.fails[side]
}

// Enable returns the facility enable PV.
func (ioc *TwoStateIOC) Enable() *PV {
	return ioc.enable
}

// HardwareError returns the hardware-error injection PV.
func (ioc *TwoStateIOC) HardwareError() *PV {
	return ioc.hwError
}

// StatusError returns the position-status-error injection PV.
func (ioc *TwoStateIOC) StatusError() *PV {
	return ioc.stsError
}

// commandPutter builds the write interceptor for one command PV. The stored
// acknowledgment value is what the retry loop in the client observes:
// "None" means the command was consumed (dropped, ignored, or completed),
// "Done" means the device latched it.
func (ioc *TwoStateIOC) commandPutter(side int) PutFunc {
	return func(raw int32) (int32, error) {
		if raw == cmdIdle {
			// clients clear commands by writing "None"; nothing happens
			return cmdIdle, nil
		}
		if ioc.pos.Raw() == int32(side) {
			// already at the target state
			return cmdIdle, nil
		}
		if ioc.enable.Raw() == boolFalse {
			ioc.fails[side].Post(boolTrue)
			return cmdIdle, nil
		}
		if !ioc.consumeAttempt() {
			// flaky hardware dropped the command
			return cmdIdle, nil
		}
		if ioc.hwError.Raw() == boolTrue {
			ioc.fails[side].Post(boolTrue)
			return cmdDone, nil
		}
		ioc.fails[side].Post(boolFalse)
		if ioc.stsError.Raw() == boolTrue {
			return cmdDone, nil
		}

		// readback updates before the ack value is stored
		ioc.pos.Post(int32(side))

		return cmdIdle, nil
	}
}

// consumeAttempt counts a command write against the device's required
// attempts. It returns true when the device should act on this write.
func (ioc *TwoStateIOC) consumeAttempt() bool {
	ioc.mu.Lock()
	defer ioc.mu.Unlock()

	ioc.attempts++
	if ioc.attempts < ioc.required {
		return false
	}
	ioc.attempts = 0

	return true
}

func boolToRaw(b bool) int32 {
	if b {
		return boolTrue
	}

	return boolFalse
}
