// Package twostateintegration contains integration tests that exercise full
// actuator lifecycles against the simulated device, crossing the pvsim and
// twostate package boundaries the way a beamline deployment wires them.
package twostateintegration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pvsim"
	"github.com/arloliu/go-beamline/twostate"
)

const shutterPrefix = "IT:31ID-EPS{Sh:FE}"

func quietLogger() logger.Logger {
	return logger.NewSlog(logger.ErrorLevel, false)
}

// newSimulatedShutter installs a simulated front-end shutter on a fresh
// provider and builds a photon shutter actuator on top of it.
func newSimulatedShutter(t *testing.T, iocOpts []pvsim.IOCOption, actOpts ...twostate.Option) (*twostate.Actuator, *pvsim.TwoStateIOC) {
	t.Helper()

	provider := pvsim.NewProvider()

	ioc := pvsim.NewTwoStateIOC(shutterPrefix, iocOpts...)
	require.NoError(t, ioc.Install(provider))

	opts := append([]twostate.Option{
		twostate.WithRetryDelay(time.Millisecond),
		twostate.WithLogger(quietLogger()),
	}, actOpts...)

	act, err := twostate.NewPhotonShutter(testContext(t), provider, shutterPrefix, "front-end shutter", opts...)
	require.NoError(t, err)

	return act, ioc
}

func stateIs(act *twostate.Actuator, want string) func() bool {
	return func() bool {
		state, err := act.State()
		return err == nil && state == want
	}
}

// TestFlakyDevice_RetriesUntilClosed drives a shutter whose hardware consumes
// three command writes before acting.
//
// Timeline:
//  1. The readback starts at Open, so Set(Closed) claims the slot and writes once.
//  2. The device drops the write and acknowledges "None" with the readback away
//     from the target, so the command is re-issued after the retry delay.
//  3. The third write latches: the readback flips to Closed and resolves the
//     handle before the final acknowledgment arrives.
func TestFlakyDevice_RetriesUntilClosed(t *testing.T) {
	require := require.New(t)

	shutter, _ := newSimulatedShutter(t, []pvsim.IOCOption{pvsim.WithRequiredAttempts(3)})

	st, err := shutter.Set("Closed")
	require.NoError(err)

	ctx, cancel := context.WithTimeout(testContext(t), 2*time.Second)
	defer cancel()

	require.NoError(st.Wait(ctx))
	require.True(st.Succeeded())

	state, err := shutter.State()
	require.NoError(err)
	require.Equal("Closed", state)

	m := shutter.GetMetrics()
	require.EqualValues(1, m.SetCount.Load())
	require.EqualValues(1, m.SetSuccessCount.Load())
	require.EqualValues(3, m.CommandWriteCount.Load())
	require.EqualValues(2, m.RetryCount.Load())
}

// TestStubbornDevice_ExhaustsRetryBudget drives a device that never acts
// within the retry budget and verifies the operation resolves
// ErrRetriesExhausted after budget+1 command writes.
func TestStubbornDevice_ExhaustsRetryBudget(t *testing.T) {
	require := require.New(t)

	shutter, _ := newSimulatedShutter(t,
		[]pvsim.IOCOption{pvsim.WithRequiredAttempts(100)},
		twostate.WithMaxRetries(2),
	)

	st, err := shutter.Set("Closed")
	require.NoError(err)

	ctx, cancel := context.WithTimeout(testContext(t), 2*time.Second)
	defer cancel()

	require.ErrorIs(st.Wait(ctx), twostate.ErrRetriesExhausted)

	state, err := shutter.State()
	require.NoError(err)
	require.Equal("Open", state)

	m := shutter.GetMetrics()
	require.EqualValues(1, m.SetFailureCount.Load())
	require.EqualValues(3, m.CommandWriteCount.Load())
	require.EqualValues(2, m.RetryCount.Load())
}

// TestDisabledFacility_FailsFastAndRecovers verifies the enable gate end to
// end: a move attempted while the facility disables the device resolves
// ErrMovesDisabled without a single command write and trips the fail
// indicator. Re-enabling lets the next move proceed, and the successful write
// clears the indicator.
func TestDisabledFacility_FailsFastAndRecovers(t *testing.T) {
	require := require.New(t)

	shutter, ioc := newSimulatedShutter(t, []pvsim.IOCOption{pvsim.WithEnabled(false)})

	ctx, cancel := context.WithTimeout(testContext(t), 2*time.Second)
	defer cancel()

	st, err := shutter.Set("Closed")
	require.NoError(err)
	require.ErrorIs(st.Wait(ctx), twostate.ErrMovesDisabled)

	require.EqualValues(1, ioc.Fail(1).Raw())
	require.EqualValues(0, shutter.GetMetrics().CommandWriteCount.Load())
	require.EqualValues(1, shutter.GetMetrics().DisabledCount.Load())

	ioc.Enable().Post(1)

	st, err = shutter.Set("Closed")
	require.NoError(err)
	require.NoError(st.Wait(ctx))

	require.EqualValues(0, ioc.Fail(1).Raw())

	state, err := shutter.State()
	require.NoError(err)
	require.Equal("Closed", state)
}

// TestHardwareError_LatchedCommandNeverMoves drives a device whose hardware
// error flag is raised: the command latches "Done" and the fail indicator
// trips, but the readback never changes. The latched acknowledgment must stop
// the retry loop, the caller's deadline expires, and Cancel resolves the
// handle.
func TestHardwareError_LatchedCommandNeverMoves(t *testing.T) {
	require := require.New(t)

	shutter, ioc := newSimulatedShutter(t, []pvsim.IOCOption{pvsim.WithHardwareError()})

	st, err := shutter.Set("Closed")
	require.NoError(err)

	ctx, cancel := context.WithTimeout(testContext(t), 100*time.Millisecond)
	defer cancel()

	require.ErrorIs(st.Wait(ctx), context.DeadlineExceeded)
	require.False(st.Done())

	require.True(shutter.Cancel())
	require.ErrorIs(st.Err(), twostate.ErrCanceled)

	require.EqualValues(1, ioc.Fail(1).Raw())
	require.EqualValues(1, shutter.GetMetrics().CommandWriteCount.Load())
	require.EqualValues(0, shutter.GetMetrics().RetryCount.Load())

	state, err := shutter.State()
	require.NoError(err)
	require.Equal("Open", state)
}
