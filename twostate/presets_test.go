package twostate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-beamline/logger"
	"github.com/arloliu/go-beamline/pvsim"
)

func quietTestLogger() Option {
	return WithLogger(logger.NewSlog(logger.ErrorLevel, false))
}

func TestNewPhotonShutter(t *testing.T) {
	require := require.New(t)

	provider := pvsim.NewProvider()
	ioc := pvsim.NewTwoStateIOC("XF:31ID-EPS{Sh:FE}")
	require.NoError(ioc.Install(provider))

	act, err := NewPhotonShutter(context.Background(), provider, "XF:31ID-EPS{Sh:FE}", "front-end shutter",
		quietTestLogger())
	require.NoError(err)
	require.Equal(5, act.cfg.MaxRetries())

	st, err := act.Set("Closed")
	require.NoError(err)
	require.NoError(waitStatus(t, st))

	state, err := act.State()
	require.NoError(err)
	require.Equal("Closed", state)
}

func TestNewGateValve(t *testing.T) {
	require := require.New(t)

	// a valve that never acts exhausts the small budget after one retry
	provider := pvsim.NewProvider()
	ioc := pvsim.NewTwoStateIOC("XF:31ID-EPS{GV:1}", pvsim.WithRequiredAttempts(100))
	require.NoError(ioc.Install(provider))

	act, err := NewGateValve(context.Background(), provider, "XF:31ID-EPS{GV:1}", "gate valve",
		WithRetryDelay(time.Millisecond), quietTestLogger())
	require.NoError(err)
	require.Equal(1, act.cfg.MaxRetries())

	st, err := act.Set("Closed")
	require.NoError(err)
	require.ErrorIs(waitStatus(t, st), ErrRetriesExhausted)
	require.Equal(uint64(2), act.GetMetrics().CommandWriteCount.Load())
}

func TestNewPneumaticActuator(t *testing.T) {
	require := require.New(t)

	provider := pvsim.NewProvider()
	ioc := pvsim.NewTwoStateIOC("XF:31ID-OP{Fltr:1}",
		pvsim.WithPositionLabels("In", "Out"),
		pvsim.WithChannelUIDs("In", "Out"))
	require.NoError(ioc.Install(provider))

	act, err := NewPneumaticActuator(context.Background(), provider, "XF:31ID-OP{Fltr:1}", "filter insert",
		WithRetryDelay(time.Millisecond), quietTestLogger())
	require.NoError(err)
	require.Equal("Out", act.cfg.FailsafeLabel())

	st, err := act.Set("Out")
	require.NoError(err)
	require.NoError(waitStatus(t, st))

	state, err := act.State()
	require.NoError(err)
	require.Equal("Out", state)
}

func TestPresets_OptionsOverride(t *testing.T) {
	require := require.New(t)

	provider := pvsim.NewProvider()
	ioc := pvsim.NewTwoStateIOC("XF:31ID-EPS{Sh:FE}")
	require.NoError(ioc.Install(provider))

	act, err := NewPhotonShutter(context.Background(), provider, "XF:31ID-EPS{Sh:FE}", "front-end shutter",
		WithMaxRetries(0), quietTestLogger())
	require.NoError(err)
	require.Equal(0, act.cfg.MaxRetries())
}
