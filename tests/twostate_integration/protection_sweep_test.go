package twostateintegration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-beamline/pvsim"
	"github.com/arloliu/go-beamline/suspend"
	"github.com/arloliu/go-beamline/twostate"
)

// TestBeamPermitSuspension_FullStack wires the full protection chain: a
// simulated shutter, a beam-permit PV, and a suspender owning the shutter.
//
// Timeline:
//  1. The shutter sits Open with the permit up.
//  2. The permit drops: the suspender trips and drives the shutter to its
//     Closed failsafe.
//  3. The permit returns: after the recovery delay the suspender rearms and
//     resumes the shutter back to Open.
func TestBeamPermitSuspension_FullStack(t *testing.T) {
	require := require.New(t)

	provider := pvsim.NewProvider()

	ioc := pvsim.NewTwoStateIOC(shutterPrefix)
	require.NoError(ioc.Install(provider))

	permit := pvsim.NewEnumPV("IT:31ID-EPS{BmPermit}Sts-Sts", []string{"False", "True"}, 1)
	require.NoError(provider.Add(permit))

	shutter, err := twostate.NewPhotonShutter(testContext(t), provider, shutterPrefix, "front-end shutter",
		twostate.WithRetryDelay(time.Millisecond),
		twostate.WithLogger(quietLogger()),
	)
	require.NoError(err)

	sus, err := suspend.New(permit, suspend.TripWhenLow(),
		suspend.WithName("beam permit"),
		suspend.WithRecoveryDelay(20*time.Millisecond),
		suspend.WithLogger(quietLogger()),
	)
	require.NoError(err)

	sus.Register(shutter)
	require.NoError(sus.Start(testContext(t)))
	defer sus.Close()

	require.True(stateIs(shutter, "Open")())

	permit.Post(0)
	require.Eventually(func() bool {
		return sus.Tripped() && stateIs(shutter, "Closed")()
	}, 2*time.Second, 5*time.Millisecond)

	permit.Post(1)
	require.Eventually(stateIs(shutter, "Open"), 2*time.Second, 5*time.Millisecond)

	require.Eventually(func() bool {
		return sus.State() == suspend.StateArmed
	}, 2*time.Second, 5*time.Millisecond)
}

// TestRegistrySweep_MixedDeviceFleet registers a photon shutter, a gate
// valve, and a pneumatic insert on one provider and verifies StopAll drives
// every device to its failsafe state and ResumeAll restores them.
func TestRegistrySweep_MixedDeviceFleet(t *testing.T) {
	require := require.New(t)

	provider := pvsim.NewProvider()

	shutterIOC := pvsim.NewTwoStateIOC("IT:31ID-EPS{Sh:FE}")
	valveIOC := pvsim.NewTwoStateIOC("IT:31ID-EPS{GV:1}")
	insertIOC := pvsim.NewTwoStateIOC("IT:31ID-EPS{Flt:1}",
		pvsim.WithPositionLabels("In", "Out"),
		pvsim.WithChannelUIDs("In", "Out"),
	)
	require.NoError(shutterIOC.Install(provider))
	require.NoError(valveIOC.Install(provider))
	require.NoError(insertIOC.Install(provider))

	base := []twostate.Option{
		twostate.WithRetryDelay(time.Millisecond),
		twostate.WithLogger(quietLogger()),
	}

	shutter, err := twostate.NewPhotonShutter(testContext(t), provider, shutterIOC.Prefix(), "front-end shutter", base...)
	require.NoError(err)
	valve, err := twostate.NewGateValve(testContext(t), provider, valveIOC.Prefix(), "gate valve 1", base...)
	require.NoError(err)
	insert, err := twostate.NewPneumaticActuator(testContext(t), provider, insertIOC.Prefix(), "filter 1", base...)
	require.NoError(err)

	registry := twostate.NewRegistry()
	require.NoError(registry.Register(shutter))
	require.NoError(registry.Register(valve))
	require.NoError(registry.Register(insert))
	require.Equal([]string{"filter 1", "front-end shutter", "gate valve 1"}, registry.Names())

	// every device starts away from its failsafe state
	require.True(stateIs(shutter, "Open")())
	require.True(stateIs(valve, "Open")())
	require.True(stateIs(insert, "In")())

	ctx, cancel := context.WithTimeout(testContext(t), 5*time.Second)
	defer cancel()

	require.NoError(registry.StopAll(ctx))
	require.True(stateIs(shutter, "Closed")())
	require.True(stateIs(valve, "Closed")())
	require.True(stateIs(insert, "Out")())

	require.NoError(registry.ResumeAll(ctx))
	require.True(stateIs(shutter, "Open")())
	require.True(stateIs(valve, "Open")())
	require.True(stateIs(insert, "In")())
}
