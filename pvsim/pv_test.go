package pvsim

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-beamline/pv"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) record(tag string) pv.MonitorFunc {
	return func(v pv.Value) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, fmt.Sprintf("%s=%s", tag, v.Label))
	}
}

func (r *eventRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	copy(out, r.events)

	return out
}

func TestPV_ReadAndDecode(t *testing.T) {
	require := require.New(t)

	p := NewEnumPV("SIM{Dev:1}Pos-Sts", []string{"Open", "Closed"}, 1)

	val, err := p.Read()
	require.NoError(err)
	require.Equal(int32(1), val.Raw)
	require.Equal("Closed", val.Label)
	require.False(val.Time.IsZero())

	labels, err := p.EnumLabels()
	require.NoError(err)
	require.Equal([]string{"Open", "Closed"}, labels)

	// the returned table is a copy
	labels[0] = "Broken"
	fresh, err := p.EnumLabels()
	require.NoError(err)
	require.Equal("Open", fresh[0])
}

func TestPV_IntPVHasNoEnumLabels(t *testing.T) {
	require := require.New(t)

	p := NewIntPV("SIM{Ring}I", 400)

	_, err := p.EnumLabels()
	require.ErrorIs(err, pv.ErrNoEnumLabels)

	val, err := p.Read()
	require.NoError(err)
	require.Equal(int32(400), val.Raw)
	require.Empty(val.Label)
}

func TestPV_WritePostsEveryTime(t *testing.T) {
	require := require.New(t)

	p := NewEnumPV("SIM{Dev:1}Cmd:Opn-Cmd", []string{"None", "Done"}, 0)

	rec := &eventRecorder{}
	sub, err := p.Subscribe(rec.record("cmd"))
	require.NoError(err)

	// repeated writes of the same value still post monitor events
	require.NoError(p.Write(0))
	require.NoError(p.Write(0))
	require.NoError(p.Write(1))

	require.Equal([]string{"cmd=None", "cmd=None", "cmd=Done"}, rec.snapshot())

	require.NoError(p.Unsubscribe(sub))
	require.NoError(p.Write(0))
	require.Len(rec.snapshot(), 3)

	// unsubscribing twice is a no-op
	require.NoError(p.Unsubscribe(sub))
}

func TestPV_WriteValidation(t *testing.T) {
	require := require.New(t)

	t.Run("enum range", func(t *testing.T) {
		p := NewEnumPV("SIM{Dev:1}Enbl-Sts", []string{"False", "True"}, 1)
		require.ErrorIs(p.Write(2), pv.ErrLabelIndex)
		require.ErrorIs(p.Write(-1), pv.ErrLabelIndex)
	})

	t.Run("read only", func(t *testing.T) {
		p := NewEnumPV("SIM{Dev:1}Pos-Sts", []string{"Open", "Closed"}, 0, WithReadOnly())
		require.ErrorIs(p.Write(1), ErrReadOnly)

		// the owning device still updates it
		p.Post(1)
		require.Equal(int32(1), p.Raw())
	})
}

func TestPV_Putter(t *testing.T) {
	require := require.New(t)

	t.Run("putter chooses stored value", func(t *testing.T) {
		p := NewEnumPV("SIM{Dev:1}Cmd:Cls-Cmd", []string{"None", "Done"}, 0,
			WithPutter(func(raw int32) (int32, error) {
				return 0, nil // device consumes every command
			}))

		rec := &eventRecorder{}
		_, err := p.Subscribe(rec.record("cmd"))
		require.NoError(err)

		require.NoError(p.Write(1))
		require.Equal(int32(0), p.Raw())
		require.Equal([]string{"cmd=None"}, rec.snapshot())
	})

	t.Run("putter rejects write", func(t *testing.T) {
		p := NewEnumPV("SIM{Dev:1}Cmd:Cls-Cmd", []string{"None", "Done"}, 0,
			WithPutter(func(raw int32) (int32, error) {
				return 0, errors.New("interlock")
			}))

		rec := &eventRecorder{}
		_, err := p.Subscribe(rec.record("cmd"))
		require.NoError(err)

		require.ErrorIs(p.Write(1), ErrWriteRejected)
		require.Empty(rec.snapshot())
		require.Equal(int32(0), p.Raw())
	})
}

func TestPV_SubscriberCount(t *testing.T) {
	require := require.New(t)

	p := NewEnumPV("SIM{Dev:1}Pos-Sts", []string{"Open", "Closed"}, 0)
	require.Equal(0, p.SubscriberCount())

	sub1, err := p.Subscribe(func(pv.Value) {})
	require.NoError(err)
	sub2, err := p.Subscribe(func(pv.Value) {})
	require.NoError(err)
	require.Equal(2, p.SubscriberCount())
	require.NotEqual(sub1, sub2)

	require.NoError(p.Unsubscribe(sub1))
	require.Equal(1, p.SubscriberCount())
	require.NoError(p.Unsubscribe(sub2))
	require.Equal(0, p.SubscriberCount())
}

func TestProvider(t *testing.T) {
	require := require.New(t)

	provider := NewProvider()
	p1 := NewEnumPV("SIM{Dev:1}Pos-Sts", []string{"Open", "Closed"}, 0)

	require.NoError(provider.Add(p1))
	require.Equal(1, provider.Size())

	t.Run("resolves registered channel", func(t *testing.T) {
		ch, err := provider.Channel("SIM{Dev:1}Pos-Sts")
		require.NoError(err)
		require.Equal("SIM{Dev:1}Pos-Sts", ch.Name())
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := provider.Channel("SIM{Dev:1}Missing")
		require.ErrorIs(err, pv.ErrChannelNotFound)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		dup := NewEnumPV("SIM{Dev:1}Pos-Sts", []string{"Open", "Closed"}, 0)
		require.ErrorIs(provider.Add(dup), ErrDuplicatePV)
	})

	t.Run("device-side lookup", func(t *testing.T) {
		got, ok := provider.Lookup("SIM{Dev:1}Pos-Sts")
		require.True(ok)
		require.Same(p1, got)
	})
}
