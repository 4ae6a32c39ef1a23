package twostate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-beamline/logger"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("XF:31ID-EPS{Sh:FE}", "front-end shutter")
	require.NoError(err)

	require.Equal("XF:31ID-EPS{Sh:FE}", cfg.Prefix())
	require.Equal("front-end shutter", cfg.Name())

	state1, state2 := cfg.StateLabels()
	require.Equal("Open", state1)
	require.Equal("Closed", state2)

	require.Equal(5, cfg.MaxRetries())
	require.Equal(500*time.Millisecond, cfg.RetryDelay())
	require.Equal("None", cfg.AckIdleLabel())
	require.Equal("True", cfg.EnabledLabel())
	require.True(cfg.EnableGate())
	require.Equal("Closed", cfg.FailsafeLabel())
	require.NotNil(cfg.Logger())
}

func TestNewConfig_RequiredArguments(t *testing.T) {
	require := require.New(t)

	_, err := NewConfig("", "front-end shutter")
	require.ErrorContains(err, "prefix is empty")

	_, err = NewConfig("XF:31ID-EPS{Sh:FE}", "")
	require.ErrorContains(err, "name is empty")
}

func TestNewConfig_ChannelNames(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("XF:31ID-EPS{Sh:FE}", "front-end shutter")
	require.NoError(err)

	names := cfg.ChannelNames()
	require.Equal("XF:31ID-EPS{Sh:FE}Cmd:Opn-Cmd", names.Command1)
	require.Equal("XF:31ID-EPS{Sh:FE}Cmd:Cls-Cmd", names.Command2)
	require.Equal("XF:31ID-EPS{Sh:FE}Pos-Sts", names.Readback)
	require.Equal("XF:31ID-EPS{Sh:FE}Sts:FailOpn-Sts", names.Fail1)
	require.Equal("XF:31ID-EPS{Sh:FE}Sts:FailCls-Sts", names.Fail2)
	require.Equal("XF:31ID-EPS{Sh:FE}Enbl-Sts", names.Enable)
}

func TestNewConfig_CustomUIDs(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("XF:31ID-OP{Fltr:1}", "filter insert",
		WithStateLabels("In", "Out"),
		WithChannelUIDs("In", "Out"),
	)
	require.NoError(err)

	names := cfg.ChannelNames()
	require.Equal("XF:31ID-OP{Fltr:1}Cmd:In-Cmd", names.Command1)
	require.Equal("XF:31ID-OP{Fltr:1}Cmd:Out-Cmd", names.Command2)
	require.Equal("XF:31ID-OP{Fltr:1}Sts:FailIn-Sts", names.Fail1)
	require.Equal("XF:31ID-OP{Fltr:1}Sts:FailOut-Sts", names.Fail2)
}

func TestNewConfig_OptionValidation(t *testing.T) {
	tests := []struct {
		name   string
		opt    Option
		errMsg string
	}{
		{"EmptyStateLabel", WithStateLabels("", "Closed"), "can't be empty"},
		{"EqualStateLabels", WithStateLabels("Open", "Open"), "must differ"},
		{"EmptyChannelUID", WithChannelUIDs("Opn", ""), "can't be empty"},
		{"NegativeMaxRetries", WithMaxRetries(-1), "must be >= 0"},
		{"NegativeRetryDelay", WithRetryDelay(-time.Second), "must be >= 0"},
		{"EmptyAckIdleLabel", WithAckIdleLabel(""), "can't be empty"},
		{"EmptyEnabledLabel", WithEnabledLabel(""), "can't be empty"},
		{"NilLogger", WithLogger(nil), "can't be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig("XF:31ID-EPS{Sh:FE}", "front-end shutter", tt.opt)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestNewConfig_Options(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig("XF:31ID-EPS{GV:1}", "gate valve",
		WithMaxRetries(1),
		WithRetryDelay(time.Second),
		WithAckIdleLabel("Idle"),
		WithEnabledLabel("Enabled"),
		WithoutEnableGate(),
		WithFailsafeState1(),
		WithLogger(logger.NewSlog(logger.DebugLevel, false)),
	)
	require.NoError(err)

	require.Equal(1, cfg.MaxRetries())
	require.Equal(time.Second, cfg.RetryDelay())
	require.Equal("Idle", cfg.AckIdleLabel())
	require.Equal("Enabled", cfg.EnabledLabel())
	require.False(cfg.EnableGate())
	require.Equal("Open", cfg.FailsafeLabel())
}

func TestOption_ApplyToNilConfig(t *testing.T) {
	require := require.New(t)

	require.ErrorIs(WithMaxRetries(1).apply(nil), ErrConfigNil)
}
