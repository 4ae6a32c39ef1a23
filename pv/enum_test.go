package pv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeLabel(t *testing.T) {
	require := require.New(t)

	labels := []string{"Open", "Closed"}

	tests := []struct {
		name    string
		raw     int32
		want    string
		wantErr error
	}{
		{name: "first index", raw: 0, want: "Open"},
		{name: "last index", raw: 1, want: "Closed"},
		{name: "negative index", raw: -1, wantErr: ErrLabelIndex},
		{name: "index past table", raw: 2, wantErr: ErrLabelIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLabel(labels, tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(err, tt.wantErr)
				return
			}
			require.NoError(err)
			require.Equal(tt.want, got)
		})
	}
}

func TestDecodeLabel_EmptyTable(t *testing.T) {
	_, err := DecodeLabel(nil, 0)
	require.ErrorIs(t, err, ErrLabelIndex)
}

func TestEncodeLabel(t *testing.T) {
	require := require.New(t)

	labels := []string{"None", "Done"}

	raw, err := EncodeLabel(labels, "Done")
	require.NoError(err)
	require.Equal(int32(1), raw)

	raw, err = EncodeLabel(labels, "None")
	require.NoError(err)
	require.Equal(int32(0), raw)

	_, err = EncodeLabel(labels, "Maybe")
	require.ErrorIs(err, ErrUnknownLabel)
}
