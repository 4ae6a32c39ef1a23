package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUpdate(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantID  string
		wantKey string
		wantErr bool
	}{
		{"Simple", "39f1f7fa-aeef-4d83-a802-c1c7f5ff5cb8/scan_id", "39f1f7fa-aeef-4d83-a802-c1c7f5ff5cb8", "scan_id", false},
		{"KeyWithSlashes", "uuid/detector/roi/1", "uuid", "detector/roi/1", false},
		{"NoSeparator", "scan_id", "", "", true},
		{"EmptyKey", "uuid/", "", "", true},
		{"EmptyID", "/scan_id", "", "", true},
		{"Empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			id, key, err := parseUpdate(tt.payload)
			if tt.wantErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			require.Equal(tt.wantID, id)
			require.Equal(tt.wantKey, key)
		})
	}
}

func FuzzParseUpdate(f *testing.F) {
	f.Add("39f1f7fa-aeef-4d83-a802-c1c7f5ff5cb8/scan_id")
	f.Add("uuid/detector/roi/1")
	f.Add("scan_id")
	f.Add("/")
	f.Add("")

	f.Fuzz(func(t *testing.T, payload string) {
		id, key, err := parseUpdate(payload)
		if err != nil {
			return
		}
		if id == "" || key == "" {
			t.Fatalf("parseUpdate(%q) accepted empty parts: id=%q key=%q", payload, id, key)
		}
		if id+"/"+key != payload {
			t.Fatalf("parseUpdate(%q) is not lossless: id=%q key=%q", payload, id, key)
		}
	})
}
