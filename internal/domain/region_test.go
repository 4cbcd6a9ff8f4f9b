package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeLevel(t *testing.T) {
	tests := []struct {
		code    string
		want    Level
		wantErr bool
	}{
		{"33", LevelProvince, false},
		{"33.26", LevelDistrict, false},
		{"33.26.16", LevelSubdistrict, false},
		{"33.26.16.1001", LevelVillage, false},
		{"", 0, true},
		{"33.26.16.1001.1", 0, true},
		{"33..16", 0, true},
		{"33.2a", 0, true},
		{"33.26.", 0, true},
		{" 33", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := CodeLevel(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParentCode(t *testing.T) {
	assert.Equal(t, "", ParentCode("33"))
	assert.Equal(t, "33", ParentCode("33.26"))
	assert.Equal(t, "33.26.16", ParentCode("33.26.16.1001"))
}

func TestNewRegionRecord(t *testing.T) {
	r, err := NewRegionRecord(" 33.26.16.1001 ", " Kemplong ")
	require.NoError(t, err)
	assert.Equal(t, RegionRecord{Code: "33.26.16.1001", Name: "Kemplong", Level: LevelVillage, ParentCode: "33.26.16"}, r)
}

func TestLevelJSON(t *testing.T) {
	b, err := json.Marshal(RegionRecord{Code: "33", Name: "Jawa Tengah", Level: LevelProvince})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"33","name":"Jawa Tengah","level":"province"}`, string(b))

	var r RegionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"code":"33.26","name":"Pekalongan","level":"district","parent_code":"33"}`), &r))
	assert.Equal(t, LevelDistrict, r.Level)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("Village")
	require.NoError(t, err)
	assert.Equal(t, LevelVillage, l)

	_, err = ParseLevel("hamlet")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
