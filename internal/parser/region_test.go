package parser

import (
	"bytes"
	"testing"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegionCSV(t *testing.T) {
	records, err := ParseRegionCSV(readFixture(t, "wilayah.csv"))
	require.NoError(t, err)
	require.Len(t, records, 22)

	assert.Equal(t, domain.RegionRecord{Code: "11", Name: "Aceh", Level: domain.LevelProvince}, records[0])
	assert.Equal(t, domain.RegionRecord{Code: "33.26.16.1001", Name: "Kemplong", Level: domain.LevelVillage, ParentCode: "33.26.16"}, records[13])
}

func TestParseRegionCSV_HeaderQuotesAndBlankLines(t *testing.T) {
	raw := "code,name\n\n33,Jawa Tengah\n33.26,\"Pekalongan, Kab.\"\n"
	records, err := ParseRegionCSV([]byte(raw))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Pekalongan, Kab.", records[1].Name)
}

func TestParseRegionCSV_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("33,Jawa Tengah\n33.26,Kabupaten Pekalongan\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	records, err := ParseRegionCSV(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParseRegionCSV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"single column", "33\n"},
		{"non-numeric", "3a,Jawa\n"},
		{"too deep", "33.26.16.1001.1,Nowhere\n"},
		{"empty name", "33, \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegionCSV([]byte(tt.raw))
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParseDispatch(t *testing.T) {
	v, err := Parse(KindRegionCSV, []byte("33,Jawa Tengah\n"))
	require.NoError(t, err)
	assert.IsType(t, []domain.RegionRecord{}, v)

	_, err = Parse(Kind("bogus"), nil)
	assert.Error(t, err)
}
