package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec(t *testing.T) {
	tests := []struct {
		name   string
		value  []byte
		header byte
	}{
		{"empty", []byte{}, codecRaw},
		{"small", []byte(`{"magnitude":5.4}`), codecRaw},
		{"large", bytes.Repeat([]byte(`{"weather":"Cerah"},`), 200), codecZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encodeValue(tt.value)
			assert.Equal(t, tt.header, enc[0])

			dec, err := decodeValue(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.value, dec)
		})
	}
}

func TestCodec_CompressesLargeValues(t *testing.T) {
	v := bytes.Repeat([]byte("Hujan Ringan "), 100)
	assert.Less(t, len(encodeValue(v)), len(v))
}

func TestDecodeValue_Rejects(t *testing.T) {
	_, err := decodeValue(nil)
	assert.Error(t, err)

	_, err = decodeValue([]byte{9, 'x'})
	assert.Error(t, err)

	_, err = decodeValue([]byte{codecZstd, 'n', 'o', 't'})
	assert.Error(t, err)
}
