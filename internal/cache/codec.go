package cache

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Remote payloads carry a one-byte header so small values skip compression.
const (
	codecRaw  byte = 0
	codecZstd byte = 1

	compressThreshold = 512
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func encodeValue(v []byte) []byte {
	if len(v) < compressThreshold {
		out := make([]byte, 0, len(v)+1)
		return append(append(out, codecRaw), v...)
	}
	out := make([]byte, 1, len(v)/2+1)
	out[0] = codecZstd
	return zstdEncoder.EncodeAll(v, out)
}

func decodeValue(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty payload")
	}
	switch b[0] {
	case codecRaw:
		return append([]byte(nil), b[1:]...), nil
	case codecZstd:
		out, err := zstdDecoder.DecodeAll(b[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown codec %d", b[0])
	}
}
