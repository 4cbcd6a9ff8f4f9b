package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ParseRegionCSV parses the headerless "code,name" region table. Gzip
// compressed input is detected by its magic bytes. Blank lines and a leading
// "code,name" header are skipped; anything else malformed fails the parse.
func ParseRegionCSV(raw []byte) ([]domain.RegionRecord, error) {
	var r io.Reader = bytes.NewReader(raw)
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, parseErr(KindRegionCSV, "", "open gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	var records []domain.RegionRecord
	for first := true; ; first = false {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseErr(KindRegionCSV, "", "%w", err)
		}
		n, _ := cr.FieldPos(0)
		line := fmt.Sprintf("line %d", n)
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if first && len(row) >= 2 && strings.EqualFold(strings.TrimSpace(row[0]), "code") {
			continue
		}
		if len(row) < 2 {
			return nil, parseErr(KindRegionCSV, line, "expected code,name; got %d field(s)", len(row))
		}
		rec, err := domain.NewRegionRecord(row[0], row[1])
		if err != nil {
			return nil, parseErr(KindRegionCSV, line, "%w", err)
		}
		if rec.Name == "" {
			return nil, parseErr(KindRegionCSV, line, "empty name for %s", rec.Code)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, parseErr(KindRegionCSV, "", "no records")
	}
	return records, nil
}
