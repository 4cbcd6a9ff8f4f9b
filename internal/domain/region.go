package domain

import (
	"fmt"
	"strings"
)

// Level is an administrative tier. Its numeric value equals the number of
// code segments at that tier.
type Level int

const (
	LevelProvince    Level = 1
	LevelDistrict    Level = 2
	LevelSubdistrict Level = 3
	LevelVillage     Level = 4
)

var levelNames = map[Level]string{
	LevelProvince:    "province",
	LevelDistrict:    "district",
	LevelSubdistrict: "subdistrict",
	LevelVillage:     "village",
}

// Levels lists every administrative tier from the top down.
var Levels = []Level{LevelProvince, LevelDistrict, LevelSubdistrict, LevelVillage}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the four administrative tiers.
func (l Level) Valid() bool { return l >= LevelProvince && l <= LevelVillage }

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel accepts a level name ("district") case-insensitively.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, InvalidArgumentf("unknown region level %q", s)
}

// RegionRecord is one row of the administrative hierarchy.
// ParentCode is empty for provinces.
type RegionRecord struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Level      Level  `json:"level"`
	ParentCode string `json:"parent_code,omitempty"`
}

// CodeLevel validates a region code and returns the level implied by its
// segment count. Every segment must be a non-empty run of ASCII digits.
func CodeLevel(code string) (Level, error) {
	if code == "" {
		return 0, InvalidArgumentf("region code is empty")
	}
	segments := strings.Split(code, ".")
	if len(segments) > int(LevelVillage) {
		return 0, InvalidArgumentf("region code %q has %d segments, at most %d allowed", code, len(segments), LevelVillage)
	}
	for _, seg := range segments {
		if seg == "" {
			return 0, InvalidArgumentf("region code %q has an empty segment", code)
		}
		for i := 0; i < len(seg); i++ {
			if seg[i] < '0' || seg[i] > '9' {
				return 0, InvalidArgumentf("region code %q has non-numeric segment %q", code, seg)
			}
		}
	}
	return Level(len(segments)), nil
}

// ParentCode returns code with its last segment removed, or "" for a
// province-level code.
func ParentCode(code string) string {
	i := strings.LastIndexByte(code, '.')
	if i < 0 {
		return ""
	}
	return code[:i]
}

// NewRegionRecord derives level and parent from the code.
func NewRegionRecord(code, name string) (RegionRecord, error) {
	code = strings.TrimSpace(code)
	level, err := CodeLevel(code)
	if err != nil {
		return RegionRecord{}, err
	}
	return RegionRecord{
		Code:       code,
		Name:       strings.TrimSpace(name),
		Level:      level,
		ParentCode: ParentCode(code),
	}, nil
}
