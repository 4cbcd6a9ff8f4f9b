// Package region holds the immutable in-memory index over Indonesia's
// administrative hierarchy: exact code lookup, ordered children per parent,
// and ranked free-text search over names.
package region

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	minQueryRunes      = 2
)

// Index is safe for concurrent use; nothing mutates it after Build returns.
type Index struct {
	records  []domain.RegionRecord // ascending by code
	byCode   map[string]int
	children map[string][]int // parent code ("" for provinces) -> ids ascending by code
	names    []string         // normalized name per id
	grams    map[string][]int // name bigram -> ids ascending
	stats    Stats
	maxLimit int
}

// Stats counts records per level.
type Stats struct {
	Provinces    int `json:"provinces"`
	Districts    int `json:"districts"`
	Subdistricts int `json:"subdistricts"`
	Villages     int `json:"villages"`
	Total        int `json:"total"`
}

// Option configures Build.
type Option func(*Index)

// WithMaxSearchLimit overrides the cap applied to search limits.
func WithMaxSearchLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.maxLimit = n
		}
	}
}

// Build validates records and constructs the index. Any inconsistency is a
// *domain.BuildError: a malformed code, a level or parent that disagrees with
// the code, an empty name, a duplicate code, or a parent that does not exist
// one level up.
func Build(records []domain.RegionRecord, opts ...Option) (*Index, error) {
	ix := &Index{
		records:  slices.Clone(records),
		byCode:   make(map[string]int, len(records)),
		children: make(map[string][]int),
		grams:    make(map[string][]int),
		maxLimit: MaxSearchLimit,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if len(ix.records) == 0 {
		return nil, &domain.BuildError{Reason: "dataset is empty"}
	}

	sort.Slice(ix.records, func(i, j int) bool { return ix.records[i].Code < ix.records[j].Code })

	for id, rec := range ix.records {
		if err := checkRecord(rec); err != nil {
			return nil, err
		}
		if _, dup := ix.byCode[rec.Code]; dup {
			return nil, &domain.BuildError{Code: rec.Code, Reason: "duplicate code"}
		}
		ix.byCode[rec.Code] = id
	}

	ix.names = make([]string, len(ix.records))
	for id, rec := range ix.records {
		if rec.Level != domain.LevelProvince {
			pid, ok := ix.byCode[rec.ParentCode]
			if !ok {
				return nil, &domain.BuildError{Code: rec.Code, Reason: "parent " + rec.ParentCode + " does not exist"}
			}
			if ix.records[pid].Level != rec.Level-1 {
				return nil, &domain.BuildError{Code: rec.Code, Reason: "parent " + rec.ParentCode + " is not one level up"}
			}
		}
		ix.children[rec.ParentCode] = append(ix.children[rec.ParentCode], id)

		ix.names[id] = Normalize(rec.Name)
		for _, g := range bigrams(ix.names[id]) {
			ix.grams[g] = append(ix.grams[g], id)
		}
		ix.stats.add(rec.Level)
	}
	return ix, nil
}

func checkRecord(rec domain.RegionRecord) error {
	level, err := domain.CodeLevel(rec.Code)
	if err != nil {
		return &domain.BuildError{Code: rec.Code, Reason: err.Error()}
	}
	if level != rec.Level {
		return &domain.BuildError{Code: rec.Code, Reason: "level " + rec.Level.String() + " does not match code"}
	}
	if rec.ParentCode != domain.ParentCode(rec.Code) {
		return &domain.BuildError{Code: rec.Code, Reason: "parent code " + rec.ParentCode + " does not match code"}
	}
	if strings.TrimSpace(rec.Name) == "" {
		return &domain.BuildError{Code: rec.Code, Reason: "empty name"}
	}
	return nil
}

func (s *Stats) add(l domain.Level) {
	switch l {
	case domain.LevelProvince:
		s.Provinces++
	case domain.LevelDistrict:
		s.Districts++
	case domain.LevelSubdistrict:
		s.Subdistricts++
	case domain.LevelVillage:
		s.Villages++
	}
	s.Total++
}

// Lookup returns the record with exactly this code.
func (ix *Index) Lookup(code string) (domain.RegionRecord, error) {
	if _, err := domain.CodeLevel(code); err != nil {
		return domain.RegionRecord{}, err
	}
	id, ok := ix.byCode[code]
	if !ok {
		return domain.RegionRecord{}, domain.NotFoundf("region %s not found", code)
	}
	return ix.records[id], nil
}

// Children returns the records at level whose parent is parentCode, ascending
// by code. A level other than one below the parent yields an empty result.
// The empty parent code is the root, whose children are the provinces.
func (ix *Index) Children(parentCode string, level domain.Level) ([]domain.RegionRecord, error) {
	if !level.Valid() {
		return nil, domain.InvalidArgumentf("invalid region level %d", int(level))
	}
	if parentCode == "" {
		if level != domain.LevelProvince {
			return []domain.RegionRecord{}, nil
		}
		return ix.Provinces(), nil
	}
	parent, err := ix.Lookup(parentCode)
	if err != nil {
		return nil, err
	}
	if level != parent.Level+1 {
		return []domain.RegionRecord{}, nil
	}
	return ix.collect(ix.children[parentCode]), nil
}

// Provinces returns every province ascending by code.
func (ix *Index) Provinces() []domain.RegionRecord {
	return ix.collect(ix.children[""])
}

// Path returns the chain of records from the province down to code.
func (ix *Index) Path(code string) ([]domain.RegionRecord, error) {
	rec, err := ix.Lookup(code)
	if err != nil {
		return nil, err
	}
	path := make([]domain.RegionRecord, rec.Level)
	for i := int(rec.Level) - 1; i >= 0; i-- {
		path[i] = rec
		if rec.ParentCode != "" {
			rec = ix.records[ix.byCode[rec.ParentCode]]
		}
	}
	return path, nil
}

// FullPath renders Path as "Jawa Tengah > Kab. Pekalongan > Wiradesa".
func (ix *Index) FullPath(code string) (string, error) {
	path, err := ix.Path(code)
	if err != nil {
		return "", err
	}
	names := make([]string, len(path))
	for i, r := range path {
		names[i] = displayName(r.Name)
	}
	return strings.Join(names, " > "), nil
}

// Search ranks records whose normalized name contains the normalized query:
// exact matches first, then prefix matches, then other substring matches,
// each group ascending by code. Limits above the configured maximum are
// clamped.
func (ix *Index) Search(query string, limit int) ([]domain.RegionRecord, error) {
	if limit <= 0 {
		return nil, domain.InvalidArgumentf("limit must be a positive integer, got %d", limit)
	}
	if limit > ix.maxLimit {
		limit = ix.maxLimit
	}
	q := Normalize(query)
	if utf8.RuneCountInString(q) < minQueryRunes {
		return nil, domain.InvalidArgumentf("query must be at least %d characters", minQueryRunes)
	}

	var exact, prefix, substring []int
	for _, id := range ix.candidates(q) {
		name := ix.names[id]
		switch {
		case name == q:
			exact = append(exact, id)
		case strings.HasPrefix(name, q):
			if len(prefix) < limit {
				prefix = append(prefix, id)
			}
		case strings.Contains(name, q):
			if len(substring) < limit {
				substring = append(substring, id)
			}
		}
	}

	ranked := append(append(exact, prefix...), substring...)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ix.collect(ranked), nil
}

// candidates intersects the posting lists of every bigram in q, smallest list
// first. The result is ascending by id and a superset of the true matches.
func (ix *Index) candidates(q string) []int {
	grams := bigrams(q)
	lists := make([][]int, 0, len(grams))
	for _, g := range grams {
		ids, ok := ix.grams[g]
		if !ok {
			return nil
		}
		lists = append(lists, ids)
	}
	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })

	out := slices.Clone(lists[0])
	for _, next := range lists[1:] {
		out = intersect(out, next)
		if len(out) == 0 {
			return nil
		}
	}
	return out
}

// intersect keeps the ids of a that also appear in b; both are ascending.
func intersect(a, b []int) []int {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func (ix *Index) collect(ids []int) []domain.RegionRecord {
	out := make([]domain.RegionRecord, len(ids))
	for i, id := range ids {
		out[i] = ix.records[id]
	}
	return out
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.records) }

// Stats returns per-level record counts.
func (ix *Index) Stats() Stats { return ix.stats }
