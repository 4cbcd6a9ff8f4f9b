// Command regioncheck validates a region dataset before it is deployed. It
// parses the table, builds the index exactly as the relay does at startup,
// and then checks that every record resolves to a full path and that every
// province can be found by name.
//
// Usage:
//
//	go run ./cmd/regioncheck -dataset data/wilayah.csv.gz
//	go run ./cmd/regioncheck -dataset https://example.com/wilayah.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/adapter/bmkg"
	"github.com/couchcryptid/bmkg-relay/internal/cache"
	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/feed"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/couchcryptid/bmkg-relay/internal/region"
	"github.com/jonboulle/clockwork"
)

// maxErrorsShown caps the per-phase error listing.
const maxErrorsShown = 20

// phase tracks pass/fail for a validation phase.
// Advisory phases report findings without failing the run.
type phase struct {
	name     string
	advisory bool
	errors   []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataset := flag.String("dataset", "", "region dataset: CSV file path (optionally .gz) or http(s) URL")
	timeout := flag.Duration("timeout", 60*time.Second, "download timeout for URL datasets")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	os.Exit(run(ctx, os.Stdout, *dataset))
}

func run(ctx context.Context, out io.Writer, dataset string) int {
	fmt.Fprintln(out, "=== Region Dataset Validation ===")
	fmt.Fprintln(out)

	records, err := loadRecords(ctx, dataset)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load %s: %v\n", dataset, err)
		return 1
	}

	ix, err := region.Build(records)
	if err != nil {
		var berr *domain.BuildError
		if errors.As(err, &berr) {
			fmt.Fprintf(out, "FATAL: index build failed at %s: %s\n", berr.Code, berr.Reason)
		} else {
			fmt.Fprintf(out, "FATAL: index build failed: %v\n", err)
		}
		return 1
	}

	phases := []*phase{
		checkPaths(ix, records),
		checkProvinceSearch(ix),
		checkVillageCoverage(ix),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.passed():
		case p.advisory:
			status = fmt.Sprintf("\033[33mWARN (%d findings)\033[0m", len(p.errors))
		default:
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	s := ix.Stats()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d provinces, %d districts, %d subdistricts, %d villages (%d total)\n",
		s.Provinces, s.Districts, s.Subdistricts, s.Villages, s.Total)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsShown {
				fmt.Fprintf(out, "  ... and %d more\n", len(p.errors)-maxErrorsShown)
				break
			}
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// loadRecords reads a file directly, or downloads a URL through the same
// client and orchestrator path the relay uses.
func loadRecords(ctx context.Context, dataset string) ([]domain.RegionRecord, error) {
	if !strings.HasPrefix(dataset, "http://") && !strings.HasPrefix(dataset, "https://") {
		return feed.LoadRegionRecords(ctx, dataset, nil, nil)
	}
	logger := observability.DiscardLogger()
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()
	store := cache.New(nil, cache.NewLocalTier(1, clock), clock, logger, metrics)
	orch := fetch.New(store, logger, metrics, fetch.WithClock(clock))
	client := bmkg.NewClient(bmkg.Endpoints{}, 0, logger, metrics)
	return feed.LoadRegionRecords(ctx, dataset, orch, client)
}

// checkPaths verifies every record renders a full path with one segment per
// level.
func checkPaths(ix *region.Index, records []domain.RegionRecord) *phase {
	p := &phase{name: "Every record resolves to a full path"}
	for _, rec := range records {
		path, err := ix.FullPath(rec.Code)
		if err != nil {
			p.errorf("%s: %v", rec.Code, err)
			continue
		}
		if got := strings.Count(path, " > ") + 1; got != int(rec.Level) {
			p.errorf("%s: path %q has %d segments, want %d", rec.Code, path, got, int(rec.Level))
		}
	}
	return p
}

// checkProvinceSearch verifies each province is found when searched by its
// own name.
func checkProvinceSearch(ix *region.Index) *phase {
	p := &phase{name: "Every province is searchable by name"}
	for _, prov := range ix.Provinces() {
		hits, err := ix.Search(prov.Name, region.MaxSearchLimit)
		if err != nil {
			p.errorf("%s %q: %v", prov.Code, prov.Name, err)
			continue
		}
		found := false
		for _, h := range hits {
			if h.Code == prov.Code {
				found = true
				break
			}
		}
		if !found {
			p.errorf("%s %q: not among %d results", prov.Code, prov.Name, len(hits))
		}
	}
	return p
}

// checkVillageCoverage flags subdistricts without villages; forecasts are
// only available at village level, so such subdistricts have no weather.
func checkVillageCoverage(ix *region.Index) *phase {
	p := &phase{name: "Every subdistrict has villages", advisory: true}
	for _, prov := range ix.Provinces() {
		districts, _ := ix.Children(prov.Code, domain.LevelDistrict)
		for _, d := range districts {
			subs, _ := ix.Children(d.Code, domain.LevelSubdistrict)
			for _, s := range subs {
				villages, err := ix.Children(s.Code, domain.LevelVillage)
				if err != nil {
					p.errorf("%s: %v", s.Code, err)
					continue
				}
				if len(villages) == 0 {
					p.errorf("%s %q: no villages", s.Code, s.Name)
				}
			}
		}
	}
	return p
}
