// Command genmock snapshots live BMKG payloads into the mock data fixtures
// used by the feed and HTTP test suites. Every payload is run through the
// relay's own parsers before it is written, so a fixture that the relay
// cannot read is never committed.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -adm4 33.26.16.1001 -alerts 2
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/adapter/bmkg"
	"github.com/couchcryptid/bmkg-relay/internal/feed"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/couchcryptid/bmkg-relay/internal/parser"
)

func main() {
	out := flag.String("out", "data/mock", "directory the fixtures are written to")
	adm4 := flag.String("adm4", "33.26.16.1001", "village code whose forecast is captured")
	alerts := flag.Int("alerts", 2, "number of active nowcast alerts to capture")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := bmkg.NewClient(bmkg.Endpoints{
		Earthquake: "https://data.bmkg.go.id/DataMKG/TEWS",
		Weather:    "https://api.bmkg.go.id/publik",
		Nowcast:    "https://www.bmkg.go.id/alerts/nowcast",
	}, 30*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting())

	if err := run(ctx, client, *out, *adm4, *alerts); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, src feed.Upstream, outDir, adm4 string, maxAlerts int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	quakes := []struct {
		file  string
		fetch func(context.Context) ([]byte, error)
	}{
		{"autogempa.json", src.LatestEarthquake},
		{"gempaterkini.json", src.RecentEarthquakes},
		{"gempadirasakan.json", src.FeltEarthquakes},
	}
	for _, q := range quakes {
		raw, err := q.fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", q.file, err)
		}
		events, err := parser.ParseEarthquakes(raw, src.ShakemapBase())
		if err != nil {
			return fmt.Errorf("validate %s: %w", q.file, err)
		}
		if err := write(outDir, q.file, raw); err != nil {
			return err
		}
		log.Printf("%s: %d events", q.file, len(events))
	}

	raw, err := src.Forecast(ctx, adm4)
	if err != nil {
		return fmt.Errorf("fetch forecast %s: %w", adm4, err)
	}
	forecast, err := parser.ParseForecast(raw)
	if err != nil {
		return fmt.Errorf("validate forecast %s: %w", adm4, err)
	}
	if err := write(outDir, "prakiraan_"+adm4+".json", raw); err != nil {
		return err
	}
	log.Printf("forecast %s: %d days", adm4, len(forecast.Days))

	raw, err = src.ActiveAlerts(ctx, "id")
	if err != nil {
		return fmt.Errorf("fetch nowcast feed: %w", err)
	}
	active, err := parser.ParseActiveAlerts(raw)
	if err != nil {
		return fmt.Errorf("validate nowcast feed: %w", err)
	}
	if err := write(outDir, "nowcast_rss_id.xml", raw); err != nil {
		return err
	}
	log.Printf("nowcast feed: %d active alerts", len(active))

	if raw, err := src.ActiveAlerts(ctx, "en"); err != nil {
		log.Printf("skip english nowcast feed: %v", err)
	} else if _, err := parser.ParseActiveAlerts(raw); err != nil {
		return fmt.Errorf("validate english nowcast feed: %w", err)
	} else if err := write(outDir, "nowcast_rss_en.xml", raw); err != nil {
		return err
	}

	for i, a := range active {
		if i == maxAlerts {
			break
		}
		for _, lang := range []string{"id", "en"} {
			raw, err := src.Alert(ctx, lang, a.AlertCode)
			if err != nil {
				// Not every alert is published in English.
				log.Printf("skip %s/%s: %v", lang, a.AlertCode, err)
				continue
			}
			if _, err := parser.ParseCAP(raw); err != nil {
				return fmt.Errorf("validate alert %s/%s: %w", lang, a.AlertCode, err)
			}
			if err := write(outDir, "cap_"+a.AlertCode+"_"+lang+".xml", raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func write(dir, name string, raw []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %s", path)
	return nil
}
