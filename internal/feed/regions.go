package feed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/parser"
	"github.com/couchcryptid/bmkg-relay/internal/region"
)

// KeyRegionDataset caches a downloaded region dataset so that other relay
// instances sharing the remote tier skip the download.
const KeyRegionDataset = "region:dataset"

// Getter downloads a URL. *bmkg.Client implements it.
type Getter interface {
	Get(ctx context.Context, category, rawURL string) ([]byte, error)
}

// LoadRegionRecords reads the region table from source: a local file
// (optionally gzip compressed) or an http(s) URL. URL downloads go through
// the orchestrator and are cached without expiry.
func LoadRegionRecords(ctx context.Context, source string, o *fetch.Orchestrator, getter Getter) ([]domain.RegionRecord, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if o == nil || getter == nil {
			return nil, fmt.Errorf("load region dataset %s: no downloader configured", source)
		}
		return fetch.Resolve(ctx, o, KeyRegionDataset, fetch.CategoryStatic,
			func(ctx context.Context) ([]byte, error) { return getter.Get(ctx, "region", source) },
			parser.ParseRegionCSV)
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read region dataset: %w", err)
	}
	return parser.ParseRegionCSV(raw)
}

// LoadRegionIndex loads the region table from source and builds the index.
// A *domain.BuildError means the dataset is inconsistent and the process
// must not start.
func LoadRegionIndex(ctx context.Context, source string, o *fetch.Orchestrator, getter Getter, opts ...region.Option) (*region.Index, error) {
	records, err := LoadRegionRecords(ctx, source, o, getter)
	if err != nil {
		return nil, err
	}
	return region.Build(records, opts...)
}
