// Command relay serves BMKG earthquake, weather and nowcast data over HTTP,
// caching upstream responses in Redis with an in-process fallback.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/adapter/bmkg"
	httpadapter "github.com/couchcryptid/bmkg-relay/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/bmkg-relay/internal/adapter/kafka"
	"github.com/couchcryptid/bmkg-relay/internal/cache"
	"github.com/couchcryptid/bmkg-relay/internal/config"
	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/feed"
	"github.com/couchcryptid/bmkg-relay/internal/fetch"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/couchcryptid/bmkg-relay/internal/region"
	"github.com/jonboulle/clockwork"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Remote tier is optional; without it every instance caches on its own.
	var remote cache.Tier
	if cfg.RemoteCacheEnabled() {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		remote = cache.NewRedisTier(client, cfg.CacheKeyPrefix, cfg.RedisTimeout)
		logger.Info("remote cache enabled", "prefix", cfg.CacheKeyPrefix, "timeout", cfg.RedisTimeout)
	} else {
		logger.Info("remote cache disabled, using local tier only")
	}
	local := cache.NewLocalTier(cfg.LocalCacheSize, clock)
	local.StartSweeper(sweepInterval)
	store := cache.New(remote, local, clock, logger, metrics)
	if err := store.Ping(ctx); err != nil {
		logger.Warn("remote cache unreachable at startup, serving from local tier", "error", err)
	}

	opts := []fetch.Option{
		fetch.WithClock(clock),
		fetch.WithTTLPolicy(fetch.TTLPolicy{
			fetch.CategoryLatest:   cfg.TTLLatest,
			fetch.CategoryList:     cfg.TTLList,
			fetch.CategoryForecast: cfg.TTLForecast,
			fetch.CategoryNowcast:  cfg.TTLNowcast,
			fetch.CategoryStatic:   0,
		}),
	}
	var publisher *kafkaadapter.Publisher
	if cfg.PublishingEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		opts = append(opts, fetch.WithPublisher(publisher))
		logger.Info("change feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	orch := fetch.New(store, logger, metrics, opts...)

	upstream := bmkg.NewClient(bmkg.Endpoints{
		Earthquake: cfg.EarthquakeBaseURL,
		Weather:    cfg.WeatherBaseURL,
		Nowcast:    cfg.NowcastBaseURL,
	}, cfg.UpstreamTimeout, logger, metrics, bmkg.WithRetries(cfg.UpstreamRetries))

	regions, err := feed.LoadRegionIndex(ctx, cfg.RegionDataset, orch, upstream,
		region.WithMaxSearchLimit(cfg.SearchMaxLimit))
	if err != nil {
		var berr *domain.BuildError
		if errors.As(err, &berr) {
			logger.Error("region dataset is inconsistent", "code", berr.Code, "reason", berr.Reason)
		} else {
			logger.Error("failed to load region dataset", "source", cfg.RegionDataset, "error", err)
		}
		os.Exit(1)
	}
	stats := regions.Stats()
	metrics.RegionRecords.WithLabelValues("province").Set(float64(stats.Provinces))
	metrics.RegionRecords.WithLabelValues("district").Set(float64(stats.Districts))
	metrics.RegionRecords.WithLabelValues("subdistrict").Set(float64(stats.Subdistricts))
	metrics.RegionRecords.WithLabelValues("village").Set(float64(stats.Villages))
	logger.Info("region index loaded", "source", cfg.RegionDataset, "records", stats.Total)

	svc := feed.NewService(upstream, regions, orch,
		feed.WithClock(clock), feed.WithLogger(logger), feed.WithMaxRadiusKM(cfg.NearbyMaxRadiusKM))

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Resources:   svc,
		Regions:     regions,
		Cache:       store,
		MaxRadiusKM: svc.MaxRadiusKM(),
	}, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}
