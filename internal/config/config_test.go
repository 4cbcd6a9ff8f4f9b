package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8099", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RedisURL)
	assert.False(t, cfg.RemoteCacheEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.RedisTimeout)
	assert.Equal(t, "bmkg:", cfg.CacheKeyPrefix)
	assert.Equal(t, 10000, cfg.LocalCacheSize)
	assert.Equal(t, 60*time.Second, cfg.TTLLatest)
	assert.Equal(t, 5*time.Minute, cfg.TTLList)
	assert.Equal(t, 15*time.Minute, cfg.TTLForecast)
	assert.Equal(t, 2*time.Minute, cfg.TTLNowcast)
	assert.Equal(t, "https://data.bmkg.go.id/DataMKG/TEWS", cfg.EarthquakeBaseURL)
	assert.Equal(t, "https://api.bmkg.go.id/publik", cfg.WeatherBaseURL)
	assert.Equal(t, "https://www.bmkg.go.id/alerts/nowcast", cfg.NowcastBaseURL)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 2, cfg.UpstreamRetries)
	assert.Equal(t, "data/wilayah.csv", cfg.RegionDataset)
	assert.Equal(t, 100, cfg.SearchMaxLimit)
	assert.InDelta(t, 2000.0, cfg.NearbyMaxRadiusKM, 0)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.PublishingEnabled())
	assert.Equal(t, "bmkg-resource-updates", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("REDIS_TIMEOUT", "1s")
	t.Setenv("LOCAL_CACHE_SIZE", "500")
	t.Setenv("CACHE_TTL_LATEST", "30s")
	t.Setenv("CACHE_TTL_FORECAST", "1h")
	t.Setenv("UPSTREAM_RETRIES", "0")
	t.Setenv("REGION_DATASET", "https://example.com/wilayah.csv.gz")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-updates")
	t.Setenv("NEARBY_MAX_RADIUS_KM", "750.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.RemoteCacheEnabled())
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, time.Second, cfg.RedisTimeout)
	assert.Equal(t, 500, cfg.LocalCacheSize)
	assert.Equal(t, 30*time.Second, cfg.TTLLatest)
	assert.Equal(t, time.Hour, cfg.TTLForecast)
	assert.Equal(t, 0, cfg.UpstreamRetries)
	assert.Equal(t, "https://example.com/wilayah.csv.gz", cfg.RegionDataset)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.PublishingEnabled())
	assert.Equal(t, "custom-updates", cfg.KafkaTopic)
	assert.InDelta(t, 750.5, cfg.NearbyMaxRadiusKM, 1e-9)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantVar string
	}{
		{"unparseable duration", map[string]string{"SHUTDOWN_TIMEOUT": "soon"}, "SHUTDOWN_TIMEOUT"},
		{"zero duration", map[string]string{"CACHE_TTL_LIST": "0s"}, "CACHE_TTL_LIST"},
		{"negative cache size", map[string]string{"LOCAL_CACHE_SIZE": "-1"}, "LOCAL_CACHE_SIZE"},
		{"unparseable int", map[string]string{"SEARCH_MAX_LIMIT": "lots"}, "SEARCH_MAX_LIMIT"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad upstream url", map[string]string{"BMKG_WEATHER_BASE_URL": "not a url"}, "BMKG_WEATHER_BASE_URL"},
		{"bad redis url", map[string]string{"REDIS_URL": "cache"}, "REDIS_URL"},
		{"too many retries", map[string]string{"UPSTREAM_RETRIES": "50"}, "UPSTREAM_RETRIES"},
		{"empty dataset", map[string]string{"REGION_DATASET": ""}, "REGION_DATASET"},
		{"zero radius", map[string]string{"NEARBY_MAX_RADIUS_KM": "0"}, "NEARBY_MAX_RADIUS_KM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "want *ConfigError, got %T", err)
			assert.Equal(t, tt.wantVar, cerr.Var)
			assert.Contains(t, err.Error(), tt.wantVar)
		})
	}
}
