package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8099" validate:"required"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	// Remote cache tier. An empty URL runs on the local tier only.
	RedisURL       string        `envconfig:"REDIS_URL" validate:"omitempty,url"`
	RedisTimeout   time.Duration `envconfig:"REDIS_TIMEOUT" default:"500ms" validate:"gt=0"`
	CacheKeyPrefix string        `envconfig:"CACHE_KEY_PREFIX" default:"bmkg:"`
	LocalCacheSize int           `envconfig:"LOCAL_CACHE_SIZE" default:"10000" validate:"gt=0"`

	TTLLatest   time.Duration `envconfig:"CACHE_TTL_LATEST" default:"60s" validate:"gt=0"`
	TTLList     time.Duration `envconfig:"CACHE_TTL_LIST" default:"5m" validate:"gt=0"`
	TTLForecast time.Duration `envconfig:"CACHE_TTL_FORECAST" default:"15m" validate:"gt=0"`
	TTLNowcast  time.Duration `envconfig:"CACHE_TTL_NOWCAST" default:"2m" validate:"gt=0"`

	EarthquakeBaseURL string        `envconfig:"BMKG_EARTHQUAKE_BASE_URL" default:"https://data.bmkg.go.id/DataMKG/TEWS" validate:"required,url"`
	WeatherBaseURL    string        `envconfig:"BMKG_WEATHER_BASE_URL" default:"https://api.bmkg.go.id/publik" validate:"required,url"`
	NowcastBaseURL    string        `envconfig:"BMKG_NOWCAST_BASE_URL" default:"https://www.bmkg.go.id/alerts/nowcast" validate:"required,url"`
	UpstreamTimeout   time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s" validate:"gt=0"`
	UpstreamRetries   int           `envconfig:"UPSTREAM_RETRIES" default:"2" validate:"gte=0,lte=10"`

	// RegionDataset is a file path (optionally gzipped) or an http(s) URL.
	RegionDataset     string  `envconfig:"REGION_DATASET" default:"data/wilayah.csv" validate:"required"`
	SearchMaxLimit    int     `envconfig:"SEARCH_MAX_LIMIT" default:"100" validate:"gt=0"`
	NearbyMaxRadiusKM float64 `envconfig:"NEARBY_MAX_RADIUS_KM" default:"2000" validate:"gt=0"`

	// Change feed. No brokers disables publishing.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"bmkg-resource-updates" validate:"required"`
}

// ConfigError names the variable that could not be loaded.
type ConfigError struct {
	Var     string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Var == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Var, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is read first if present; it
// never overrides variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return nil, &ConfigError{Var: perr.KeyName, Message: fmt.Sprintf("cannot parse %q as %s", perr.Value, perr.TypeName), Err: err}
		}
		return nil, &ConfigError{Message: err.Error(), Err: err}
	}

	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, &ConfigError{Var: fe.Field(), Message: describe(fe), Err: err}
		}
		return nil, &ConfigError{Message: err.Error(), Err: err}
	}
	return &cfg, nil
}

// RemoteCacheEnabled reports whether a Redis tier is configured.
func (c *Config) RemoteCacheEnabled() bool { return c.RedisURL != "" }

// PublishingEnabled reports whether the Kafka change feed is configured.
func (c *Config) PublishingEnabled() bool { return len(c.KafkaBrokers) > 0 }

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("envconfig")
	})
	return v
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
