// Package bmkg is the upstream transport for BMKG's public feeds. It owns
// timeout, retry and circuit-breaking policy; callers see either the raw
// payload or a *domain.TransportError.
package bmkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultUserAgent   = "bmkg-relay/1.0"
	defaultMaxBodySize = 32 << 20
)

// ErrBodyTooLarge is wrapped by the TransportError returned when a response
// body exceeds the configured limit. It is not retried.
var ErrBodyTooLarge = errors.New("response body too large")

// Endpoints are the base URLs of the three BMKG services.
type Endpoints struct {
	Earthquake string // e.g. https://data.bmkg.go.id/DataMKG/TEWS
	Weather    string // e.g. https://api.bmkg.go.id/publik
	Nowcast    string // e.g. https://www.bmkg.go.id/alerts/nowcast
}

// Client fetches raw BMKG payloads.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	endpoints  Endpoints
	retries    int
	minBackoff time.Duration
	maxBackoff time.Duration
	userAgent  string
	maxBody    int64
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithBackoff sets the first and the largest wait between retries.
func WithBackoff(minWait, maxWait time.Duration) Option {
	return func(c *Client) { c.minBackoff, c.maxBackoff = minWait, maxWait }
}

// WithMaxBodyBytes overrides the 32 MiB response size limit.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// NewClient creates a BMKG client whose requests each time out after timeout.
func NewClient(endpoints Endpoints, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  trimEndpoints(endpoints),
		retries:    2,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		userAgent:  defaultUserAgent,
		maxBody:    defaultMaxBodySize,
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "bmkg-upstream",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// 404s and abandoned requests say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

func trimEndpoints(e Endpoints) Endpoints {
	return Endpoints{
		Earthquake: strings.TrimRight(e.Earthquake, "/"),
		Weather:    strings.TrimRight(e.Weather, "/"),
		Nowcast:    strings.TrimRight(e.Nowcast, "/"),
	}
}

// ShakemapBase is the prefix for shakemap image URLs.
func (c *Client) ShakemapBase() string { return c.endpoints.Earthquake }

// LatestEarthquake fetches autogempa.json.
func (c *Client) LatestEarthquake(ctx context.Context) ([]byte, error) {
	return c.Get(ctx, "earthquake", c.endpoints.Earthquake+"/autogempa.json")
}

// RecentEarthquakes fetches gempaterkini.json, the latest M5.0+ events.
func (c *Client) RecentEarthquakes(ctx context.Context) ([]byte, error) {
	return c.Get(ctx, "earthquake", c.endpoints.Earthquake+"/gempaterkini.json")
}

// FeltEarthquakes fetches gempadirasakan.json.
func (c *Client) FeltEarthquakes(ctx context.Context) ([]byte, error) {
	return c.Get(ctx, "earthquake", c.endpoints.Earthquake+"/gempadirasakan.json")
}

// Forecast fetches the 3-day forecast for a village code.
func (c *Client) Forecast(ctx context.Context, adm4 string) ([]byte, error) {
	return c.Get(ctx, "weather", c.endpoints.Weather+"/prakiraan-cuaca?"+url.Values{"adm4": {adm4}}.Encode())
}

// ActiveAlerts fetches the nowcast RSS feed in lang ("id" or "en").
func (c *Client) ActiveAlerts(ctx context.Context, lang string) ([]byte, error) {
	return c.Get(ctx, "nowcast", c.endpoints.Nowcast+"/"+url.PathEscape(lang))
}

// Alert fetches one CAP document in lang.
func (c *Client) Alert(ctx context.Context, lang, alertCode string) ([]byte, error) {
	return c.Get(ctx, "nowcast", fmt.Sprintf("%s/%s/%s_alert.xml",
		c.endpoints.Nowcast, url.PathEscape(lang), url.PathEscape(alertCode)))
}

// Get fetches rawURL, retrying transport failures, 429 and 5xx responses
// with exponential backoff. A 404 is returned as a NotFound error without
// retrying; other 4xx responses fail immediately.
func (c *Client) Get(ctx context.Context, category, rawURL string) ([]byte, error) {
	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())
	}()

	backoff := c.minBackoff
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.UpstreamRequests.WithLabelValues(category, "retry").Inc()
			c.logger.Warn("retrying upstream request", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", lastErr)
			if !sleepWithContext(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, rawURL)
		})
		if err == nil {
			c.metrics.UpstreamRequests.WithLabelValues(category, "success").Inc()
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	c.metrics.UpstreamRequests.WithLabelValues(category, "error").Inc()
	if errors.Is(lastErr, domain.ErrNotFound) {
		return nil, lastErr
	}
	if ctx.Err() != nil && lastErr == nil {
		lastErr = ctx.Err()
	}
	var te *domain.TransportError
	if errors.As(lastErr, &te) {
		return nil, te
	}
	return nil, &domain.TransportError{URL: rawURL, Err: lastErr}
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, domain.NotFoundf("upstream %s: not found", rawURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.TransportError{URL: rawURL, StatusCode: resp.StatusCode,
			Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &domain.TransportError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &domain.TransportError{URL: rawURL, Err: fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)}
	}
	return body, nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var te *domain.TransportError
	if !errors.As(err, &te) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	if te.StatusCode == 0 {
		return true
	}
	return te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= 500
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
