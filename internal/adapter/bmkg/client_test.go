package bmkg

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/bmkg-relay/internal/domain"
	"github.com/couchcryptid/bmkg-relay/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBackoff(time.Millisecond, 5*time.Millisecond)}, opts...)
	return NewClient(Endpoints{
		Earthquake: srv.URL + "/DataMKG/TEWS/",
		Weather:    srv.URL + "/publik",
		Nowcast:    srv.URL + "/alerts/nowcast",
	}, 5*time.Second, observability.DiscardLogger(), observability.NewMetricsForTesting(), opts...)
}

func TestClient_URLs(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	ctx := context.Background()

	_, err := c.LatestEarthquake(ctx)
	require.NoError(t, err)
	_, _ = c.RecentEarthquakes(ctx)
	_, _ = c.FeltEarthquakes(ctx)
	_, _ = c.Forecast(ctx, "33.26.16.1001")
	_, _ = c.ActiveAlerts(ctx, "id")
	_, _ = c.Alert(ctx, "en", "CBT20260216004")

	assert.Equal(t, []string{
		"/DataMKG/TEWS/autogempa.json",
		"/DataMKG/TEWS/gempaterkini.json",
		"/DataMKG/TEWS/gempadirasakan.json",
		"/publik/prakiraan-cuaca?adm4=33.26.16.1001",
		"/alerts/nowcast/id",
		"/alerts/nowcast/en/CBT20260216004_alert.xml",
	}, paths)
}

func TestClient_ShakemapBaseTrimmed(t *testing.T) {
	c := NewClient(Endpoints{Earthquake: "https://data.bmkg.go.id/DataMKG/TEWS/"}, time.Second,
		observability.DiscardLogger(), observability.NewMetricsForTesting())
	assert.Equal(t, "https://data.bmkg.go.id/DataMKG/TEWS", c.ShakemapBase())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"Infogempa":{}}`))
	}), WithRetries(2))

	body, err := c.LatestEarthquake(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"Infogempa":{}}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), WithRetries(1))

	_, err := c.LatestEarthquake(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))

	_, err := c.Alert(context.Background(), "id", "CXX20260216001")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.Forecast(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Endpoints{Earthquake: base}, time.Second, observability.DiscardLogger(),
		observability.NewMetricsForTesting(), WithRetries(0))
	_, err := c.LatestEarthquake(context.Background())
	require.Error(t, err)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithRetries(0))

	for range 10 {
		_, err := c.RecentEarthquakes(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTransport)
	}
	assert.Equal(t, int32(6), calls.Load(), "breaker opens after six consecutive failures")
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), WithRetries(5), WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.LatestEarthquake(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_OversizedBodyIsRejected(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("0123456789"))
	}), WithMaxBodyBytes(8))

	_, err := c.RecentEarthquakes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, int32(1), calls.Load(), "oversized bodies are not retried")
}

func TestClient_BodyAtLimitIsAccepted(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("01234567"))
	}), WithMaxBodyBytes(8))

	body, err := c.RecentEarthquakes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "01234567", string(body))
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(4*time.Second, 5*time.Second))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&domain.TransportError{URL: "u", Err: errors.New("reset")}))
	assert.True(t, retryable(&domain.TransportError{URL: "u", StatusCode: 429}))
	assert.True(t, retryable(&domain.TransportError{URL: "u", StatusCode: 500}))
	assert.False(t, retryable(&domain.TransportError{URL: "u", StatusCode: 400}))
	assert.False(t, retryable(domain.NotFoundf("gone")))
	assert.False(t, retryable(&domain.TransportError{URL: "u", Err: ErrBodyTooLarge}))
}
