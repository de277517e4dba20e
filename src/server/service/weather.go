package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/apimgr/ecogarden/src/config"
	"github.com/apimgr/ecogarden/src/server/metrics"
	"github.com/apimgr/ecogarden/src/tracing"
)

// ErrUpstream means the weather provider produced no response at all
var ErrUpstream = errors.New("weather provider unreachable")

// maxUpstreamBody caps how much of a provider response is read
const maxUpstreamBody = 1 << 20

// UpstreamResponse is the provider's raw answer
type UpstreamResponse struct {
	Status int
	Body   []byte
	Cached bool
}

// WeatherClient queries the current weather endpoint of an
// OpenWeatherMap-compatible provider. Outbound calls are rate limited and
// successful bodies are cached per query.
type WeatherClient struct {
	client  *http.Client
	cache   *ForecastCache
	limiter *rate.Limiter

	mu      sync.RWMutex
	baseURL string
	apiKey  string
	country string
	lang    string
	units   string
}

// NewWeatherClient creates a client from the weather configuration
func NewWeatherClient(cfg config.WeatherConfig, fc *ForecastCache) *WeatherClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	wc := &WeatherClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cache:   fc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
	wc.Reconfigure(cfg)
	return wc
}

// Reconfigure applies settings that may change while running: endpoint,
// API key, query defaults and the outbound rate.
func (wc *WeatherClient) Reconfigure(cfg config.WeatherConfig) {
	wc.mu.Lock()
	wc.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	wc.apiKey = cfg.APIKey
	wc.country = cfg.Country
	wc.lang = cfg.Lang
	wc.units = cfg.Units
	wc.mu.Unlock()

	wc.limiter.SetLimit(rate.Limit(cfg.RPS))
	wc.limiter.SetBurst(cfg.Burst)
	if wc.cache != nil && cfg.CacheTTL > 0 {
		wc.cache.SetTTL(cfg.CacheTTL)
	}
}

// ByPostalCode fetches the current weather for a postal code
func (wc *WeatherClient) ByPostalCode(ctx context.Context, postalCode string) (*UpstreamResponse, error) {
	return wc.fetch(ctx, "zip", postalCode)
}

// ByCity fetches the current weather for a city name
func (wc *WeatherClient) ByCity(ctx context.Context, city string) (*UpstreamResponse, error) {
	return wc.fetch(ctx, "q", city)
}

// queryURL builds the provider URL for a lookup
func (wc *WeatherClient) queryURL(param, value string) string {
	wc.mu.RLock()
	defer wc.mu.RUnlock()

	params := url.Values{}
	params.Set(param, value+","+wc.country)
	params.Set("appid", wc.apiKey)
	params.Set("lang", wc.lang)
	params.Set("units", wc.units)

	return fmt.Sprintf("%s/data/2.5/weather?%s", wc.baseURL, params.Encode())
}

func lookupKind(param string) string {
	if param == "zip" {
		return "postal_code"
	}
	return "city"
}

func cacheKey(param, value string) string {
	if param == "zip" {
		return "zip:" + value
	}
	return "city:" + strings.ToLower(value)
}

func (wc *WeatherClient) fetch(ctx context.Context, param, value string) (*UpstreamResponse, error) {
	kind := lookupKind(param)
	key := cacheKey(param, value)

	if wc.cache != nil {
		if cached, found := wc.cache.Get(ctx, key); found {
			metrics.RecordWeatherRequest(kind, "cache_hit", 0)
			return &UpstreamResponse{Status: cached.Status, Body: cached.Body, Cached: true}, nil
		}
	}

	ctx, span := tracing.Tracer().Start(ctx, "weather.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("weather.lookup", kind),
		attribute.String("weather.query", value),
	)

	if err := wc.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit wait canceled")
		metrics.RecordWeatherRequest(kind, "transport_error", 0)
		return nil, fmt.Errorf("%w: rate limit wait canceled: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wc.queryURL(param, value), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := wc.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		metrics.RecordWeatherRequest(kind, "transport_error", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, redactKey(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read error")
		metrics.RecordWeatherRequest(kind, "transport_error", time.Since(start))
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	outcome := "ok"
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if wc.cache != nil {
			wc.cache.Set(ctx, key, &CachedResponse{Status: resp.StatusCode, Body: body})
		}
	} else {
		outcome = "upstream_error"
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	metrics.RecordWeatherRequest(kind, outcome, time.Since(start))

	return &UpstreamResponse{Status: resp.StatusCode, Body: body}, nil
}

// redactKey strips the query string, which carries the API key, from
// transport errors before they reach logs
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if i := strings.IndexByte(urlErr.URL, '?'); i >= 0 {
			return &url.Error{Op: urlErr.Op, URL: urlErr.URL[:i], Err: urlErr.Err}
		}
	}
	return err
}
