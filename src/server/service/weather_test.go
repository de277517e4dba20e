package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apimgr/ecogarden/src/config"
	"github.com/apimgr/ecogarden/src/tracing"
)

const parisBody = `{"weather":[{"description":"ciel dégagé"}],"main":{"temp":21.4,"humidity":40,"pressure":1018},"wind":{"speed":4.17,"deg":44}}`

func testWeatherConfig(baseURL string) config.WeatherConfig {
	cfg := config.Default().Weather
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.RPS = 1000
	cfg.Burst = 100
	return cfg
}

func TestWeatherClient_QueryParameters(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(parisBody))
	}))
	defer upstream.Close()

	wc := NewWeatherClient(testWeatherConfig(upstream.URL+"/"), nil)

	resp, err := wc.ByPostalCode(context.Background(), "75001")
	if err != nil {
		t.Fatalf("ByPostalCode() error = %v", err)
	}
	if resp.Status != http.StatusOK || string(resp.Body) != parisBody {
		t.Errorf("response = %d %s", resp.Status, resp.Body)
	}
	if gotPath != "/data/2.5/weather" {
		t.Errorf("path = %q", gotPath)
	}
	want := map[string]string{"zip": "75001,FR", "appid": "test-key", "lang": "fr", "units": "metric"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
	if _, err := wc.ByCity(context.Background(), "Lyon"); err != nil {
		t.Fatal(err)
	}
	if gotQuery["q"] != "Lyon,FR" {
		t.Errorf("city query = %q, want Lyon,FR", gotQuery["q"])
	}
}

func TestWeatherClient_PropagatesTraceContext(t *testing.T) {
	shutdown, err := tracing.Setup("ecogarden-test", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { shutdown(context.Background()) })

	traceparent := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent <- r.Header.Get("traceparent")
		w.Write([]byte(parisBody))
	}))
	defer upstream.Close()

	wc := NewWeatherClient(testWeatherConfig(upstream.URL), nil)
	if _, err := wc.ByCity(context.Background(), "Lyon"); err != nil {
		t.Fatal(err)
	}

	// version-traceid-spanid-flags
	got := <-traceparent
	if parts := strings.Split(got, "-"); len(parts) != 4 || parts[0] != "00" || len(parts[1]) != 32 {
		t.Errorf("traceparent = %q", got)
	}
}

func TestWeatherClient_CachesOnlySuccess(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.HasPrefix(r.URL.Query().Get("q"), "Atlantide") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			return
		}
		w.Write([]byte(parisBody))
	}))
	defer upstream.Close()

	wc := NewWeatherClient(testWeatherConfig(upstream.URL), NewForecastCache(time.Minute, ""))
	ctx := context.Background()

	first, err := wc.ByCity(ctx, "Paris")
	if err != nil {
		t.Fatal(err)
	}
	second, err := wc.ByCity(ctx, "paris")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("Cached flags = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if string(second.Body) != parisBody {
		t.Errorf("cached body = %s", second.Body)
	}

	for i := 0; i < 2; i++ {
		resp, err := wc.ByCity(ctx, "Atlantide")
		if err != nil {
			t.Fatal(err)
		}
		if resp.Status != http.StatusNotFound || resp.Cached {
			t.Errorf("not-found response = %d cached=%v", resp.Status, resp.Cached)
		}
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestWeatherClient_TransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	wc := NewWeatherClient(testWeatherConfig(url), nil)
	_, err := wc.ByPostalCode(context.Background(), "75001")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("error leaks the API key: %v", err)
	}
}

func TestWeatherClient_RateLimitHonoursContext(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(parisBody))
	}))
	defer upstream.Close()

	cfg := testWeatherConfig(upstream.URL)
	cfg.RPS = 0.001
	cfg.Burst = 1
	wc := NewWeatherClient(cfg, nil)

	if _, err := wc.ByCity(context.Background(), "Paris"); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := wc.ByCity(ctx, "Lyon"); !errors.Is(err, ErrUpstream) {
		t.Errorf("second call error = %v, want ErrUpstream", err)
	}
}

func TestWeatherClient_Reconfigure(t *testing.T) {
	var gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("appid")
		w.Write([]byte(parisBody))
	}))
	defer upstream.Close()

	cfg := testWeatherConfig(upstream.URL)
	wc := NewWeatherClient(cfg, nil)

	cfg.APIKey = "rotated-key"
	wc.Reconfigure(cfg)

	if _, err := wc.ByCity(context.Background(), "Nantes"); err != nil {
		t.Fatal(err)
	}
	if gotKey != "rotated-key" {
		t.Errorf("appid = %q, want rotated-key", gotKey)
	}
}

func TestForecastCache(t *testing.T) {
	ctx := context.Background()
	fc := NewForecastCache(50*time.Millisecond, "")
	if fc.Backend() != "memory" {
		t.Errorf("Backend() = %q", fc.Backend())
	}

	if _, found := fc.Get(ctx, "zip:75001"); found {
		t.Fatal("empty cache should miss")
	}

	fc.Set(ctx, "zip:75001", &CachedResponse{Status: 200, Body: []byte("{}")})
	if got, found := fc.Get(ctx, "zip:75001"); !found || got.Status != 200 {
		t.Errorf("Get() = %+v, %v", got, found)
	}
	if n := fc.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1 live entry", n)
	}

	time.Sleep(80 * time.Millisecond)
	if n := fc.Purge(); n != 0 {
		t.Errorf("Purge() after expiry = %d, want 0", n)
	}

	if err := fc.Ping(ctx); err != nil {
		t.Errorf("Ping() without redis = %v", err)
	}
	if err := fc.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestForecastCache_InvalidRedisURLFallsBack(t *testing.T) {
	fc := NewForecastCache(time.Minute, "::not a url::")
	if fc.Backend() != "memory" {
		t.Errorf("Backend() = %q, want memory", fc.Backend())
	}
}
