package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the application configuration (server.yml)
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Weather   WeatherConfig   `yaml:"weather"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// Path of the file the configuration was read from, empty for defaults
	Source string `yaml:"-"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Address        string   `yaml:"address"`
	Port           int      `yaml:"port"`
	Mode           string   `yaml:"mode"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	Debug          bool     `yaml:"debug"`
}

// DatabaseConfig holds the database connection URL
// Examples: sqlite:///var/lib/ecogarden/ecogarden.db, postgres://u:p@host/db
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// WeatherConfig holds the upstream weather provider settings
type WeatherConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Country  string        `yaml:"country"`
	Lang     string        `yaml:"lang"`
	Units    string        `yaml:"units"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// Outbound requests per second to the provider, and burst size
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// CacheConfig holds the optional shared cache settings
type CacheConfig struct {
	// Empty disables the Redis/Valkey layer
	RedisURL string `yaml:"redis_url"`
}

// RateLimitConfig holds inbound rate limits
type RateLimitConfig struct {
	GlobalRPS    int           `yaml:"global_rps"`
	AuthRequests int           `yaml:"auth_requests"`
	AuthWindow   time.Duration `yaml:"auth_window"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Dir string `yaml:"dir"`
	// Cron expression for log rotation
	RotateSchedule string `yaml:"rotate_schedule"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ZipkinURL   string `yaml:"zipkin_url"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the built-in configuration
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Address:        "0.0.0.0",
			Port:           8080,
			Mode:           string(ModeProduction),
			TrustedProxies: []string{"127.0.0.1", "::1"},
		},
		Database: DatabaseConfig{
			URL: "sqlite://ecogarden.db",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
			Issuer:   "ecogarden",
		},
		Weather: WeatherConfig{
			BaseURL:  "https://api.openweathermap.org",
			Country:  "FR",
			Lang:     "fr",
			Units:    "metric",
			Timeout:  10 * time.Second,
			CacheTTL: 10 * time.Minute,
			// OpenWeatherMap free tier allows 60 calls per minute
			RPS:   1,
			Burst: 10,
		},
		RateLimit: RateLimitConfig{
			GlobalRPS:    100,
			AuthRequests: 10,
			AuthWindow:   time.Minute,
		},
		Log: LogConfig{
			Dir:            "logs",
			RotateSchedule: "0 0 * * *",
		},
		Tracing: TracingConfig{
			ServiceName: "ecogarden",
		},
	}
}

// Load reads configuration from path (or the first server.yml found in
// the usual locations when path is empty), then .env files, then
// environment variables. Later sources win.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Source = path
	}

	// .env.local overrides .env; neither overrides the real environment
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			if err := godotenv.Load(file); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", file, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides
func (c *AppConfig) applyEnv() error {
	setString(&c.Server.Mode, "MODE")
	setString(&c.Server.Address, "ADDRESS")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	// WHEATHER_API_KEY is the historical variable name used by older deployments
	setString(&c.Weather.APIKey, "WHEATHER_API_KEY")
	setString(&c.Weather.APIKey, "WEATHER_API_KEY")
	setString(&c.Weather.BaseURL, "WEATHER_BASE_URL")
	setString(&c.Cache.RedisURL, "CACHE_REDIS_URL")
	setString(&c.Log.Dir, "LOG_DIR")
	setString(&c.Tracing.ZipkinURL, "ZIPKIN_URL")

	if v := os.Getenv("DEBUG"); v != "" {
		c.Server.Debug = IsTruthy(v)
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = IsTruthy(v)
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL %q: %w", v, err)
		}
		c.Auth.TokenTTL = ttl
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Mode returns the detected application mode
func (c *AppConfig) Mode() Mode {
	return DetectMode(c.Server.Mode)
}

// ListenAddr returns the host:port the HTTP server binds to
func (c *AppConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Validate checks required settings and reports every problem at once
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	} else if c.Mode().IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Weather.BaseURL == "" {
		errs = append(errs, errors.New("weather.base_url is required"))
	}
	if c.Weather.APIKey == "" && c.Mode().IsProduction() {
		errs = append(errs, errors.New("weather.api_key (WEATHER_API_KEY) is required"))
	}
	if c.Weather.RPS <= 0 || c.Weather.Burst <= 0 {
		errs = append(errs, errors.New("weather.rps and weather.burst must be positive"))
	}
	if c.Tracing.Enabled && c.Tracing.ZipkinURL == "" {
		errs = append(errs, errors.New("tracing.zipkin_url is required when tracing is enabled"))
	}

	return errors.Join(errs...)
}

// findConfigFile searches for server.yml in common locations
func findConfigFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	searchPaths := []string{
		filepath.Join(cwd, "server.yml"),
		filepath.Join(cwd, "config", "server.yml"),
		"/etc/ecogarden/server.yml",
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
