// Package config loads and validates service configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sandeepkv93/refresh-session-auth/internal/security"
)

const minSecretBytes = 32

// Validation failures are grouped so config.validation.events can tell a bad
// secret from a bad expiry without parsing messages.
var (
	errSecretConfig  = errors.New("secret")
	errExpiryConfig  = errors.New("expiry")
	errCookieConfig  = errors.New("cookie")
	errStorageConfig = errors.New("storage")
)

func invalid(class error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", class, fmt.Sprintf(format, args...))
}

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	JWTIssuer           string `mapstructure:"JWT_ISSUER"`
	JWTAudience         string `mapstructure:"JWT_AUDIENCE"`
	JWTAccessSecret     string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTAccessExpiresIn  string `mapstructure:"JWT_ACCESS_EXPIRES_IN"`
	JWTRefreshSecret    string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTRefreshExpiresIn string `mapstructure:"JWT_REFRESH_EXPIRES_IN"`
	BcryptCost          int    `mapstructure:"BCRYPT_COST"`

	// Refresh cookie, scoped to the auth routes.
	CookieRefreshName string `mapstructure:"COOKIE_REFRESH_NAME"`
	CookieSecure      bool   `mapstructure:"COOKIE_SECURE"`
	CookieSameSite    string `mapstructure:"COOKIE_SAME_SITE"`
	CookieDomain      string `mapstructure:"COOKIE_DOMAIN"`
	CookiePath        string `mapstructure:"COOKIE_PATH"`

	// Empty RedisAddr keeps rotation locks in process memory.
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	RotationLockTTL time.Duration `mapstructure:"ROTATION_LOCK_TTL"`

	AuthRateLimitRPM  int  `mapstructure:"AUTH_RATE_LIMIT_RPM"`
	// Only honour X-Forwarded-For / X-Real-IP behind a proxy that overwrites them.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`

	OTELServiceName           string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTELEnvironment           string        `mapstructure:"OTEL_ENVIRONMENT"`
	OTELExporterOTLPEndpoint  string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterOTLPInsecure  bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELMetricsEnabled        bool          `mapstructure:"OTEL_METRICS_ENABLED"`
	OTELTracingEnabled        bool          `mapstructure:"OTEL_TRACING_ENABLED"`
	OTELLogsEnabled           bool          `mapstructure:"OTEL_LOGS_ENABLED"`
	OTELMetricsExportInterval time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`
	OTELEnableHTTP            bool          `mapstructure:"OTEL_HTTP_ENABLED"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var configKeys = map[string]any{
	"APP_ENV":                      "development",
	"HTTP_ADDR":                    ":8080",
	"LOG_LEVEL":                    "info",
	"DATABASE_DRIVER":              "sqlite",
	"DATABASE_URL":                 "file:auth.db?_pragma=busy_timeout(5000)",
	"JWT_ISSUER":                   "refresh-session-auth",
	"JWT_AUDIENCE":                 "refresh-session-api",
	"JWT_ACCESS_SECRET":            "",
	"JWT_ACCESS_EXPIRES_IN":        "15m",
	"JWT_REFRESH_SECRET":           "",
	"JWT_REFRESH_EXPIRES_IN":       "7d",
	"BCRYPT_COST":                  security.DefaultBcryptCost,
	"COOKIE_REFRESH_NAME":          "refresh_token",
	"COOKIE_SECURE":                false,
	"COOKIE_SAME_SITE":             "lax",
	"COOKIE_DOMAIN":                "",
	"COOKIE_PATH":                  "/api/v1/auth",
	"REDIS_ADDR":                   "",
	"REDIS_PASSWORD":               "",
	"REDIS_DB":                     0,
	"ROTATION_LOCK_TTL":            "10s",
	"AUTH_RATE_LIMIT_RPM":          30,
	"TRUST_PROXY_HEADERS":          false,
	"OTEL_SERVICE_NAME":            "refresh-session-auth",
	"OTEL_ENVIRONMENT":             "local",
	"OTEL_EXPORTER_OTLP_ENDPOINT":  "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE":  true,
	"OTEL_METRICS_ENABLED":         false,
	"OTEL_TRACING_ENABLED":         false,
	"OTEL_LOGS_ENABLED":            false,
	"OTEL_METRICS_EXPORT_INTERVAL": "15s",
	"OTEL_HTTP_ENABLED":            false,
	"SHUTDOWN_TIMEOUT":             "15s",
}

// Load reads envFile (if present), then the environment, and validates the
// result. Environment variables override the file. A missing file is ignored.
func Load(envFile string) (*Config, error) {
	cfg, err := load(envFile)
	profile := ""
	if cfg != nil {
		profile = cfg.Env
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	recordConfigValidationEvent(context.Background(), profile, outcome, classifyConfigLoadError(err))
	return cfg, err
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("parse %s: %w", envFile, err)
			}
		}
	}
	v.AutomaticEnv()
	for key, def := range configKeys {
		v.SetDefault(key, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configuration the service cannot run with. Malformed
// expiry specs fail here rather than silently falling back at runtime.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	switch strings.ToLower(c.DatabaseDriver) {
	case "sqlite", "postgres", "postgresql":
	default:
		errs = append(errs, invalid(errStorageConfig, "DATABASE_DRIVER %q is not supported", c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, invalid(errStorageConfig, "DATABASE_URL is required"))
	}
	if len(c.JWTAccessSecret) < minSecretBytes {
		errs = append(errs, invalid(errSecretConfig, "JWT_ACCESS_SECRET must be at least %d bytes", minSecretBytes))
	}
	if len(c.JWTRefreshSecret) < minSecretBytes {
		errs = append(errs, invalid(errSecretConfig, "JWT_REFRESH_SECRET must be at least %d bytes", minSecretBytes))
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, invalid(errSecretConfig, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	access, err := security.ParseDurationSpec(c.JWTAccessExpiresIn)
	if err != nil || access <= 0 {
		errs = append(errs, invalid(errExpiryConfig, "JWT_ACCESS_EXPIRES_IN %q must be a positive <integer><s|m|h|d>", c.JWTAccessExpiresIn))
	}
	refresh, err := security.ParseDurationSpec(c.JWTRefreshExpiresIn)
	if err != nil || refresh <= 0 {
		errs = append(errs, invalid(errExpiryConfig, "JWT_REFRESH_EXPIRES_IN %q must be a positive <integer><s|m|h|d>", c.JWTRefreshExpiresIn))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	if strings.TrimSpace(c.CookieRefreshName) == "" {
		errs = append(errs, invalid(errCookieConfig, "COOKIE_REFRESH_NAME is required"))
	}
	sameSite, ok := security.ParseSameSite(c.CookieSameSite)
	if !ok {
		errs = append(errs, invalid(errCookieConfig, "COOKIE_SAME_SITE %q must be lax, strict or none", c.CookieSameSite))
	} else if sameSite == http.SameSiteNoneMode && !c.CookieSecure {
		errs = append(errs, invalid(errCookieConfig, "COOKIE_SAME_SITE=none requires COOKIE_SECURE=true"))
	}
	if c.RotationLockTTL <= 0 {
		errs = append(errs, errors.New("ROTATION_LOCK_TTL must be positive"))
	}
	if c.Env == "production" && !c.CookieSecure {
		errs = append(errs, invalid(errCookieConfig, "COOKIE_SECURE must be true when APP_ENV=production"))
	}
	return errors.Join(errs...)
}

func (c *Config) AccessTTL() time.Duration {
	d, _ := security.ParseDurationSpec(c.JWTAccessExpiresIn)
	return d
}

func (c *Config) RefreshTTL() time.Duration {
	d, _ := security.ParseDurationSpec(c.JWTRefreshExpiresIn)
	return d
}

func (c *Config) RefreshCookie() security.CookieOptions {
	sameSite, _ := security.ParseSameSite(c.CookieSameSite)
	return security.CookieOptions{
		Name:     c.CookieRefreshName,
		Path:     c.CookiePath,
		Domain:   c.CookieDomain,
		Secure:   c.CookieSecure,
		SameSite: sameSite,
		MaxAge:   int(c.RefreshTTL().Seconds()),
	}
}

func (c *Config) JWTOptions() security.JWTOptions {
	return security.JWTOptions{
		Issuer:        c.JWTIssuer,
		Audience:      c.JWTAudience,
		AccessSecret:  c.JWTAccessSecret,
		RefreshSecret: c.JWTRefreshSecret,
		AccessTTL:     c.AccessTTL(),
		RefreshTTL:    c.RefreshTTL(),
	}
}
