package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/afs"

	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/cache"
	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/resilience"
	"github.com/jekyllbuildr/buildr/secret"
)

// Environment variables read by Load.
const (
	EnvAPIURL    = "JEKYLL_STUDIO_API_URL"
	EnvHome      = "BUILDR_HOME"
	EnvLogLevel  = "BUILDR_LOG_LEVEL"
	EnvLogFormat = "BUILDR_LOG_FORMAT"
)

const (
	// DefaultWebURL is the web application that hosts the login page.
	DefaultWebURL = "https://jekyll-buildr.vercel.app"

	// DefaultAPIURL is the base URL of the remote API.
	DefaultAPIURL = DefaultWebURL + "/api"

	// FileName is the config file looked up under the root directory.
	FileName = "config.json"

	rootDirName     = ".jekyll-buildr"
	cacheDirName    = "cache"
	metricsFileName = "metrics.prom"
	loginPath       = "/cli-login"
)

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
	ErrReadConfig    = errors.New("config: cannot read config file")
)

// Config holds runtime settings for the buildr CLI.
type Config struct {
	// Root is the directory holding token.json and the cache directory.
	Root string `json:"root,omitempty"`

	// APIURL is the base URL of the remote API.
	APIURL string `json:"api_url,omitempty"`

	// WebURL is the web application base URL; the login page lives under it.
	WebURL string `json:"web_url,omitempty"`

	Cache     CacheConfig     `json:"cache"`
	Login     LoginConfig     `json:"login"`
	HTTP      HTTPConfig      `json:"http"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Disabled      bool                `json:"disabled,omitempty"`
	MaxBytes      int64               `json:"max_bytes,omitempty"`
	LowWaterRatio float64             `json:"low_water_ratio,omitempty"`
	DefaultTTL    Duration            `json:"default_ttl"`
	MaxTTL        Duration            `json:"max_ttl"`
	OperationTTLs map[string]Duration `json:"operation_ttls,omitempty"`
}

// LoginConfig configures the login negotiation.
type LoginConfig struct {
	PollInterval   Duration `json:"poll_interval"`
	Timeout        Duration `json:"timeout"`
	RequestTimeout Duration `json:"request_timeout"`
}

// HTTPConfig configures outbound API calls.
type HTTPConfig struct {
	Timeout       Duration `json:"timeout"`
	RetryAttempts int      `json:"retry_attempts,omitempty"`
	RateLimit     float64  `json:"rate_limit,omitempty"`
	Burst         int      `json:"burst,omitempty"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// TelemetryConfig selects OpenTelemetry exporters. Empty or "none" disables.
type TelemetryConfig struct {
	Tracing   string  `json:"tracing,omitempty"`
	Metrics   string  `json:"metrics,omitempty"`
	SamplePct float64 `json:"sample_pct,omitempty"`
}

// Overrides are values supplied on the command line. Empty fields are ignored.
type Overrides struct {
	Root      string
	APIURL    string
	LogLevel  string
	LogFormat string
}

// Options controls Load.
type Options struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	Overrides Overrides

	// LookupEnv reads the environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Resolver expands values. Default: secret.DefaultResolver().
	Resolver *secret.Resolver
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Root:   defaultRoot(),
		APIURL: DefaultAPIURL,
		WebURL: DefaultWebURL,
		Cache: CacheConfig{
			MaxBytes:      cache.DefaultMaxBytes,
			LowWaterRatio: cache.DefaultLowWaterRatio,
			DefaultTTL:    D(24 * time.Hour),
			MaxTTL:        D(7 * 24 * time.Hour),
		},
		Login: LoginConfig{
			PollInterval:   D(3 * time.Second),
			Timeout:        D(5 * time.Minute),
			RequestTimeout: D(resilience.DefaultTimeout),
		},
		HTTP: HTTPConfig{
			Timeout:       D(60 * time.Second),
			RetryAttempts: 3,
			RateLimit:     2,
			Burst:         4,
		},
		Log: LogConfig{Level: "warn", Format: "text"},
		Telemetry: TelemetryConfig{
			Tracing:   "none",
			Metrics:   "none",
			SamplePct: 1,
		},
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rootDirName
	}
	return filepath.Join(home, rootDirName)
}

// Load builds a Config from defaults, the config file, the environment and
// overrides, resolves secret references and validates the result.
func Load(ctx context.Context, opts Options) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = secret.DefaultResolver()
	}

	cfg := Default()

	// The root may move the default config file location.
	root := cfg.Root
	if v, ok := lookup(EnvHome); ok && v != "" {
		root = v
	}
	if opts.Overrides.Root != "" {
		root = opts.Overrides.Root
	}

	path, required := opts.Path, true
	if path == "" {
		path, required = filepath.Join(root, FileName), false
	}
	if err := cfg.mergeFile(ctx, path, required); err != nil {
		return nil, err
	}

	cfg.applyEnv(lookup)
	cfg.Apply(opts.Overrides)

	if err := cfg.resolve(ctx, resolver); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(ctx context.Context, path string, required bool) error {
	fs := afs.New()
	ok, err := fs.Exists(ctx, path)
	if err != nil || !ok {
		if required {
			return fmt.Errorf("%w: %s", ErrReadConfig, path)
		}
		return nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvHome); ok && v != "" {
		c.Root = v
	}
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
}

// Apply overlays non-empty overrides.
func (c *Config) Apply(o Overrides) {
	if o.Root != "" {
		c.Root = o.Root
	}
	if o.APIURL != "" {
		c.APIURL = o.APIURL
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
}

func (c *Config) resolve(ctx context.Context, r *secret.Resolver) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"root", &c.Root},
		{"api_url", &c.APIURL},
		{"web_url", &c.WebURL},
		{"log.level", &c.Log.Level},
		{"log.format", &c.Log.Format},
		{"telemetry.tracing", &c.Telemetry.Tracing},
		{"telemetry.metrics", &c.Telemetry.Metrics},
	}
	for _, f := range fields {
		resolved, err := r.ResolveValue(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", f.name, err)
		}
		*f.value = resolved
	}
	if strings.HasPrefix(c.Root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: root: %w", err)
		}
		c.Root = filepath.Join(home, c.Root[2:])
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.WebURL = strings.TrimRight(c.WebURL, "/")
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalidConfig)
	}
	if err := validateURL("api_url", c.APIURL); err != nil {
		return err
	}
	if err := validateURL("web_url", c.WebURL); err != nil {
		return err
	}
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("%w: cache.max_bytes must not be negative", ErrInvalidConfig)
	}
	if c.Cache.LowWaterRatio < 0 || c.Cache.LowWaterRatio > 1 {
		return fmt.Errorf("%w: cache.low_water_ratio must be within [0, 1]", ErrInvalidConfig)
	}
	if c.Cache.DefaultTTL.Duration < 0 || c.Cache.MaxTTL.Duration < 0 {
		return fmt.Errorf("%w: cache TTLs must not be negative", ErrInvalidConfig)
	}
	if c.Login.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: login.poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Login.Timeout.Duration < c.Login.PollInterval.Duration {
		return fmt.Errorf("%w: login.timeout must be at least login.poll_interval", ErrInvalidConfig)
	}
	if c.Login.RequestTimeout.Duration <= 0 || c.HTTP.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: request timeouts must be positive", ErrInvalidConfig)
	}
	if c.HTTP.RetryAttempts < 0 || c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("%w: http limits must not be negative", ErrInvalidConfig)
	}
	oc := c.ObserveConfig("", "")
	return oc.Validate()
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s %q is not an http(s) URL", ErrInvalidConfig, name, raw)
	}
	return nil
}

// CacheDir is the location of cache entries.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Root, cacheDirName)
}

// LoginURL is the login page the user is sent to.
func (c *Config) LoginURL() string {
	return c.WebURL + loginPath
}

// CachePolicy converts the cache settings. A disabled cache yields
// cache.NoCachePolicy.
func (c *Config) CachePolicy() cache.Policy {
	if c.Cache.Disabled {
		return cache.NoCachePolicy()
	}
	p := cache.Policy{
		DefaultTTL:    c.Cache.DefaultTTL.Duration,
		MaxTTL:        c.Cache.MaxTTL.Duration,
		MaxBytes:      c.Cache.MaxBytes,
		LowWaterRatio: c.Cache.LowWaterRatio,
	}
	if len(c.Cache.OperationTTLs) > 0 {
		p.OperationTTLs = make(map[string]time.Duration, len(c.Cache.OperationTTLs))
		for op, ttl := range c.Cache.OperationTTLs {
			p.OperationTTLs[op] = ttl.Duration
		}
	}
	return p
}

// LoginConfig converts the login settings.
func (c *Config) LoginConfig() auth.LoginConfig {
	return auth.LoginConfig{
		LoginURL:       c.LoginURL(),
		PollInterval:   c.Login.PollInterval.Duration,
		Timeout:        c.Login.Timeout.Duration,
		RequestTimeout: c.Login.RequestTimeout.Duration,
	}
}

// Executor builds the resilience executor for authenticated API calls.
func (c *Config) Executor() *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: c.HTTP.RetryAttempts,
			Jitter:      true,
		})),
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  c.HTTP.RateLimit,
			Burst: c.HTTP.Burst,
		})),
		resilience.WithTimeout(c.HTTP.Timeout.Duration),
	)
}

// ObserveConfig converts the logging and telemetry settings.
func (c *Config) ObserveConfig(serviceName, version string) observe.Config {
	if serviceName == "" {
		serviceName = "buildr"
	}
	tracing := c.Telemetry.Tracing
	metrics := c.Telemetry.Metrics
	oc := observe.Config{
		ServiceName: serviceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   tracing != "" && tracing != "none",
			Exporter:  tracing,
			SamplePct: c.Telemetry.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  metrics != "" && metrics != "none",
			Exporter: metrics,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Log.Level,
			Format:  c.Log.Format,
		},
	}
	if metrics == "prometheus" {
		oc.Metrics.TextfilePath = c.MetricsFile()
	}
	return oc
}

// MetricsFile is where the prometheus exporter leaves its textfile.
func (c *Config) MetricsFile() string {
	return filepath.Join(c.Root, metricsFileName)
}
