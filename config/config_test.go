package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jekyllbuildr/buildr/cache"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.LoginURL() != "https://jekyll-buildr.vercel.app/cli-login" {
		t.Errorf("LoginURL() = %q", cfg.LoginURL())
	}
	if cfg.Cache.MaxBytes != 50*1024*1024 {
		t.Errorf("Cache.MaxBytes = %d", cfg.Cache.MaxBytes)
	}
	if cfg.Login.PollInterval.Duration != 3*time.Second {
		t.Errorf("Login.PollInterval = %v", cfg.Login.PollInterval)
	}
	if cfg.Login.Timeout.Duration != 5*time.Minute {
		t.Errorf("Login.Timeout = %v", cfg.Login.Timeout)
	}
	if filepath.Base(cfg.Root) != ".jekyll-buildr" {
		t.Errorf("Root = %q", cfg.Root)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(context.Background(), Options{
		Overrides: Overrides{Root: root},
		LookupEnv: envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
	if cfg.CacheDir() != filepath.Join(root, "cache") {
		t.Errorf("CacheDir() = %q", cfg.CacheDir())
	}
}

func TestLoad_Precedence(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{
		"api_url": "https://file.example/api",
		"log": {"level": "info"},
		"login": {"poll_interval": "1s", "timeout": 60000000000}
	}`)

	tests := []struct {
		name       string
		env        map[string]string
		overrides  Overrides
		wantAPI    string
		wantLevel  string
		wantFormat string
	}{
		{
			name:       "file over defaults",
			env:        map[string]string{EnvHome: root},
			wantAPI:    "https://file.example/api",
			wantLevel:  "info",
			wantFormat: "text",
		},
		{
			name:       "env over file",
			env:        map[string]string{EnvHome: root, EnvAPIURL: "https://env.example/api/", EnvLogLevel: "debug", EnvLogFormat: "json"},
			wantAPI:    "https://env.example/api",
			wantLevel:  "debug",
			wantFormat: "json",
		},
		{
			name:       "overrides over env",
			env:        map[string]string{EnvHome: root, EnvAPIURL: "https://env.example/api", EnvLogFormat: "json"},
			overrides:  Overrides{APIURL: "https://flag.example/api", LogLevel: "error", LogFormat: "text"},
			wantAPI:    "https://flag.example/api",
			wantLevel:  "error",
			wantFormat: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(context.Background(), Options{
				Overrides: tt.overrides,
				LookupEnv: envMap(tt.env),
			})
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.APIURL != tt.wantAPI {
				t.Errorf("APIURL = %q, want %q", cfg.APIURL, tt.wantAPI)
			}
			if cfg.Log.Level != tt.wantLevel {
				t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, tt.wantLevel)
			}
			if cfg.Log.Format != tt.wantFormat {
				t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, tt.wantFormat)
			}
			if cfg.Login.PollInterval.Duration != time.Second {
				t.Errorf("PollInterval = %v, want 1s", cfg.Login.PollInterval)
			}
			if cfg.Login.Timeout.Duration != time.Minute {
				t.Errorf("Timeout = %v, want 1m", cfg.Login.Timeout)
			}
			// Unset file fields keep their defaults.
			if cfg.Cache.MaxBytes != cache.DefaultMaxBytes {
				t.Errorf("Cache.MaxBytes = %d", cfg.Cache.MaxBytes)
			}
		})
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"web_url": "http://localhost:3000"}`)

	cfg, err := Load(context.Background(), Options{
		Path:      path,
		Overrides: Overrides{Root: dir},
		LookupEnv: envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LoginURL() != "http://localhost:3000/cli-login" {
		t.Errorf("LoginURL() = %q", cfg.LoginURL())
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(context.Background(), Options{
		Path:      filepath.Join(t.TempDir(), "absent.json"),
		LookupEnv: envMap(nil),
	})
	if !errors.Is(err, ErrReadConfig) {
		t.Errorf("Load() error = %v, want ErrReadConfig", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"login": {"poll_interval": "soon"}}`)

	_, err := Load(context.Background(), Options{
		Overrides: Overrides{Root: root},
		LookupEnv: envMap(nil),
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BUILDR_TEST_API_HOST", "secret.example")
	writeConfig(t, root, `{"api_url": "https://${BUILDR_TEST_API_HOST}/api"}`)

	cfg, err := Load(context.Background(), Options{
		Overrides: Overrides{Root: root},
		LookupEnv: envMap(nil),
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://secret.example/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
}

func TestLoad_UnresolvedSecretFails(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"api_url": "https://${BUILDR_TEST_UNSET_VARIABLE}/api"}`)

	if _, err := Load(context.Background(), Options{
		Overrides: Overrides{Root: root},
		LookupEnv: envMap(nil),
	}); err == nil {
		t.Error("Load() should fail on an unset variable")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Root = "" }},
		{"relative api url", func(c *Config) { c.APIURL = "/api" }},
		{"ftp web url", func(c *Config) { c.WebURL = "ftp://example.com" }},
		{"negative max bytes", func(c *Config) { c.Cache.MaxBytes = -1 }},
		{"low water above one", func(c *Config) { c.Cache.LowWaterRatio = 1.5 }},
		{"zero poll interval", func(c *Config) { c.Login.PollInterval = D(0) }},
		{"timeout below interval", func(c *Config) { c.Login.Timeout = D(time.Second) }},
		{"zero request timeout", func(c *Config) { c.Login.RequestTimeout = D(0) }},
		{"negative retries", func(c *Config) { c.HTTP.RetryAttempts = -1 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"unknown exporter", func(c *Config) { c.Telemetry.Metrics = "statsd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestCachePolicy(t *testing.T) {
	cfg := Default()
	cfg.Cache.OperationTTLs = map[string]Duration{"ai.generatePost": D(time.Hour)}

	p := cfg.CachePolicy()
	if !p.ShouldCache() {
		t.Fatal("default policy should cache")
	}
	if got := p.TTLFor("ai.generatePost"); got != time.Hour {
		t.Errorf("TTLFor(ai.generatePost) = %v, want 1h", got)
	}
	if got := p.TTLFor("ai.generateSite"); got != 24*time.Hour {
		t.Errorf("TTLFor(ai.generateSite) = %v, want 24h", got)
	}
	if got := p.LowWaterBytes(); got != int64(float64(cache.DefaultMaxBytes)*0.8) {
		t.Errorf("LowWaterBytes() = %d", got)
	}

	cfg.Cache.Disabled = true
	if cfg.CachePolicy().ShouldCache() {
		t.Error("disabled cache should not cache")
	}
}

func TestLoginConfig(t *testing.T) {
	cfg := Default()
	lc := cfg.LoginConfig()
	if lc.LoginURL != cfg.LoginURL() {
		t.Errorf("LoginURL = %q", lc.LoginURL)
	}
	if lc.PollInterval != 3*time.Second || lc.Timeout != 5*time.Minute {
		t.Errorf("intervals = %v/%v", lc.PollInterval, lc.Timeout)
	}
}

func TestObserveConfig(t *testing.T) {
	cfg := Default()
	oc := cfg.ObserveConfig("buildr", "1.0.0")
	if oc.Tracing.Enabled || oc.Metrics.Enabled {
		t.Error("telemetry should be disabled by default")
	}
	if !oc.Logging.Enabled || oc.Logging.Level != "warn" {
		t.Errorf("Logging = %+v", oc.Logging)
	}

	cfg.Telemetry.Metrics = "prometheus"
	oc = cfg.ObserveConfig("buildr", "1.0.0")
	if !oc.Metrics.Enabled || oc.Metrics.Exporter != "prometheus" {
		t.Errorf("Metrics = %+v", oc.Metrics)
	}
	if oc.Metrics.TextfilePath != filepath.Join(cfg.Root, "metrics.prom") {
		t.Errorf("TextfilePath = %q", oc.Metrics.TextfilePath)
	}
	if oc.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", oc.Logging.Format)
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`"3s"`, 3 * time.Second, false},
		{`"1h30m"`, 90 * time.Minute, false},
		{`1000000000`, time.Second, false},
		{`"later"`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && d.Duration != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, d.Duration, tt.want)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(D(90 * time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"1m30s"` {
		t.Errorf("Marshal() = %s", b)
	}
}
