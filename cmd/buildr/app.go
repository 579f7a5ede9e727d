package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jekyllbuildr/buildr/api"
	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/cache"
	"github.com/jekyllbuildr/buildr/config"
	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/session"
	"github.com/jekyllbuildr/buildr/store"
)

// GlobalOptions are accepted by every command.
type GlobalOptions struct {
	Config    string `short:"c" long:"config" description:"Path or URL of a JSON config file (default <home>/config.json)"`
	Home      string `long:"home" description:"State directory holding token.json and the cache (default ~/.jekyll-buildr)"`
	APIURL    string `long:"api-url" description:"Base URL of the API"`
	LogLevel  string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" choice:"text" choice:"json" description:"Log line format"`
}

// App holds the wired components shared by commands.
type App struct {
	ctx    context.Context
	opts   GlobalOptions
	stdout io.Writer
	stderr io.Writer

	// Test hooks.
	lookupEnv   func(string) (string, bool)
	openBrowser auth.BrowserOpener

	cfg        *config.Config
	observer   observe.Observer
	logger     observe.Logger
	mw         *observe.Middleware
	root       *store.Dir
	diskCache  *cache.DiskCache
	sessions   *session.Store
	negotiator *auth.Negotiator
	client     *api.Client
}

// setup loads configuration and wires components. It is called once, by
// the first command that runs.
func (a *App) setup(ctx context.Context) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(ctx, config.Options{
		Path: a.opts.Config,
		Overrides: config.Overrides{
			Root:      a.opts.Home,
			APIURL:    a.opts.APIURL,
			LogLevel:  a.opts.LogLevel,
			LogFormat: a.opts.LogFormat,
		},
		LookupEnv: a.lookupEnv,
	})
	if err != nil {
		return err
	}

	obsCfg := cfg.ObserveConfig("buildr", version)
	obsCfg.Output = a.stderr
	if a.lookupEnv != nil {
		obsCfg.Getenv = func(k string) string {
			v, _ := a.lookupEnv(k)
			return v
		}
	}
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return fmt.Errorf("telemetry: %w", err)
	}
	logger := obs.Logger()
	metrics := mw.Metrics()

	root := store.New(cfg.Root)
	diskCache := cache.NewDiskCache(root.Sub("cache"), cfg.CachePolicy(),
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
	)
	sessions := session.New(root, logger)

	plain := api.New(cfg.APIURL,
		api.WithMiddleware(mw),
		api.WithUserAgent("buildr/"+version),
	)

	negotiatorOpts := []auth.NegotiatorOption{
		auth.WithOutput(a.stderr),
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
	}
	if a.openBrowser != nil {
		negotiatorOpts = append(negotiatorOpts, auth.WithBrowserOpener(a.openBrowser))
	}
	negotiator := auth.NewNegotiator(sessions, plain, cfg.LoginConfig(), negotiatorOpts...)

	client := api.New(cfg.APIURL,
		api.WithMiddleware(mw),
		api.WithUserAgent("buildr/"+version),
		api.WithTokenSource(negotiator),
		api.WithCache(cache.NewCacheMiddleware(diskCache, cache.NewDefaultKeyer(), cfg.CachePolicy(), nil)),
		api.WithExecutor(cfg.Executor()),
	)

	a.cfg = cfg
	a.observer = obs
	a.logger = logger
	a.mw = mw
	a.root = root
	a.diskCache = diskCache
	a.sessions = sessions
	a.negotiator = negotiator
	a.client = client
	return nil
}

// close flushes telemetry.
func (a *App) close() {
	if a.observer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.observer.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", observe.Err(err))
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
