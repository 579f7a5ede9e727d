package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"

	"github.com/jekyllbuildr/buildr/api"
	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/health"
	"github.com/jekyllbuildr/buildr/observe"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("buildr: command failed")

type loginCommand struct {
	app   *App
	Force bool `short:"f" long:"force" description:"Log in again even if a valid session is stored"`
}

func (c *loginCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	login := a.negotiator.EnsureSession
	if c.Force {
		login = a.negotiator.Login
	}
	cred, err := login(a.ctx)
	if err != nil {
		return err
	}
	name := cred.DisplayName
	if name == "" {
		name = "unknown user"
	}
	a.printf("Logged in as %s.\n", name)
	return nil
}

type logoutCommand struct {
	app *App
}

func (c *logoutCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	if err := a.negotiator.Logout(a.ctx); err != nil {
		return err
	}
	a.printf("Logged out.\n")
	return nil
}

type whoamiCommand struct {
	app *App
}

func (c *whoamiCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	id, err := a.negotiator.Current(a.ctx)
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		a.printf("Not logged in. Run: buildr login\n")
		return errReported
	case errors.Is(err, auth.ErrTokenExpired):
		a.printf("%s (session expired %s)\n", id.DisplayName, id.ExpiresAt.Local().Format(time.RFC1123))
		return errReported
	case err != nil:
		return err
	}
	a.printf("%s\n", id.DisplayName)
	if id.Email != "" {
		a.printf("  email:   %s\n", id.Email)
	}
	if id.Role != "" {
		a.printf("  role:    %s\n", id.Role)
	}
	a.printf("  expires: %s\n", id.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

type cacheClearCommand struct {
	app *App
}

func (c *cacheClearCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	if err := a.diskCache.Clear(a.ctx); err != nil {
		return err
	}
	a.printf("Cache cleared.\n")
	return nil
}

type cachePruneCommand struct {
	app *App
}

func (c *cachePruneCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	report, err := a.diskCache.Evict(a.ctx)
	if err != nil {
		return err
	}
	if len(report.Removed) == 0 {
		a.printf("Cache within budget: %s in %d entries.\n", formatBytes(report.BytesBefore), report.Entries)
		return nil
	}
	a.printf("Evicted %d entries: %s -> %s.\n", len(report.Removed), formatBytes(report.BytesBefore), formatBytes(report.BytesAfter))
	return nil
}

type cacheStatsCommand struct {
	app *App
}

func (c *cacheStatsCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	stats, err := a.diskCache.Stats(a.ctx)
	if err != nil {
		return err
	}
	a.printf("Location: %s\n", a.cfg.CacheDir())
	a.printf("Entries:  %d\n", stats.Entries)
	a.printf("Size:     %s of %s\n", formatBytes(stats.Bytes), formatBytes(stats.MaxBytes))
	return nil
}

type doctorCommand struct {
	app *App
}

func (c *doctorCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}

	agg := health.NewAggregator()
	agg.Register(health.RuntimeChecker(version))
	agg.Register(health.DefaultToolCheckers()...)
	agg.Register(
		health.DirChecker("State directory", a.root),
		health.DirChecker("Cache directory", a.root.Sub("cache")),
		health.SessionChecker(a.negotiator, nil),
		health.APIChecker(a.client),
	)

	report, err := agg.Run(a.ctx)
	if err != nil {
		return err
	}
	if _, err := report.WriteTo(a.stdout); err != nil {
		return err
	}
	a.logger.Debug(a.ctx, "doctor finished", observe.F("status", report.Status.String()))
	if report.Status == health.StatusFail {
		return errReported
	}
	return nil
}

type postCommand struct {
	app        *App
	Tags       string `long:"tags" description:"Comma-separated tags"`
	Categories string `long:"categories" description:"Comma-separated categories"`
	Output     string `short:"o" long:"output" description:"Write the post to this file instead of stdout"`
	Refresh    bool   `long:"refresh" description:"Ignore any cached response"`
	Args       struct {
		Title []string `positional-arg-name:"title" required:"1"`
	} `positional-args:"yes"`
}

func (c *postCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	req := api.PostRequest{
		Title:      strings.Join(c.Args.Title, " "),
		Tags:       splitList(c.Tags),
		Categories: splitList(c.Categories),
	}

	if _, err := a.negotiator.EnsureSession(a.ctx); err != nil {
		return err
	}
	if c.Refresh {
		if err := a.client.InvalidatePost(a.ctx, req); err != nil {
			a.logger.Debug(a.ctx, "cache invalidate failed", observe.Err(err))
		}
	}

	resp, err := a.client.GeneratePost(a.ctx, req)
	if err != nil {
		return err
	}
	return a.emit(c.Output, []byte(resp.Content))
}

type siteCommand struct {
	app     *App
	Output  string `short:"o" long:"output" description:"Write the site structure to this file instead of stdout"`
	Refresh bool   `long:"refresh" description:"Ignore any cached response"`
	Args    struct {
		Prompt []string `positional-arg-name:"prompt" required:"1"`
	} `positional-args:"yes"`
}

func (c *siteCommand) Execute([]string) error {
	a := c.app
	if err := a.setup(a.ctx); err != nil {
		return err
	}
	req := api.SiteRequest{Prompt: strings.Join(c.Args.Prompt, " ")}

	if _, err := a.negotiator.EnsureSession(a.ctx); err != nil {
		return err
	}
	if c.Refresh {
		if err := a.client.InvalidateSite(a.ctx, req); err != nil {
			a.logger.Debug(a.ctx, "cache invalidate failed", observe.Err(err))
		}
	}

	resp, err := a.client.GenerateSite(a.ctx, req)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp.Structure, "", "  ")
	if err != nil {
		return err
	}
	return a.emit(c.Output, append(out, '\n'))
}

type versionCommand struct {
	app *App
}

func (c *versionCommand) Execute([]string) error {
	c.app.printf("buildr %s\n", version)
	return nil
}

// emit writes data to location, or to stdout when location is empty.
func (a *App) emit(location string, data []byte) error {
	if location == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	fs := afs.New()
	if err := fs.Upload(a.ctx, location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", location, err)
	}
	fmt.Fprintf(a.stderr, "Wrote %s\n", location)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
