package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jekyllbuildr/buildr/api"
	"github.com/jekyllbuildr/buildr/auth"
	"github.com/jekyllbuildr/buildr/store"
)

// RuntimeChecker reports the Go runtime and platform of the running binary.
func RuntimeChecker(version string) Checker {
	return Named("buildr", func(context.Context) Result {
		msg := fmt.Sprintf("%s (%s, %s/%s)", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return Pass(msg)
	})
}

// DirChecker reports whether dir can be created and written to.
func DirChecker(name string, dir *store.Dir) Checker {
	location := dir.LocalPath()
	if location == "" {
		location = dir.Location()
	}
	return Named(name, func(ctx context.Context) Result {
		if err := dir.Probe(ctx); err != nil {
			return Fail("not writable", err).WithHint("Check permissions of " + location)
		}
		return Pass(location)
	})
}

// IdentitySource returns the stored identity without logging in.
type IdentitySource interface {
	Current(ctx context.Context) (*auth.Identity, error)
}

// SessionChecker reports whether a usable login is stored. Missing and
// expired sessions only warn: the next command that needs one logs in.
func SessionChecker(src IdentitySource, now func() time.Time) Checker {
	if now == nil {
		now = time.Now
	}
	return Named("Session", func(ctx context.Context) Result {
		id, err := src.Current(ctx)
		switch {
		case errors.Is(err, auth.ErrNotLoggedIn):
			return Warn("not logged in").WithHint("Run: buildr login")
		case errors.Is(err, auth.ErrTokenExpired):
			return Warn(fmt.Sprintf("expired %s ago", now().Sub(id.ExpiresAt).Round(time.Second))).
				WithHint("Run: buildr login")
		case err != nil:
			return Fail("unreadable session", err).WithHint("Run: buildr logout && buildr login")
		}
		return Pass(fmt.Sprintf("%s, expires in %s", id.DisplayName, id.ExpiresAt.Sub(now()).Round(time.Minute))).
			WithDetails(map[string]any{"role": id.Role, "expires_at": id.ExpiresAt})
	})
}

// APIChecker calls the service's health endpoint.
func APIChecker(client *api.Client) Checker {
	return Named("API Connection", func(ctx context.Context) Result {
		status, err := client.Health(ctx)
		if err != nil {
			hint := "Check your internet connection and API availability"
			if errors.Is(err, api.ErrNotFound) {
				hint = "Check the API URL; set JEKYLL_STUDIO_API_URL to override it"
			}
			return Fail("cannot connect to "+client.BaseURL(), err).WithHint(hint)
		}
		msg := "connected"
		if status.Version != "" {
			msg += " (" + status.Version + ")"
		}
		return Pass(msg)
	})
}
