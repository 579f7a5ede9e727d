// Command buildr is the command-line client of the Jekyll Buildr service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/jekyllbuildr/buildr/api"
	"github.com/jekyllbuildr/buildr/auth"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], &App{stdout: os.Stdout, stderr: os.Stderr})
	stop()
	os.Exit(code)
}

// run parses args, executes the selected command and returns the exit code.
func run(ctx context.Context, args []string, app *App) int {
	app.ctx = ctx
	defer app.close()

	parser := newParser(app)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				fmt.Fprintln(app.stdout, flagsErr.Message)
				return 0
			}
			fmt.Fprintln(app.stderr, flagsErr.Message)
			return 2
		}
		return report(app.stderr, err)
	}
	return 0
}

func newParser(app *App) *flags.Parser {
	parser := flags.NewNamedParser("buildr", flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "Build Jekyll sites with AI"
	if _, err := parser.AddGroup("Global Options", "", &app.opts); err != nil {
		panic(err)
	}

	add := func(parent interface {
		AddCommand(string, string, string, any) (*flags.Command, error)
	}, name, short, long string, data any) *flags.Command {
		cmd, err := parent.AddCommand(name, short, long, data)
		if err != nil {
			panic(err)
		}
		return cmd
	}

	add(parser, "login", "Log in to your Jekyll Buildr account",
		"Opens the login page in a browser and waits for the login to complete.", &loginCommand{app: app})
	add(parser, "logout", "Log out and delete the stored session", "", &logoutCommand{app: app})
	add(parser, "whoami", "Show the logged-in user", "", &whoamiCommand{app: app})

	cacheCmd := add(parser, "cache", "Manage the response cache", "", &struct{}{})
	add(cacheCmd, "clear", "Remove every cached response", "", &cacheClearCommand{app: app})
	add(cacheCmd, "prune", "Evict the oldest responses when over budget", "", &cachePruneCommand{app: app})
	add(cacheCmd, "stats", "Show cache size and location", "", &cacheStatsCommand{app: app})

	add(parser, "doctor", "Check the environment and dependencies", "", &doctorCommand{app: app})
	add(parser, "post", "Generate a blog post from a title", "", &postCommand{app: app})
	add(parser, "site", "Generate a site structure from a prompt", "", &siteCommand{app: app})
	add(parser, "version", "Print the version", "", &versionCommand{app: app})
	return parser
}

// report prints err for the user and returns the exit code.
func report(w io.Writer, err error) int {
	switch {
	case errors.Is(err, errReported):
	case errors.Is(err, auth.ErrLoginTimeout):
		fmt.Fprintln(w, "Login timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "Cancelled.")
		return 130
	case errors.Is(err, api.ErrUnauthorized):
		fmt.Fprintln(w, "The server rejected your session. Run: buildr login --force")
	case errors.Is(err, api.ErrNotFound):
		fmt.Fprintf(w, "Error: %v\nCheck the API URL; set JEKYLL_STUDIO_API_URL to override it.\n", err)
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return 1
}
