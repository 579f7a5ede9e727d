package health

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// BinaryCheckerConfig describes an external tool to look for.
type BinaryCheckerConfig struct {
	// Name is the display name, e.g. "Jekyll".
	Name string

	// Command is the executable looked up on PATH, e.g. "jekyll".
	Command string

	// VersionArgs prints the version. Default: ["--version"]
	VersionArgs []string

	// Required makes a missing or broken tool fail instead of warn.
	Required bool

	// Hint is shown when the tool is missing or broken.
	Hint string

	// Timeout bounds the version command.
	// Default: 5 seconds
	Timeout time.Duration
}

// BinaryChecker reports whether a tool is installed and which version it is.
type BinaryChecker struct {
	config   BinaryCheckerConfig
	lookPath func(string) (string, error)
	run      func(ctx context.Context, path string, args ...string) ([]byte, error)
}

// NewBinaryChecker creates a checker for an external tool.
func NewBinaryChecker(config BinaryCheckerConfig) *BinaryChecker {
	if len(config.VersionArgs) == 0 {
		config.VersionArgs = []string{"--version"}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Name == "" {
		config.Name = config.Command
	}
	return &BinaryChecker{
		config:   config,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, path string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Name returns the tool's display name.
func (c *BinaryChecker) Name() string {
	return c.config.Name
}

// Check looks the tool up on PATH and runs its version command.
func (c *BinaryChecker) Check(ctx context.Context) Result {
	path, err := c.lookPath(c.config.Command)
	if err != nil {
		return c.fail("not installed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	out, err := c.run(ctx, path, c.config.VersionArgs...)
	if err != nil {
		return c.fail("not working properly", err)
	}

	version := firstLine(out)
	if version == "" {
		version = "installed"
	}
	return Pass(version).WithDetails(map[string]any{"path": path})
}

func (c *BinaryChecker) fail(message string, err error) Result {
	var r Result
	if c.config.Required {
		r = Fail(message, err)
	} else {
		r = Warn(message)
		r.Error = err
	}
	return r.WithHint(c.config.Hint)
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(line)
}

// DefaultToolCheckers returns the checkers for the tools used to build and
// serve generated sites. All are optional: Docker can stand in for a local
// Ruby toolchain.
func DefaultToolCheckers() []Checker {
	return []Checker{
		NewBinaryChecker(BinaryCheckerConfig{
			Name:    "Ruby",
			Command: "ruby",
			Hint:    "Install Ruby: https://www.ruby-lang.org/en/documentation/installation/",
		}),
		NewBinaryChecker(BinaryCheckerConfig{
			Name:    "Bundler",
			Command: "bundle",
			Hint:    "Install Bundler: gem install bundler",
		}),
		NewBinaryChecker(BinaryCheckerConfig{
			Name:    "Jekyll",
			Command: "jekyll",
			Hint:    "Install Jekyll: https://jekyllrb.com/docs/installation/",
		}),
		NewBinaryChecker(BinaryCheckerConfig{
			Name:    "Docker",
			Command: "docker",
			Hint:    "Install Docker: https://docs.docker.com/get-docker/",
		}),
	}
}
