package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// ErrNotFound is returned when a referenced secret does not exist.
var ErrNotFound = errors.New("secret: not found")

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value. Unset variables are ErrNotFound.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, ref)
	}
	return v, nil
}

// FileProvider resolves a reference as a file path or storage URL and
// returns its contents with surrounding whitespace trimmed. A leading "~/"
// is expanded to the user's home directory.
type FileProvider struct {
	fs afs.Service
}

// NewFileProvider creates a FileProvider backed by afs.
func NewFileProvider() *FileProvider {
	return &FileProvider{fs: afs.New()}
}

// Name returns "file".
func (*FileProvider) Name() string { return "file" }

// Resolve reads the referenced object.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	location, err := expandHome(ref)
	if err != nil {
		return "", err
	}
	ok, err := p.fs.Exists(ctx, location)
	if err != nil || !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	data, err := p.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func expandHome(ref string) (string, error) {
	if !strings.HasPrefix(ref, "~/") {
		return ref, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("secret: resolve home: %w", err)
	}
	return filepath.Join(home, ref[2:]), nil
}
