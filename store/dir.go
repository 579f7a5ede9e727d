package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/viant/afs"
)

const (
	fileScheme = "file://"
	lockName   = ".lock"
	tempPrefix = ".tmp-"
	probeName  = ".probe"

	// DefaultLockTimeout bounds how long Lock waits for another process.
	DefaultLockTimeout = 2 * time.Second
)

// Entry describes a stored object.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Dir is a directory of key-addressed objects.
//
// Contract:
// - Concurrency: safe for concurrent use on different names.
// - Atomicity: Write replaces an object as a whole; readers see old or new content.
// - Errors: Read returns ErrNotFound for absent objects; Remove is idempotent.
type Dir struct {
	fs          afs.Service
	baseURL     string
	localPath   string
	mode        os.FileMode
	lockTimeout time.Duration
}

// Option configures a Dir.
type Option func(*Dir)

// WithFileMode sets the permission bits for written objects. Default: 0600.
func WithFileMode(mode os.FileMode) Option {
	return func(d *Dir) {
		d.mode = mode
	}
}

// WithLockTimeout sets how long Lock waits for the lock file.
func WithLockTimeout(timeout time.Duration) Option {
	return func(d *Dir) {
		if timeout > 0 {
			d.lockTimeout = timeout
		}
	}
}

// New creates a Dir for location, which is either a filesystem path or an
// afs URL (file://, mem://, ...).
func New(location string, opts ...Option) *Dir {
	d := &Dir{
		fs:          afs.New(),
		mode:        0o600,
		lockTimeout: DefaultLockTimeout,
	}

	switch {
	case strings.HasPrefix(location, fileScheme):
		d.localPath = strings.TrimPrefix(location, fileScheme)
		d.baseURL = strings.TrimRight(location, "/")
	case strings.Contains(location, "://"):
		d.baseURL = strings.TrimRight(location, "/")
	default:
		abs, err := filepath.Abs(location)
		if err != nil {
			abs = location
		}
		d.localPath = abs
		d.baseURL = fileScheme + filepath.ToSlash(abs)
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Location returns the directory URL.
func (d *Dir) Location() string {
	return d.baseURL
}

// LocalPath returns the filesystem path, or "" for non-local backends.
func (d *Dir) LocalPath() string {
	return d.localPath
}

// Sub returns a Dir for the named child directory.
func (d *Dir) Sub(name string) *Dir {
	child := *d
	child.baseURL = d.baseURL + "/" + name
	if d.localPath != "" {
		child.localPath = filepath.Join(d.localPath, name)
	}
	return &child
}

func (d *Dir) url(name string) string {
	return d.baseURL + "/" + name
}

// Ensure creates the directory if it does not exist.
func (d *Dir) Ensure(ctx context.Context) error {
	ok, err := d.fs.Exists(ctx, d.baseURL)
	if err == nil && ok {
		return nil
	}
	if err := d.fs.Create(ctx, d.baseURL, 0o700, true); err != nil {
		return fmt.Errorf("store: create %s: %w", d.baseURL, err)
	}
	return nil
}

// Read returns the content of the named object.
func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if d.localPath != "" {
		data, err := os.ReadFile(filepath.Join(d.localPath, name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("store: read %s: %w", name, err)
		}
		return data, nil
	}

	u := d.url(name)
	ok, err := d.fs.Exists(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("store: stat %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	data, err := d.fs.DownloadWithURL(ctx, u)
	if err != nil {
		// Removed between the two calls.
		if gone, _ := d.fs.Exists(ctx, u); !gone {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read %s: %w", name, err)
	}
	return data, nil
}

// Write replaces the named object with data.
func (d *Dir) Write(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := d.Ensure(ctx); err != nil {
		return err
	}

	tmpName := tempPrefix + uuid.NewString()
	tmp := d.url(tmpName)
	if err := d.fs.Upload(ctx, tmp, d.mode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}

	// afs Move deletes the destination before renaming, which leaves a gap
	// where the object is absent. Local files are replaced with rename(2).
	if d.localPath != "" {
		if err := os.Rename(filepath.Join(d.localPath, tmpName), filepath.Join(d.localPath, name)); err != nil {
			_ = d.fs.Delete(ctx, tmp)
			return fmt.Errorf("store: commit %s: %w", name, err)
		}
		return nil
	}
	if err := d.fs.Move(ctx, tmp, d.url(name)); err != nil {
		_ = d.fs.Delete(ctx, tmp)
		return fmt.Errorf("store: commit %s: %w", name, err)
	}
	return nil
}

// Remove deletes the named object. Idempotent - no error when absent.
func (d *Dir) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	u := d.url(name)
	ok, err := d.fs.Exists(ctx, u)
	if err != nil || !ok {
		return nil
	}
	if err := d.fs.Delete(ctx, u); err != nil {
		return fmt.Errorf("store: remove %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the named object is present.
func (d *Dir) Exists(ctx context.Context, name string) bool {
	ok, err := d.fs.Exists(ctx, d.url(name))
	return err == nil && ok
}

// List returns the stored objects ordered by name. Directories, temporary
// objects and the lock file are not listed. A missing directory lists as empty.
func (d *Dir) List(ctx context.Context) ([]Entry, error) {
	ok, err := d.fs.Exists(ctx, d.baseURL)
	if err != nil || !ok {
		return nil, nil
	}
	objects, err := d.fs.List(ctx, d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", d.baseURL, err)
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		if obj.IsDir() || strings.HasPrefix(obj.Name(), ".") {
			continue
		}
		entries = append(entries, Entry{
			Name:    obj.Name(),
			Size:    obj.Size(),
			ModTime: obj.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Clear removes every listed object and returns how many were removed.
func (d *Dir) Clear(ctx context.Context) (int, error) {
	entries, err := d.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := d.Remove(ctx, e.Name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Probe verifies the directory is writable by writing and removing a probe object.
func (d *Dir) Probe(ctx context.Context) error {
	if err := d.Ensure(ctx); err != nil {
		return err
	}
	u := d.url(probeName)
	if err := d.fs.Upload(ctx, u, d.mode, strings.NewReader("ok")); err != nil {
		return fmt.Errorf("store: probe %s: %w", d.baseURL, err)
	}
	return d.fs.Delete(ctx, u)
}

// Lock acquires the directory's advisory lock file. The returned function
// releases it. For non-local backends Lock is a no-op.
func (d *Dir) Lock(ctx context.Context) (func(), error) {
	if d.localPath == "" {
		return func() {}, nil
	}
	if err := d.Ensure(ctx); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(d.localPath, lockName))
	lockCtx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil || !locked {
		return nil, ErrLocked
	}
	return func() { _ = lock.Unlock() }, nil
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	return nil
}
