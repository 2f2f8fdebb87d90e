package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve returns the value of the variable named ref.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.lookup(strings.TrimSpace(ref))
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path, as used by mounted
// container secrets. Surrounding whitespace is trimmed from the content.
type FileProvider struct {
	// Dir, when set, is joined with relative references.
	Dir string
}

// NewFileProvider creates a file provider rooted at dir. An empty dir leaves
// relative references relative to the working directory.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads the file at ref.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if p.Dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Close is a no-op.
func (p *FileProvider) Close() error { return nil }
