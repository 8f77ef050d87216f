package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors.
var (
	ErrMissingEnv            = errors.New("secret: missing required environment variables")
	ErrProviderNotRegistered = errors.New("secret: provider is not registered")
	ErrEmptySecret           = errors.New("secret: provider returned empty value")
	ErrInvalidRef            = errors.New("secret: invalid reference")
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as the name of an environment variable.
//
//	secretref:env:REDIS_PASSWORD
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the value of the environment variable ref.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path, the layout used by
// mounted container secrets. Trailing newlines are trimmed.
//
//	secretref:file:/run/secrets/redis_password
type FileProvider struct {
	// Root, when set, confines references to paths beneath it.
	Root string
}

// Name returns "file".
func (p FileProvider) Name() string { return "file" }

// Resolve reads the file named by ref.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := filepath.Clean(ref)
	if p.Root != "" {
		rel, err := filepath.Rel(p.Root, filepath.Join(p.Root, path))
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%w: %s escapes %s", ErrInvalidRef, ref, p.Root)
		}
		path = filepath.Join(p.Root, rel)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close is a no-op.
func (p FileProvider) Close() error { return nil }
