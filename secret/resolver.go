package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

// Resolver resolves environment variables and secret references in
// configuration values such as cache connection strings.
//
// A nil *Resolver only performs strict environment expansion.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. When strict is set, a provider returning
// an empty value is an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// DefaultResolver resolves the built-in "env" and "file" providers.
func DefaultResolver() *Resolver {
	return NewResolver(true, EnvProvider{}, FileProvider{})
}

// Register adds or replaces a provider.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// Close closes every registered provider.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, p := range r.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// ResolveValue expands ${VAR} references, then resolves secret references.
// The whole value may be a reference, or references may be embedded:
//
//	secretref:file:/run/secrets/redis_url
//	redis://:secretref:env:REDIS_PASSWORD@cache.internal:6379/0
//
// An embedded reference ends at whitespace or '@'.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if provider, ref, ok := ParseSecretRef(expanded); ok && !strings.ContainsAny(ref, " \t\n@") {
		return r.resolve(ctx, provider, ref)
	}
	return r.resolveEmbedded(ctx, expanded)
}

// ParseSecretRef parses a whole-value secret reference:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolve(ctx context.Context, providerName, ref string) (string, error) {
	p, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}
	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySecret, providerName)
	}
	return v, nil
}

var embeddedRefPattern = regexp.MustCompile(`secretref:([A-Za-z0-9_-]+):([^\s@]+)`)

func (r *Resolver) resolveEmbedded(ctx context.Context, value string) (string, error) {
	matches := embeddedRefPattern.FindAllStringSubmatchIndex(value, -1)

	// Replace back to front so earlier indexes stay valid.
	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		v, err := r.resolve(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + v + out[m[1]:]
	}
	return out, nil
}
