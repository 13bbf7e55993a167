// Package secret resolves password references such as "env:FTP_PASSWORD"
// into values. Errors name the reference that failed and never carry the
// resolved value.
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	SchemeEnv    = "env"
	SchemeFile   = "file"
	SchemePrompt = "prompt"
	SchemeAWSSM  = "aws-sm"
)

var (
	ErrUnknownScheme = errors.New("unknown secret scheme")
	ErrNotFound      = errors.New("secret not found")
	ErrEmpty         = errors.New("secret value is empty")
	ErrAccessDenied  = errors.New("access denied to secret")
)

// Ref is a parsed "scheme:value" reference. The zero Ref means no secret.
type Ref struct {
	Scheme string
	Value  string
}

func (r Ref) IsZero() bool {
	return r.Scheme == ""
}

func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Scheme + ":" + r.Value
}

// ParseRef parses a reference. An empty string yields the zero Ref.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, nil
	}

	scheme, value, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("secret reference %q: missing scheme (want env:, file:, prompt: or aws-sm:)", s)
	}

	ref := Ref{Scheme: strings.ToLower(scheme), Value: value}
	switch ref.Scheme {
	case SchemeEnv, SchemeFile, SchemeAWSSM:
		if ref.Value == "" {
			return Ref{}, fmt.Errorf("secret reference %q: empty %s value", s, ref.Scheme)
		}
	case SchemePrompt:
	default:
		return Ref{}, fmt.Errorf("secret reference %q: %w", s, ErrUnknownScheme)
	}
	return ref, nil
}

type Provider interface {
	Resolve(ctx context.Context, ref Ref) (string, error)
}

// ResolveError reports which reference could not be resolved.
type ResolveError struct {
	Ref Ref
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve secret %s: %v", e.Ref, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Registry routes references to the provider registered for their scheme.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// NewDefaultRegistry registers every built-in scheme. The AWS settings are
// used only when an aws-sm reference is resolved.
func NewDefaultRegistry(region, profile string) *Registry {
	r := NewRegistry()
	r.Register(SchemeEnv, &EnvProvider{})
	r.Register(SchemeFile, &FileProvider{})
	r.Register(SchemePrompt, &PromptProvider{})
	r.Register(SchemeAWSSM, &AWSSecretsManagerProvider{Region: region, Profile: profile})
	return r
}

func (r *Registry) Register(scheme string, p Provider) {
	r.providers[scheme] = p
}

// Resolve parses ref and resolves it. An empty ref resolves to "".
func (r *Registry) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	if parsed.IsZero() {
		return "", nil
	}

	p, ok := r.providers[parsed.Scheme]
	if !ok {
		return "", &ResolveError{Ref: parsed, Err: ErrUnknownScheme}
	}

	value, err := p.Resolve(ctx, parsed)
	if err != nil {
		var resolveErr *ResolveError
		if errors.As(err, &resolveErr) {
			return "", err
		}
		return "", &ResolveError{Ref: parsed, Err: err}
	}
	return value, nil
}
