// Package registry resolves source names to provider instances. Providers
// are constructed lazily on first resolution and reused afterwards.
package registry

import (
	"fmt"
	"sync"

	"equialert/internal/ports"
)

// Resolvable source names.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceAuto      = "auto" // primary for the first attempt, alternate on failure
)

// Factory builds one provider. It is invoked at most once per registry.
type Factory func() (ports.QuoteProvider, error)

// Config holds the provider factories.
type Config struct {
	Primary   Factory
	Secondary Factory
	Logger    ports.Logger
}

// Registry is a fixed two-node mapping of source names to lazily built
// singleton providers. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]ports.QuoteProvider
	logger    ports.Logger
}

// New creates a registry from the two provider factories.
func New(cfg Config) (*Registry, error) {
	if cfg.Primary == nil || cfg.Secondary == nil {
		return nil, fmt.Errorf("both provider factories are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the registry")
	}
	return &Registry{
		factories: map[string]Factory{
			SourcePrimary:   cfg.Primary,
			SourceSecondary: cfg.Secondary,
		},
		instances: make(map[string]ports.QuoteProvider),
		logger:    cfg.Logger,
	}, nil
}

// Resolve returns the provider instance for a source name. "auto" resolves
// to the primary provider.
func (r *Registry) Resolve(source string) (ports.QuoteProvider, error) {
	name := source
	if name == SourceAuto {
		name = SourcePrimary
	}
	return r.instance(name)
}

// AlternateOf returns the other concrete provider for a provider name, or
// ErrInvalidSource when the name has no alternate.
func (r *Registry) AlternateOf(name string) (ports.QuoteProvider, error) {
	switch name {
	case SourcePrimary:
		return r.instance(SourceSecondary)
	case SourceSecondary:
		return r.instance(SourcePrimary)
	default:
		return nil, fmt.Errorf("%w: no alternate for %q", ports.ErrInvalidSource, name)
	}
}

func (r *Registry) instance(name string) (ports.QuoteProvider, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrInvalidSource, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[name]; ok {
		return p, nil
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing %s provider: %w", name, err)
	}
	r.instances[name] = p
	return p, nil
}
