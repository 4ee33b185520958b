package schema

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Registry holds one Binding per entity name.
type Registry struct {
	cipher  Cipher
	indexer Indexer
	logger  *slog.Logger

	mu       sync.RWMutex
	bindings map[string]*Binding
	order    []string
}

// NewRegistry creates an empty registry sharing cipher and indexer across bindings.
func NewRegistry(cipher Cipher, indexer Indexer, logger *slog.Logger) *Registry {
	return &Registry{
		cipher:   cipher,
		indexer:  indexer,
		logger:   logger,
		bindings: make(map[string]*Binding),
	}
}

// Register validates spec against the entity shape and stores the binding under name.
// shape is usually the zero value of the struct persisted for the entity.
func (r *Registry) Register(name string, shape any, spec Spec) (*Binding, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "entity name is required")
	}

	binding, err := newBinding(name, shape, spec, r.cipher, r.indexer, r.logger)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[name]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntityAlreadyRegistered, name)
	}
	r.bindings[name] = binding
	r.order = append(r.order, name)
	return binding, nil
}

// Binding returns the binding registered under name.
func (r *Registry) Binding(name string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotRegistered, name)
	}
	return binding, nil
}

// Bindings returns every binding in registration order.
func (r *Registry) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Binding, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.bindings[name])
	}
	return out
}

// Select returns the bindings for names, or every binding when names is empty.
func (r *Registry) Select(names []string) ([]*Binding, error) {
	if len(names) == 0 {
		return r.Bindings(), nil
	}
	out := make([]*Binding, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		b, err := r.Binding(name)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
