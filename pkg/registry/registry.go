// Package registry implements the name-keyed lookup used to select pluggable backends
// (git providers, cloud scenario factories, external deployment catalogs, database drivers)
// from a configuration value.
package registry

import (
	"sort"
	"sync"

	"github.com/kiegroup/kie-cloud-tests/pkg/failure"
)

// Registry maps names to implementations. Names are matched case-sensitively.
type Registry[T any] struct {
	kind      string
	configKey string

	mu        sync.RWMutex
	entries   map[string]T
	ambiguous map[string]bool
}

// New creates a Registry. kind is used in error messages ("git provider") and configKey
// names the configuration entry that selects an implementation.
func New[T any](kind, configKey string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		configKey: configKey,
		entries:   map[string]T{},
		ambiguous: map[string]bool{},
	}
}

// Kind describes what the registry holds, e.g. "git provider".
func (r *Registry[T]) Kind() string {
	return r.kind
}

// ConfigKey returns the configuration key that selects an entry of this registry.
func (r *Registry[T]) ConfigKey() string {
	return r.configKey
}

// Register adds v under name. Registering the same name twice fails and makes the name
// unresolvable, so a duplicate plugin never wins silently.
func (r *Registry[T]) Register(name string, v T) error {
	if name == "" {
		return &failure.UsageError{Op: "register " + r.kind, Reason: "name must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok || r.ambiguous[name] {
		r.ambiguous[name] = true
		delete(r.entries, name)
		return &failure.ProviderResolutionError{Kind: r.kind, Name: name, Known: r.namesLocked(), Ambiguous: true}
	}
	r.entries[name] = v
	return nil
}

// MustRegister is Register for package init functions.
func (r *Registry[T]) MustRegister(name string, v T) {
	if err := r.Register(name, v); err != nil {
		panic(err)
	}
}

// Resolve returns the entry registered under name.
func (r *Registry[T]) Resolve(name string) (T, error) {
	var zero T
	if name == "" {
		return zero, failure.MissingParameter(r.configKey)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ambiguous[name] {
		return zero, &failure.ProviderResolutionError{Kind: r.kind, Name: name, Known: r.namesLocked(), Ambiguous: true}
	}
	v, ok := r.entries[name]
	if !ok {
		return zero, &failure.ProviderResolutionError{Kind: r.kind, Name: name, Known: r.namesLocked()}
	}
	return v, nil
}

// ResolveDefault behaves like Resolve, except that an empty name selects the only
// registered entry. It fails when nothing or more than one entry is registered.
func (r *Registry[T]) ResolveDefault(name string) (T, error) {
	if name != "" {
		return r.Resolve(name)
	}

	var zero T
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.namesLocked()
	switch len(names) {
	case 0:
		return zero, &failure.ProviderResolutionError{Kind: r.kind}
	case 1:
		if r.ambiguous[names[0]] {
			return zero, &failure.ProviderResolutionError{Kind: r.kind, Name: names[0], Known: names, Ambiguous: true}
		}
		return r.entries[names[0]], nil
	default:
		return zero, &failure.ProviderResolutionError{Kind: r.kind, Known: names, Ambiguous: true}
	}
}

// Names returns every registered name in sorted order, ambiguous ones included.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry[T]) namesLocked() []string {
	names := make([]string, 0, len(r.entries)+len(r.ambiguous))
	for n := range r.entries {
		names = append(names, n)
	}
	for n := range r.ambiguous {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
