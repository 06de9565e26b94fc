package config

import (
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Ambient is process-wide key/value state read by code that receives no explicit
// configuration, e.g. maven invocations picking up MAVEN_DEPLOYER_REPO_URL from the
// environment. Only one scenario may mutate it at a time.
type Ambient interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// Environment is the Ambient backed by the process environment.
type Environment struct{}

func (Environment) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

func (Environment) Set(key, value string) error {
	return errors.Wrapf(os.Setenv(key, value), "setting %s", key)
}

func (Environment) Unset(key string) error {
	return errors.Wrapf(os.Unsetenv(key), "unsetting %s", key)
}

// Properties is an in-memory Ambient.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties returns Properties holding a copy of values.
func NewProperties(values map[string]string) *Properties {
	p := &Properties{values: map[string]string{}}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

func (p *Properties) Lookup(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *Properties) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return nil
}

func (p *Properties) Unset(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
	return nil
}

// Snapshot records the state of a set of ambient keys, including which of them were absent.
type Snapshot struct {
	values map[string]*string
}

// Save records the current state of keys in a.
func Save(a Ambient, keys ...string) Snapshot {
	s := Snapshot{values: make(map[string]*string, len(keys))}
	for _, k := range keys {
		if v, ok := a.Lookup(k); ok {
			v := v
			s.values[k] = &v
		} else {
			s.values[k] = nil
		}
	}
	return s
}

// Keys returns the recorded keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restore puts every recorded key back to its saved value. Keys that were absent are unset.
func (s Snapshot) Restore(a Ambient) error {
	for _, k := range s.Keys() {
		var err error
		if v := s.values[k]; v != nil {
			err = a.Set(k, *v)
		} else {
			err = a.Unset(k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Apply saves the keys of values, sets them and returns the snapshot to restore later.
func Apply(a Ambient, values map[string]string) (Snapshot, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	s := Save(a, keys...)
	for _, k := range s.Keys() {
		if err := a.Set(k, values[k]); err != nil {
			if rerr := s.Restore(a); rerr != nil {
				return s, errors.Wrapf(err, "restoring previous values also failed: %v", rerr)
			}
			return s, err
		}
	}
	return s, nil
}

// WithValues sets values on a for the duration of fn and restores the previous state afterwards,
// also when fn fails.
func WithValues(a Ambient, values map[string]string, fn func() error) (err error) {
	s, err := Apply(a, values)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := s.Restore(a); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
