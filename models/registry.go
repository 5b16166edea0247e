package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

var (
	// ErrModelNotFound is returned when no model is registered under an alias.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelDisabled is returned when the resolved model is disabled.
	ErrModelDisabled = errors.New("model disabled")
)

// Registry is the model router: it maps logical aliases to provider-side
// models. Reads always see the current state; callers must not cache a
// resolved config across a conversation's lifetime.
type Registry struct {
	mu    sync.RWMutex
	index map[string]int
	list  []ModelConfig
}

// NewRegistry creates a registry seeded with the given models, in order.
// Later entries with a duplicate alias replace earlier ones.
func NewRegistry(seed []ModelConfig) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, m := range seed {
		r.Register(m)
	}
	return r
}

// Register adds a model, or replaces the model registered under the same
// alias.
func (r *Registry) Register(m ModelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.index[m.Alias]; ok {
		r.list[i] = m
		return
	}
	r.index[m.Alias] = len(r.list)
	r.list = append(r.list, m)
}

// Resolve returns the model registered under alias, or ErrModelNotFound.
// Callers are expected to check Enabled themselves; switching and routing
// have different error shapes for disabled models.
func (r *Registry) Resolve(alias string) (*ModelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, alias)
	}
	m := r.list[i]
	return &m, nil
}

// Match looks a model up by any sensible identifier, in priority order:
// exact alias, exact provider-side model id, then a case- and
// punctuation-insensitive match on alias or display name. Returns nil when
// nothing matches.
func (r *Registry) Match(name string) *ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i, ok := r.index[name]; ok {
		m := r.list[i]
		return &m
	}
	for _, m := range r.list {
		if m.ModelID == name {
			m := m
			return &m
		}
	}
	want := normalizeModelName(name)
	if want == "" {
		return nil
	}
	for _, m := range r.list {
		if normalizeModelName(m.Alias) == want || normalizeModelName(m.DisplayName) == want {
			m := m
			return &m
		}
	}
	return nil
}

// All returns every registered model in registration order.
func (r *Registry) All() []ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelConfig, len(r.list))
	copy(out, r.list)
	return out
}

// Aliases returns every registered alias in registration order.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.list))
	for i, m := range r.list {
		out[i] = m.Alias
	}
	return out
}

// SetEnabled flips a model's enabled flag.
func (r *Registry) SetEnabled(alias string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[alias]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, alias)
	}
	r.list[i].Enabled = enabled
	return nil
}

// normalizeModelName lowercases and strips everything that is not a letter
// or digit, so "Claude-3.5_Haiku" and "claude 3 5 haiku" compare equal.
func normalizeModelName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
