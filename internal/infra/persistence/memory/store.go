// Package memory provides a map-backed strategy store for tests and
// storage-free deployments.
package memory

import (
	"context"
	"sync"

	"github.com/coachpo/folio/internal/domain/strategystore"
)

// Store is an in-memory strategystore.Store.
type Store struct {
	mu        sync.RWMutex
	settings  map[string]strategystore.Setting
	variables map[string]map[string]any
}

// NewStore allocates an empty store.
func NewStore() *Store {
	return &Store{
		settings:  make(map[string]strategystore.Setting),
		variables: make(map[string]map[string]any),
	}
}

func (s *Store) SaveSetting(ctx context.Context, name string, setting strategystore.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[name] = setting
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.settings, name)
	delete(s.variables, name)
	return nil
}

func (s *Store) LoadSettings(ctx context.Context) (map[string]strategystore.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]strategystore.Setting, len(s.settings))
	for name, setting := range s.settings {
		out[name] = setting
	}
	return out, nil
}

func (s *Store) SaveVariables(ctx context.Context, name string, variables map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]any, len(variables))
	for k, v := range variables {
		copied[k] = v
	}
	s.variables[name] = copied
	return nil
}

func (s *Store) LoadVariables(ctx context.Context, name string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, ok := s.variables[name]
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out, nil
}
