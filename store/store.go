// Package store holds the Store, a concurrency-safe registry of loaded
// Modules keyed by an opaque caller-supplied identity (commonly a module's
// debug id, or a (name, os, arch) tuple).
package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/Mu-L/breakpad/internal/symlog"
	"github.com/Mu-L/breakpad/module"
)

// Store caches loaded Modules in a thread-safe way. Reads take the read
// lock only; Load and Unload take the write lock. Once installed, a
// *module.Module is never mutated, so a reader holding a pointer obtained
// from Find may keep using it even after a later Unload removes it from
// the map.
type Store struct {
	mu      sync.RWMutex
	modules map[any]*module.Module
}

// New returns an empty Store.
func New() *Store {
	return &Store{modules: make(map[any]*module.Module)}
}

// Load reads and parses the symbol file at path and installs the result
// under key, replacing any previous entry. A read failure installs
// nothing and is returned to the caller; a parse failure (malformed
// records) still installs a Module, one with IsCorrupt()==true, since
// partial symbol information is more useful to a crash processor than
// none.
func (s *Store) Load(key any, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	mod, err := module.NewBuilder().Build(f)
	if err != nil {
		symlog.Errorf("store: load %s: %v", path, err)
		return fmt.Errorf("store: load %s: %w", path, err)
	}
	if mod.IsCorrupt() {
		symlog.Warnf("store: %s loaded with diagnostics: %v", path, mod.Diagnostics())
	}

	s.mu.Lock()
	s.modules[key] = mod
	s.mu.Unlock()
	return nil
}

// Has reports whether key has a loaded Module, corrupt or not.
func (s *Store) Has(key any) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modules[key]
	return ok
}

// IsCorrupt reports whether key's Module collected any parse diagnostics.
// It returns false for a key with no loaded Module at all.
func (s *Store) IsCorrupt(key any) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mod, ok := s.modules[key]
	return ok && mod.IsCorrupt()
}

// Unload drops key's Module from the Store. It is a no-op if key is not
// loaded.
func (s *Store) Unload(key any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, key)
}

// Find returns key's Module, or ok=false if none is loaded.
func (s *Store) Find(key any) (*module.Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mod, ok := s.modules[key]
	return mod, ok
}
