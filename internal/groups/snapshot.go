package groups

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Store holds the current resolved catalog behind an atomically swapped
// pointer: reads in the request hot path take no locks, and a config
// reload replaces the whole snapshot at once.
type Store struct {
	current atomic.Pointer[Resolved]
	// fallback groups applied when external mapping yields nothing.
	anonymous []string
}

// NewStore resolves the catalog and returns a store holding the snapshot.
func NewStore(catalog *Catalog, anonymousGroups []string) (*Store, error) {
	resolved, err := catalog.Resolve()
	if err != nil {
		return nil, err
	}

	s := &Store{anonymous: anonymousGroups}
	s.current.Store(resolved)

	return s, nil
}

// Current returns the active resolved snapshot.
func (s *Store) Current() *Resolved {
	return s.current.Load()
}

// Reload resolves a new catalog and swaps it in. A resolution failure
// (including CycleError) keeps the previous snapshot active.
func (s *Store) Reload(catalog *Catalog) error {
	resolved, err := catalog.Resolve()
	if err != nil {
		log.Error().Err(err).Msg("group catalog reload rejected, keeping previous snapshot")
		return err
	}

	s.current.Store(resolved)

	return nil
}

// AnonymousGroups returns the configured mapping fallback.
func (s *Store) AnonymousGroups() []string {
	return s.anonymous
}

// MapExternal maps raw external labels through the active snapshot.
func (s *Store) MapExternal(labels []string) []string {
	return s.Current().MapExternal(labels, s.anonymous)
}

// ResolvePermissions computes the live permission union for a set of
// group ids against the active snapshot.
func (s *Store) ResolvePermissions(ids []string) Permissions {
	return s.Current().ResolvePermissions(ids)
}
