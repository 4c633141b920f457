package store

import (
	"sort"

	"github.com/xtding233/heelshift/internal/model"
)

// Assign installs an externally supplied config for a live entity,
// replacing any previous assignment.
func (s *Store) Assign(entityID uint32, cfg *model.ExternalConfig) {
	if cfg == nil {
		s.Revoke(entityID)
		return
	}
	s.external.Store(entityID, cfg)
}

// Revoke drops the assignment for entityID, e.g. on despawn.
func (s *Store) Revoke(entityID uint32) bool {
	_, ok := s.external.LoadAndDelete(entityID)
	return ok
}

// External returns the current assignment. The entry may disappear right
// after this call; the returned config stays valid.
func (s *Store) External(entityID uint32) (*model.ExternalConfig, bool) {
	v, ok := s.external.Load(entityID)
	if !ok {
		return nil, false
	}
	cfg, ok := v.(*model.ExternalConfig)
	return cfg, ok && cfg != nil
}

// ExternalIDs lists entities with an assignment, sorted.
func (s *Store) ExternalIDs() []uint32 {
	var ids []uint32
	s.external.Range(func(k, _ any) bool {
		ids = append(ids, k.(uint32))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
