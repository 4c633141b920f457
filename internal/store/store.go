package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xtding233/heelshift/internal/model"
)

var (
	ErrKeyConflict = errors.New("character already has a config")
	ErrNotFound    = errors.New("config not found")
	ErrInvalidKey  = errors.New("character name must not be empty")
)

// Key addresses a direct character config.
type Key struct {
	Name  string        `json:"name"`
	World model.WorldID `json:"world"`
}

func (k Key) String() string { return fmt.Sprintf("%s@%d", k.Name, k.World) }

// Store is the process-wide config store. Rule data is guarded by one
// RWMutex: resolution passes read under Read, editors mutate under Update.
// External assignments live in their own concurrent map and never take the
// lock.
type Store struct {
	mu              sync.RWMutex
	enabled         bool
	useModelOffsets bool
	preferModelPath bool
	direct          map[model.WorldID]map[string]*model.EntityConfig
	groups          []*model.GroupConfig
	generation      uint64

	external sync.Map // uint32 -> *model.ExternalConfig
}

// New creates a store from doc. The document is deep-copied.
func New(doc model.Document) *Store {
	s := &Store{}
	s.Replace(doc)
	return s
}

// Replace swaps in a new document, e.g. after a reload. Every call starts a
// new generation.
func (s *Store) Replace(doc model.Document) {
	direct := make(map[model.WorldID]map[string]*model.EntityConfig)
	for world, chars := range doc.Characters {
		for name, cfg := range chars {
			if cfg == nil {
				continue
			}
			if direct[world] == nil {
				direct[world] = make(map[string]*model.EntityConfig)
			}
			direct[world][name] = cfg.Clone()
		}
	}
	groups := make([]*model.GroupConfig, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		if g != nil {
			groups = append(groups, g.Clone())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = doc.Enabled
	s.useModelOffsets = doc.UseModelOffsets
	s.preferModelPath = doc.PreferModelPath
	s.direct = direct
	s.groups = groups
	s.generation++
}

// Document returns a deep copy of the persisted state.
func (s *Store) Document() model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := model.DefaultDocument()
	doc.Enabled = s.enabled
	doc.UseModelOffsets = s.useModelOffsets
	doc.PreferModelPath = s.preferModelPath
	for world, chars := range s.direct {
		doc.Characters[world] = make(map[string]*model.EntityConfig, len(chars))
		for name, cfg := range chars {
			doc.Characters[world][name] = cfg.Clone()
		}
	}
	for _, g := range s.groups {
		doc.Groups = append(doc.Groups, g.Clone())
	}
	return doc
}

// Read runs fn under the read lock. fn must not retain the view.
func (s *Store) Read(fn func(v View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View{s: s})
}

// Update runs fn under the write lock.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{View: View{s: s}})
}

// SetEnabled toggles resolution globally.
func (s *Store) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
}

// AddDirect creates an empty config for key. It returns false when the key
// is already configured or invalid.
func (s *Store) AddDirect(key Key) bool {
	var ok bool
	_ = s.Update(func(tx *Tx) error {
		ok = tx.addDirect(key, model.NewEntityConfig()) == nil
		return nil
	})
	return ok
}

// RemoveDirect deletes the config for key. Missing keys are ignored.
func (s *Store) RemoveDirect(key Key) bool {
	var ok bool
	_ = s.Update(func(tx *Tx) error {
		ok = tx.removeDirect(key) != nil
		return nil
	})
	return ok
}

// Rename moves the config at from to to. The destination must be free.
func (s *Store) Rename(from, to Key) error {
	return s.Update(func(tx *Tx) error {
		cfg, ok := tx.Direct(from)
		if !ok {
			return ErrNotFound
		}
		if from == to {
			return nil
		}
		if err := tx.addDirect(to, cfg); err != nil {
			return err
		}
		tx.removeDirect(from)
		return nil
	})
}

// CopyDirect stores a deep copy of from under to.
func (s *Store) CopyDirect(from, to Key) error {
	return s.Update(func(tx *Tx) error {
		cfg, ok := tx.Direct(from)
		if !ok {
			return ErrNotFound
		}
		return tx.addDirect(to, cfg.Clone())
	})
}

// GroupFromDirect creates a disabled group holding a copy of key's rules and
// appends it to the priority list.
func (s *Store) GroupFromDirect(key Key) (*model.GroupConfig, error) {
	var g *model.GroupConfig
	err := s.Update(func(tx *Tx) error {
		cfg, ok := tx.Direct(key)
		if !ok {
			return ErrNotFound
		}
		g = model.NewGroupConfig(fmt.Sprintf("Group from [%s]", key))
		g.EntityConfig = *cfg.Clone()
		g.Enabled = false
		tx.s.groups = append(tx.s.groups, g)
		return nil
	})
	return g, err
}

// AddGroup appends g at the lowest priority.
func (s *Store) AddGroup(g *model.GroupConfig) {
	_ = s.Update(func(tx *Tx) error {
		tx.s.groups = append(tx.s.groups, g)
		return nil
	})
}

// RemoveGroup deletes the group with id.
func (s *Store) RemoveGroup(id string) bool {
	var ok bool
	_ = s.Update(func(tx *Tx) error {
		i := tx.groupIndex(id)
		if i < 0 {
			return nil
		}
		tx.s.groups = append(tx.s.groups[:i], tx.s.groups[i+1:]...)
		ok = true
		return nil
	})
	return ok
}

// MoveGroup shifts a group one position towards higher (up) or lower
// priority. Moving past either end is a no-op: found reports whether the
// group exists, moved whether its position changed.
func (s *Store) MoveGroup(id string, up bool) (found, moved bool) {
	_ = s.Update(func(tx *Tx) error {
		i := tx.groupIndex(id)
		if i < 0 {
			return nil
		}
		found = true
		to := i + 1
		if up {
			to = i - 1
		}
		if to < 0 || to >= len(tx.s.groups) {
			return nil
		}
		tx.s.groups = model.Move(tx.s.groups, i, to)
		moved = true
		return nil
	})
	return found, moved
}

func validKey(k Key) bool {
	return strings.TrimSpace(k.Name) != ""
}
