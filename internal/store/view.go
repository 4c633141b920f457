package store

import "github.com/xtding233/heelshift/internal/model"

// View is a read-only window on the store, valid inside Read or Update.
type View struct {
	s *Store
}

func (v View) Enabled() bool         { return v.s.enabled }
func (v View) UseModelOffsets() bool { return v.s.useModelOffsets }
func (v View) PreferModelPath() bool { return v.s.preferModelPath }

// Generation counts document replacements. Rule pointers from an older
// generation are never seen again.
func (v View) Generation() uint64 { return v.s.generation }

// Direct returns the config bound to key.
func (v View) Direct(key Key) (*model.EntityConfig, bool) {
	cfg, ok := v.s.direct[key.World][key.Name]
	return cfg, ok
}

// Groups returns the groups in priority order. The slice must not be modified.
func (v View) Groups() []*model.GroupConfig {
	return v.s.groups
}

// Group finds a group by id.
func (v View) Group(id string) (*model.GroupConfig, bool) {
	if i := v.groupIndex(id); i >= 0 {
		return v.s.groups[i], true
	}
	return nil, false
}

// Keys lists every configured character.
func (v View) Keys() []Key {
	var out []Key
	for world, chars := range v.s.direct {
		for name := range chars {
			out = append(out, Key{Name: name, World: world})
		}
	}
	return out
}

// Select picks the config that applies to id: its own direct config first,
// then the first matching group in priority order.
func (v View) Select(id model.Identity) (model.Source, bool) {
	if cfg, ok := v.Direct(Key{Name: id.Name, World: id.World}); ok {
		return cfg, true
	}
	for _, g := range v.s.groups {
		if g.Matches(id) {
			return g, true
		}
	}
	return nil, false
}

func (v View) groupIndex(id string) int {
	for i, g := range v.s.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Tx is a writable view handed out by Update.
type Tx struct {
	View
}

func (tx *Tx) addDirect(key Key, cfg *model.EntityConfig) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if _, ok := tx.Direct(key); ok {
		return ErrKeyConflict
	}
	chars := tx.s.direct[key.World]
	if chars == nil {
		chars = make(map[string]*model.EntityConfig)
		tx.s.direct[key.World] = chars
	}
	chars[key.Name] = cfg
	return nil
}

func (tx *Tx) removeDirect(key Key) *model.EntityConfig {
	chars := tx.s.direct[key.World]
	cfg, ok := chars[key.Name]
	if !ok {
		return nil
	}
	delete(chars, key.Name)
	if len(chars) == 0 {
		delete(tx.s.direct, key.World)
	}
	return cfg
}

// Global options.
func (tx *Tx) SetEnabled(on bool)         { tx.s.enabled = on }
func (tx *Tx) SetUseModelOffsets(on bool) { tx.s.useModelOffsets = on }
func (tx *Tx) SetPreferModelPath(on bool) { tx.s.preferModelPath = on }
