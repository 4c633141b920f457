package model

import (
	"errors"
	"math"
)

var (
	ErrRuleNotOwned = errors.New("rule does not belong to config")
	ErrRuleLocked   = errors.New("rule is locked")
	ErrIndex        = errors.New("rule index out of range")
)

// SourceKind tells the resolver which variant a config came from.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceDirect
	SourceGroup
	SourceExternal
)

func (k SourceKind) String() string {
	switch k {
	case SourceDirect:
		return "direct"
	case SourceGroup:
		return "group"
	case SourceExternal:
		return "external"
	}
	return "none"
}

// Source is implemented by every config variant.
type Source interface {
	Kind() SourceKind
	Base() *EntityConfig
}

func (c *EntityConfig) Kind() SourceKind    { return SourceDirect }
func (c *EntityConfig) Base() *EntityConfig { return c }

func (g *GroupConfig) Kind() SourceKind    { return SourceGroup }
func (g *GroupConfig) Base() *EntityConfig { return &g.EntityConfig }

func (e *ExternalConfig) Kind() SourceKind { return SourceExternal }

// Base returns the assigned rules. Callers must not modify them.
func (e *ExternalConfig) Base() *EntityConfig { return &e.config }

// NewEntityConfig returns an enabled config with no rules.
func NewEntityConfig() *EntityConfig {
	return &EntityConfig{Enabled: true}
}

// Clone returns a deep copy.
func (c *EntityConfig) Clone() *EntityConfig {
	out := &EntityConfig{
		Enabled:       c.Enabled,
		DefaultOffset: c.DefaultOffset,
	}
	for _, r := range c.Offsets {
		cp := *r
		out.Offsets = append(out.Offsets, &cp)
	}
	for _, r := range c.Emotes {
		cp := *r
		cp.Linked = append([]EmoteID(nil), r.Linked...)
		out.Emotes = append(out.Emotes, &cp)
	}
	return out
}

func (c *EntityConfig) offsetIndex(r *OffsetRule) int {
	for i, o := range c.Offsets {
		if o == r {
			return i
		}
	}
	return -1
}

func (c *EntityConfig) emoteIndex(r *EmoteRule) int {
	for i, e := range c.Emotes {
		if e == r {
			return i
		}
	}
	return -1
}

// AddOffsetRule appends a rule for key. It starts enabled unless another
// enabled rule already uses the same key.
func (c *EntityConfig) AddOffsetRule(key ModelKey) *OffsetRule {
	r := &OffsetRule{ModelKey: key, RevertSlot: key.Slot}
	r.Enabled = true
	for _, o := range c.Offsets {
		if o.Enabled && o.ModelKey.Equal(key) {
			r.Enabled = false
			break
		}
	}
	c.Offsets = append(c.Offsets, r)
	return r
}

// AddEmoteRule appends a rule for emote, enabled unless an enabled rule
// already covers it.
func (c *EntityConfig) AddEmoteRule(emote EmoteID) *EmoteRule {
	r := &EmoteRule{Emote: emote, Enabled: true}
	for _, e := range c.Emotes {
		if e.Enabled && e.Matches(emote) {
			r.Enabled = false
			break
		}
	}
	c.Emotes = append(c.Emotes, r)
	return r
}

// RemoveOffsetRule deletes the rule at i. Locked rules are kept.
func (c *EntityConfig) RemoveOffsetRule(i int) error {
	if i < 0 || i >= len(c.Offsets) {
		return ErrIndex
	}
	if c.Offsets[i].Locked {
		return ErrRuleLocked
	}
	c.Offsets = append(c.Offsets[:i], c.Offsets[i+1:]...)
	return nil
}

// RemoveEmoteRule deletes the rule at i. Locked rules are kept.
func (c *EntityConfig) RemoveEmoteRule(i int) error {
	if i < 0 || i >= len(c.Emotes) {
		return ErrIndex
	}
	if c.Emotes[i].Locked {
		return ErrRuleLocked
	}
	c.Emotes = append(c.Emotes[:i], c.Emotes[i+1:]...)
	return nil
}

// AllOffsetsDisabled is true when there are offset rules and none is enabled.
func (c *EntityConfig) AllOffsetsDisabled() bool {
	if len(c.Offsets) == 0 {
		return false
	}
	for _, r := range c.Offsets {
		if r.Enabled {
			return false
		}
	}
	return true
}

// Normalize repairs loaded data: linked sets lose the primary and
// duplicates, rotations wrap into [0, 2π), missing slots default to Feet.
// Duplicate enabled keys are left alone.
func (c *EntityConfig) Normalize() {
	for _, r := range c.Offsets {
		if !r.Slot.Valid() {
			r.Slot = SlotFeet
		}
		if !r.RevertSlot.Valid() {
			r.RevertSlot = r.Slot
		}
	}
	for _, e := range c.Emotes {
		e.Rotation = NormalizeRotation(e.Rotation)
		seen := map[EmoteID]bool{e.Emote: true}
		linked := e.Linked[:0]
		for _, id := range e.Linked {
			if seen[id] {
				continue
			}
			seen[id] = true
			linked = append(linked, id)
		}
		if len(linked) == 0 {
			linked = nil
		}
		e.Linked = linked
	}
}

// NormalizeRotation wraps radians into [0, 2π).
func NormalizeRotation(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	r = math.Mod(r, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	if r >= 2*math.Pi {
		r = 0
	}
	return r
}
