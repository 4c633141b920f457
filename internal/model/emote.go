package model

import (
	"errors"
	"math"
	"slices"
)

var (
	ErrEmotePrimary = errors.New("emote is the rule's primary emote")
	ErrEmoteLinked  = errors.New("emote is already linked")
	ErrEmoteMissing = errors.New("emote is not linked")
)

// Matches reports whether id is the primary or one of the linked emotes.
func (r *EmoteRule) Matches(id EmoteID) bool {
	return r.Emote == id || slices.Contains(r.Linked, id)
}

// Class returns the equivalence class of the rule: primary first.
func (r *EmoteRule) Class() []EmoteID {
	return append([]EmoteID{r.Emote}, r.Linked...)
}

// Overlaps reports whether two rules share any emote.
func (r *EmoteRule) Overlaps(o *EmoteRule) bool {
	for _, id := range o.Class() {
		if r.Matches(id) {
			return true
		}
	}
	return false
}

// Link adds id to the linked set.
func (r *EmoteRule) Link(id EmoteID) error {
	if id == r.Emote {
		return ErrEmotePrimary
	}
	if slices.Contains(r.Linked, id) {
		return ErrEmoteLinked
	}
	r.Linked = append(r.Linked, id)
	return nil
}

// Unlink removes id from the linked set.
func (r *EmoteRule) Unlink(id EmoteID) error {
	i := slices.Index(r.Linked, id)
	if i < 0 {
		return ErrEmoteMissing
	}
	r.Linked = slices.Delete(r.Linked, i, i+1)
	return nil
}

func (r *EmoteRule) RotationDegrees() float64 {
	return r.Rotation * 180 / math.Pi
}

func (r *EmoteRule) SetRotationDegrees(deg float64) {
	r.Rotation = NormalizeRotation(deg * math.Pi / 180)
}

// SplitLinked moves linked emote id out of the rule at index i into a new
// rule inserted right after it, carrying the same position and state.
func (c *EntityConfig) SplitLinked(i int, id EmoteID) (*EmoteRule, error) {
	if i < 0 || i >= len(c.Emotes) {
		return nil, ErrIndex
	}
	src := c.Emotes[i]
	if err := src.Unlink(id); err != nil {
		return nil, err
	}
	r := &EmoteRule{
		Enabled:  src.Enabled,
		Emote:    id,
		Offset:   src.Offset,
		Rotation: src.Rotation,
	}
	c.Emotes = slices.Insert(c.Emotes, i+1, r)
	return r, nil
}
