package model

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// NewGroupConfig returns an enabled group that applies to everyone.
func NewGroupConfig(label string) *GroupConfig {
	return &GroupConfig{
		ID:             uuid.NewString(),
		Label:          label,
		EntityConfig:   EntityConfig{Enabled: true},
		MatchMasculine: true,
		MatchFeminine:  true,
	}
}

// Matches reports whether the group applies to id. Explicit members match
// regardless of gender and clan.
func (g *GroupConfig) Matches(id Identity) bool {
	for _, m := range g.Members {
		if m.Name == id.Name && m.World == id.World {
			return true
		}
	}
	if id.Feminine && !g.MatchFeminine {
		return false
	}
	if !id.Feminine && !g.MatchMasculine {
		return false
	}
	return len(g.Clans) == 0 || slices.Contains(g.Clans, id.Clan)
}

// SetGender updates the gender flags. Clearing both keeps the flag that
// was not just changed switched on.
func (g *GroupConfig) SetGender(masculine, feminine bool) {
	if !masculine && !feminine {
		if g.MatchMasculine {
			feminine = true
		} else {
			masculine = true
		}
	}
	g.MatchMasculine = masculine
	g.MatchFeminine = feminine
}

// ToggleClan adds or removes a clan from the filter.
func (g *GroupConfig) ToggleClan(clan uint16) {
	if i := slices.Index(g.Clans, clan); i >= 0 {
		g.Clans = slices.Delete(g.Clans, i, i+1)
		return
	}
	g.Clans = append(g.Clans, clan)
	slices.Sort(g.Clans)
}

// AddMember appends m unless it is already listed or has no name.
func (g *GroupConfig) AddMember(m Member) bool {
	if strings.TrimSpace(m.Name) == "" || slices.Contains(g.Members, m) {
		return false
	}
	g.Members = append(g.Members, m)
	return true
}

func (g *GroupConfig) RemoveMember(i int) bool {
	if i < 0 || i >= len(g.Members) {
		return false
	}
	g.Members = slices.Delete(g.Members, i, i+1)
	return true
}

// PruneMembers drops entries with blank names.
func (g *GroupConfig) PruneMembers() {
	g.Members = slices.DeleteFunc(g.Members, func(m Member) bool {
		return strings.TrimSpace(m.Name) == ""
	})
}

// Normalize repairs a loaded group.
func (g *GroupConfig) Normalize() {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if !g.MatchMasculine && !g.MatchFeminine {
		g.MatchMasculine, g.MatchFeminine = true, true
	}
	g.PruneMembers()
	g.EntityConfig.Normalize()
}

// Clone returns a deep copy that keeps the group id.
func (g *GroupConfig) Clone() *GroupConfig {
	out := *g
	out.EntityConfig = *g.EntityConfig.Clone()
	out.Clans = append([]uint16(nil), g.Clans...)
	out.Members = append([]Member(nil), g.Members...)
	return &out
}
