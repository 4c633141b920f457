package persist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xtding233/heelshift/internal/model"
)

// Validate checks semantic constraints of a Document.
func Validate(doc model.Document) error {
	var errs []string

	// characters, sorted for stable messages
	for _, world := range sortedWorlds(doc.Characters) {
		for _, name := range sortedNames(doc.Characters[world]) {
			where := fmt.Sprintf("characters[%d][%s]", world, name)
			if strings.TrimSpace(name) == "" {
				errs = append(errs, fmt.Sprintf("characters[%d]: name must not be empty", world))
			}
			if cfg := doc.Characters[world][name]; cfg != nil {
				errs = append(errs, validateEntity(where, cfg)...)
			}
		}
	}

	// groups
	ids := make(map[string]int)
	for i, g := range doc.Groups {
		if g == nil {
			continue
		}
		where := fmt.Sprintf("groups[%d]", i)
		if g.ID != "" {
			if prev, dup := ids[g.ID]; dup {
				errs = append(errs, fmt.Sprintf("%s.id duplicates groups[%d].id", where, prev))
			}
			ids[g.ID] = i
		}
		if !g.MatchMasculine && !g.MatchFeminine {
			errs = append(errs, where+": match_masculine or match_feminine must be true")
		}
		errs = append(errs, validateEntity(where, &g.EntityConfig)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEntity(where string, cfg *model.EntityConfig) []string {
	var errs []string
	for i, r := range cfg.Offsets {
		if r == nil {
			errs = append(errs, fmt.Sprintf("%s.offsets[%d] is empty", where, i))
			continue
		}
		if r.Slot != "" && !r.Slot.Valid() {
			errs = append(errs, fmt.Sprintf("%s.offsets[%d].slot must be one of: Top, Legs, Feet", where, i))
		}
		if r.PathMode && strings.TrimSpace(r.Path) == "" {
			errs = append(errs, fmt.Sprintf("%s.offsets[%d].path is required when path_mode is set", where, i))
		}
	}
	for i, e := range cfg.Emotes {
		if e == nil {
			errs = append(errs, fmt.Sprintf("%s.emotes[%d] is empty", where, i))
		}
	}
	return errs
}

// Warnings reports rule sets that break the one-enabled-rule-per-key
// invariant. They load fine; resolution picks the first rule.
func Warnings(doc model.Document) []string {
	var out []string
	for _, world := range sortedWorlds(doc.Characters) {
		for _, name := range sortedNames(doc.Characters[world]) {
			if cfg := doc.Characters[world][name]; cfg != nil {
				out = append(out, entityWarnings(fmt.Sprintf("%s@%d", name, world), cfg)...)
			}
		}
	}
	for _, g := range doc.Groups {
		if g != nil {
			out = append(out, entityWarnings("group "+g.Label, &g.EntityConfig)...)
		}
	}
	return out
}

func entityWarnings(where string, cfg *model.EntityConfig) []string {
	var out []string
	for i, a := range cfg.Offsets {
		if a == nil || !a.Enabled {
			continue
		}
		for j := i + 1; j < len(cfg.Offsets); j++ {
			b := cfg.Offsets[j]
			if b != nil && b.Enabled && a.ModelKey.Equal(b.ModelKey) {
				out = append(out, fmt.Sprintf("%s: offsets %d and %d are both enabled for %s", where, i, j, a.ModelKey))
			}
		}
	}
	for i, a := range cfg.Emotes {
		if a == nil || !a.Enabled {
			continue
		}
		for j := i + 1; j < len(cfg.Emotes); j++ {
			b := cfg.Emotes[j]
			if b != nil && b.Enabled && a.Overlaps(b) {
				out = append(out, fmt.Sprintf("%s: emotes %d and %d are both enabled for overlapping emotes", where, i, j))
			}
		}
	}
	return out
}

func sortedWorlds(m map[model.WorldID]map[string]*model.EntityConfig) []model.WorldID {
	out := make([]model.WorldID, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedNames(m map[string]*model.EntityConfig) []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
