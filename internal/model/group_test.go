package model_test

import (
	"testing"

	"github.com/xtding233/heelshift/internal/model"
)

func TestGroupMatchesGenderAndClan(t *testing.T) {
	g := model.NewGroupConfig("tall")
	g.SetGender(false, true)
	g.ToggleClan(3)

	cases := []struct {
		name string
		id   model.Identity
		want bool
	}{
		{"feminine in clan", model.Identity{Name: "A", World: 1, Feminine: true, Clan: 3}, true},
		{"feminine other clan", model.Identity{Name: "A", World: 1, Feminine: true, Clan: 4}, false},
		{"masculine in clan", model.Identity{Name: "A", World: 1, Feminine: false, Clan: 3}, false},
	}
	for _, c := range cases {
		if got := g.Matches(c.id); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestGroupEmptyClansMatchAny(t *testing.T) {
	g := model.NewGroupConfig("all")
	for clan := 0; clan < 20; clan++ {
		if !g.Matches(model.Identity{Name: "x", World: 2, Clan: uint16(clan)}) {
			t.Fatalf("clan %d should match an unfiltered group", clan)
		}
	}
}

func TestGroupMemberOverridesFilters(t *testing.T) {
	g := model.NewGroupConfig("exceptions")
	g.SetGender(true, false)
	g.ToggleClan(1)
	g.AddMember(model.Member{Name: "Aria", World: 73})

	id := model.Identity{Name: "Aria", World: 73, Feminine: true, Clan: 9}
	if !g.Matches(id) {
		t.Fatalf("explicit member must match regardless of gender and clan")
	}
	id.World = 74
	if g.Matches(id) {
		t.Fatalf("same name on another world is not a member")
	}
}

func TestGroupNonPlayerMember(t *testing.T) {
	g := model.NewGroupConfig("npc")
	g.ToggleClan(200)
	g.AddMember(model.Member{Name: "Guard", World: model.NonPlayer})
	if !g.Matches(model.Identity{Name: "Guard", World: model.NonPlayer}) {
		t.Fatalf("non-player member should match")
	}
}

func TestSetGenderKeepsOneFlag(t *testing.T) {
	g := model.NewGroupConfig("g")
	g.SetGender(true, false)
	g.SetGender(false, false)
	if !g.MatchMasculine && !g.MatchFeminine {
		t.Fatalf("at least one gender flag must stay on")
	}
	if g.MatchMasculine || !g.MatchFeminine {
		t.Fatalf("clearing masculine should fall back to feminine; got m=%v f=%v", g.MatchMasculine, g.MatchFeminine)
	}
}

func TestToggleClanAndMembers(t *testing.T) {
	g := model.NewGroupConfig("g")
	g.ToggleClan(5)
	g.ToggleClan(2)
	if len(g.Clans) != 2 || g.Clans[0] != 2 {
		t.Fatalf("clans should be sorted, got %v", g.Clans)
	}
	g.ToggleClan(5)
	if len(g.Clans) != 1 {
		t.Fatalf("toggle should remove, got %v", g.Clans)
	}

	if !g.AddMember(model.Member{Name: "A", World: 1}) {
		t.Fatalf("first add should succeed")
	}
	if g.AddMember(model.Member{Name: "A", World: 1}) {
		t.Fatalf("duplicate member accepted")
	}
	g.Members = append(g.Members, model.Member{Name: "  "})
	g.PruneMembers()
	if len(g.Members) != 1 {
		t.Fatalf("blank member not pruned: %v", g.Members)
	}
}

func TestGroupNormalizeRepairsGender(t *testing.T) {
	g := &model.GroupConfig{Label: "loaded"}
	g.Normalize()
	if g.ID == "" || !g.MatchMasculine || !g.MatchFeminine {
		t.Fatalf("normalize should assign id and both genders, got %+v", g)
	}
}
