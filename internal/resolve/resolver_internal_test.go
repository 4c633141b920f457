package resolve

import (
	"testing"

	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/store"
)

func countWarned(r *Resolver) int {
	n := 0
	r.warned.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestWarnedPairsDroppedOnReplace(t *testing.T) {
	key := model.ModelKey{Slot: model.SlotFeet, ModelID: 42}
	doc := model.DefaultDocument()
	doc.Characters[73] = map[string]*model.EntityConfig{
		"Aria": {Enabled: true, Offsets: []*model.OffsetRule{
			{Enabled: true, Offset: 1, ModelKey: key},
			{Enabled: true, Offset: 2, ModelKey: key},
		}},
	}
	s := store.New(doc)
	r := New(s, nil)
	req := Request{
		Identity:  model.Identity{Name: "Aria", World: 73},
		Equipment: model.Equipment{Feet: &model.EquippedModel{ModelID: 42, Path: "feet.mdl"}},
	}

	for i := 0; i < 3; i++ {
		r.Resolve(req)
		if n := countWarned(r); n != 1 {
			t.Fatalf("round %d: want 1 warned pair, got %d", i, n)
		}
		// each reload clones fresh rule pointers
		s.Replace(doc)
	}
	r.Resolve(req)
	if n := countWarned(r); n != 1 {
		t.Fatalf("stale pairs kept after replace: %d", n)
	}
}
