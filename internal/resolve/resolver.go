package resolve

import (
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/xtding233/heelshift/internal/attr"
	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/store"
)

// Kind is the shape of a resolved offset.
type Kind int

const (
	None Kind = iota
	Scalar
	Vector
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	}
	return "none"
}

// Request is one live entity's snapshot for a tick.
type Request struct {
	EntityID  uint32          `json:"entity_id"`
	Identity  model.Identity  `json:"identity"`
	Equipment model.Equipment `json:"equipment"`
	Emote     *model.EmoteID  `json:"emote,omitempty"`
}

// Result is the active offset. Scalar results without OffsetRule come from
// an offset embedded in the equipped model (FromModel) or from the config's
// default offset.
//
// Label is copied from the matched rule while the store is locked. The rule
// pointers identify the rule but must not be dereferenced once Resolve has
// returned.
type Result struct {
	Kind     Kind
	Value    float64
	Offset   model.Vec3
	Rotation float64

	OffsetRule *model.OffsetRule
	EmoteRule  *model.EmoteRule
	Label      string
	Source     model.SourceKind
	FromModel  bool
}

// Resolver selects the active offset for live entities.
type Resolver struct {
	store *store.Store
	log   *log.Logger

	warned    sync.Map // [2]any rule pair -> struct{}
	warnedGen atomic.Uint64
}

func New(s *store.Store, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{store: s, log: logger}
}

// Resolve computes the offset for one entity. It never fails: no config
// yields None (or an embedded model offset), no matching rule yields the
// default offset.
func (r *Resolver) Resolve(req Request) Result {
	var res Result
	r.store.Read(func(v store.View) {
		res = r.resolveLocked(v, req)
	})
	return res
}

// ResolveAll resolves a tick batch under a single read lock.
func (r *Resolver) ResolveAll(reqs []Request) []Result {
	out := make([]Result, len(reqs))
	r.store.Read(func(v store.View) {
		for i, req := range reqs {
			out[i] = r.resolveLocked(v, req)
		}
	})
	return out
}

func (r *Resolver) resolveLocked(v store.View, req Request) Result {
	r.syncGeneration(v.Generation())
	if !v.Enabled() {
		return Result{}
	}
	modelOffsets := v.UseModelOffsets()
	// external assignments shadow everything, including group precedence
	if ext, ok := r.store.External(req.EntityID); ok {
		return r.match(ext, req, modelOffsets)
	}
	src, ok := v.Select(req.Identity)
	if !ok {
		if modelOffsets {
			if off, ok := embeddedOffset(req.Equipment); ok {
				return Result{Kind: Scalar, Value: off, FromModel: true}
			}
		}
		return Result{}
	}
	return r.match(src, req, modelOffsets)
}

func (r *Resolver) match(src model.Source, req Request, modelOffsets bool) Result {
	cfg := src.Base()
	if !cfg.Enabled {
		return Result{}
	}
	if req.Emote != nil {
		if e := r.matchEmote(cfg, *req.Emote); e != nil {
			return Result{
				Kind:      Vector,
				Offset:    e.Offset,
				Rotation:  e.Rotation,
				EmoteRule: e,
				Label:     e.Label,
				Source:    src.Kind(),
			}
		}
	}
	for _, slot := range model.SlotPriority {
		m, ok := req.Equipment.Slot(slot)
		if !ok {
			continue
		}
		if o := r.matchModel(cfg, slot, m); o != nil {
			return Result{Kind: Scalar, Value: o.Offset, OffsetRule: o, Label: o.Label, Source: src.Kind()}
		}
	}
	if modelOffsets {
		if off, ok := embeddedOffset(req.Equipment); ok {
			return Result{Kind: Scalar, Value: off, Source: src.Kind(), FromModel: true}
		}
	}
	return Result{Kind: Scalar, Value: cfg.DefaultOffset, Source: src.Kind()}
}

// embeddedOffset reads the first offset attribute found on the equipped
// models, in slot priority order.
func embeddedOffset(eq model.Equipment) (float64, bool) {
	for _, slot := range model.SlotPriority {
		m, ok := eq.Slot(slot)
		if !ok {
			continue
		}
		if v, _, ok := attr.Find(m.Attributes); ok {
			return v, true
		}
	}
	return 0, false
}

// matchEmote returns the first enabled rule covering id. More than one
// enabled match means the config bypassed the enable guard; the first one
// in list order wins.
func (r *Resolver) matchEmote(cfg *model.EntityConfig, id model.EmoteID) *model.EmoteRule {
	var found *model.EmoteRule
	for _, e := range cfg.Emotes {
		if !e.Enabled || !e.Matches(id) {
			continue
		}
		if found == nil {
			found = e
			continue
		}
		r.warn(found, e, "emote %s is claimed by more than one enabled rule (%q, %q); using the first", id, found.Label, e.Label)
		break
	}
	return found
}

func (r *Resolver) matchModel(cfg *model.EntityConfig, slot model.EquipSlot, m model.EquippedModel) *model.OffsetRule {
	var found *model.OffsetRule
	for _, o := range cfg.Offsets {
		if !o.Enabled || o.Slot != slot || !o.MatchesModel(m) {
			continue
		}
		if found == nil {
			found = o
			continue
		}
		r.warn(found, o, "model %s is claimed by more than one enabled rule (%q, %q); using the first", o.ModelKey, found.Label, o.Label)
		break
	}
	return found
}

// syncGeneration forgets warned pairs once the store has replaced its
// document, so pointers to dropped rules are released.
func (r *Resolver) syncGeneration(gen uint64) {
	old := r.warnedGen.Load()
	if old != gen && r.warnedGen.CompareAndSwap(old, gen) {
		r.warned.Clear()
	}
}

// warn logs a consistency problem once per rule pair.
func (r *Resolver) warn(a, b any, format string, args ...any) {
	if _, seen := r.warned.LoadOrStore([2]any{a, b}, struct{}{}); seen {
		return
	}
	r.log.Printf("consistency: "+format, args...)
}
