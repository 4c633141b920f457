// types.go
package model

import (
	"fmt"

	"golang.org/x/text/cases"
)

// EquipSlot names the equipment slot a model is drawn in.
type EquipSlot string

const (
	SlotTop  EquipSlot = "Top"
	SlotLegs EquipSlot = "Legs"
	SlotFeet EquipSlot = "Feet"
)

// SlotPriority is the order slots are checked during resolution.
// Outer garments come first.
var SlotPriority = []EquipSlot{SlotTop, SlotLegs, SlotFeet}

func (s EquipSlot) Valid() bool {
	switch s {
	case SlotTop, SlotLegs, SlotFeet:
		return true
	}
	return false
}

// WorldID identifies the origin server of a player character.
type WorldID uint16

// NonPlayer is the world of characters without an origin server (NPCs, minions).
const NonPlayer WorldID = 0xFFFF

// foldEqual compares strings under Unicode case folding. Casers are not
// safe for concurrent use, so one is built per call.
func foldEqual(a, b string) bool {
	c := cases.Fold()
	return c.String(a) == c.String(b)
}

// ModelKey selects a model either by numeric id or by file path.
// PathMode decides which of the two is compared.
type ModelKey struct {
	PathMode bool      `yaml:"path_mode" json:"path_mode"`
	Slot     EquipSlot `yaml:"slot" json:"slot"`
	ModelID  uint16    `yaml:"model_id" json:"model_id"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
}

// Equal reports whether two keys address the same model. Paths compare
// case-insensitively.
func (k ModelKey) Equal(o ModelKey) bool {
	if k.PathMode != o.PathMode || k.Slot != o.Slot {
		return false
	}
	if k.PathMode {
		return foldEqual(k.Path, o.Path)
	}
	return k.ModelID == o.ModelID
}

// MatchesModel reports whether the key selects m.
func (k ModelKey) MatchesModel(m EquippedModel) bool {
	if k.PathMode {
		return foldEqual(k.Path, m.Path)
	}
	return k.ModelID == m.ModelID
}

func (k ModelKey) String() string {
	if k.PathMode {
		return fmt.Sprintf("%s:%s", k.Slot, k.Path)
	}
	return fmt.Sprintf("%s#%d", k.Slot, k.ModelID)
}

// OffsetRule is a flat height offset applied while a model is worn.
type OffsetRule struct {
	Label   string  `yaml:"label,omitempty" json:"label,omitempty"`
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Locked  bool    `yaml:"locked,omitempty" json:"locked,omitempty"`
	Offset  float64 `yaml:"offset" json:"offset"`

	ModelKey `yaml:",inline"`

	// RevertSlot is the slot restored by ToggleMode.
	RevertSlot EquipSlot `yaml:"revert_slot,omitempty" json:"revert_slot,omitempty"`
}

// ToggleMode switches between id and path matching, swapping in the slot
// that was last used by the other mode.
func (r *OffsetRule) ToggleMode() {
	r.PathMode = !r.PathMode
	prev := r.Slot
	r.Slot = r.RevertSlot
	if !r.Slot.Valid() {
		r.Slot = SlotFeet
	}
	r.RevertSlot = prev
}

// EmoteID identifies an emote by its mode id and pose state.
type EmoteID struct {
	Mode uint16 `yaml:"mode" json:"mode"`
	Pose uint8  `yaml:"pose,omitempty" json:"pose,omitempty"`
}

func (e EmoteID) String() string {
	return fmt.Sprintf("emote(%d/%d)", e.Mode, e.Pose)
}

// Vec3 is a positional offset. Y is height, Z forward, X lateral.
type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// EmoteRule positions an entity while one of a set of equivalent emotes plays.
type EmoteRule struct {
	Label    string    `yaml:"label,omitempty" json:"label,omitempty"`
	Enabled  bool      `yaml:"enabled" json:"enabled"`
	Locked   bool      `yaml:"locked,omitempty" json:"locked,omitempty"`
	Emote    EmoteID   `yaml:"emote" json:"emote"`
	Linked   []EmoteID `yaml:"linked,omitempty" json:"linked,omitempty"`
	Offset   Vec3      `yaml:"offset" json:"offset"`
	Rotation float64   `yaml:"rotation" json:"rotation"` // radians
}

// EntityConfig is the rule set shared by every config variant.
type EntityConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	DefaultOffset float64       `yaml:"default_offset" json:"default_offset"`
	Offsets       []*OffsetRule `yaml:"offsets,omitempty" json:"offsets,omitempty"`
	Emotes        []*EmoteRule  `yaml:"emotes,omitempty" json:"emotes,omitempty"`
}

// Member is an explicit group entry matched by name and world only.
type Member struct {
	Name  string  `yaml:"name" json:"name"`
	World WorldID `yaml:"world" json:"world"`
}

// GroupConfig applies its rules to every identity it Matches.
type GroupConfig struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`

	EntityConfig `yaml:",inline"`

	MatchMasculine bool     `yaml:"match_masculine" json:"match_masculine"`
	MatchFeminine  bool     `yaml:"match_feminine" json:"match_feminine"`
	Clans          []uint16 `yaml:"clans,omitempty" json:"clans,omitempty"`
	Members        []Member `yaml:"members,omitempty" json:"members,omitempty"`
}

// ExternalConfig is a config assigned to one live entity by another process.
// It is read-only once assigned.
type ExternalConfig struct {
	Source string
	config EntityConfig
}

// NewExternalConfig takes a private copy of cfg.
func NewExternalConfig(source string, cfg EntityConfig) *ExternalConfig {
	return &ExternalConfig{Source: source, config: *cfg.Clone()}
}

// Identity describes who a live entity is.
type Identity struct {
	Name     string  `json:"name"`
	World    WorldID `json:"world"`
	Feminine bool    `json:"feminine"`
	Clan     uint16  `json:"clan"`
}

// EquippedModel is the model currently drawn in one slot.
type EquippedModel struct {
	ModelID uint16 `json:"model_id"`
	Path    string `json:"path,omitempty"`
	// Attributes is the model's attribute table, which may carry an
	// embedded offset.
	Attributes []string `json:"attributes,omitempty"`
}

// Equipment is a per-tick snapshot of the drawn models. Nil means no model.
type Equipment struct {
	Top  *EquippedModel `json:"top,omitempty"`
	Legs *EquippedModel `json:"legs,omitempty"`
	Feet *EquippedModel `json:"feet,omitempty"`
}

// Slot returns the model drawn in s. A model without a resource path is
// reported as absent.
func (e Equipment) Slot(s EquipSlot) (EquippedModel, bool) {
	var m *EquippedModel
	switch s {
	case SlotTop:
		m = e.Top
	case SlotLegs:
		m = e.Legs
	case SlotFeet:
		m = e.Feet
	}
	if m == nil || m.Path == "" {
		return EquippedModel{}, false
	}
	return *m, true
}

// Document is the persisted configuration.
type Document struct {
	Version         int                                  `yaml:"version" json:"version"`
	Enabled         bool                                 `yaml:"enabled" json:"enabled"`
	UseModelOffsets bool                                 `yaml:"use_model_offsets" json:"use_model_offsets"`
	PreferModelPath bool                                 `yaml:"prefer_model_path" json:"prefer_model_path"`
	Characters      map[WorldID]map[string]*EntityConfig `yaml:"characters,omitempty" json:"characters,omitempty"`
	Groups          []*GroupConfig                       `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// DocumentVersion is written by this build.
const DocumentVersion = 1

// DefaultDocument is used when no configuration exists yet.
func DefaultDocument() Document {
	return Document{
		Version:    DocumentVersion,
		Enabled:    true,
		Characters: make(map[WorldID]map[string]*EntityConfig),
	}
}
