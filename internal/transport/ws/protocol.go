package ws

import (
	"encoding/json"

	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/resolve"
)

const (
	TypeTick    = "TICK"
	TypeOffsets = "OFFSETS"
	TypeDespawn = "DESPAWN"
)

type baseMsg struct {
	Type string `json:"type"`
}

// TickMsg carries one frame of live entities from the host.
type TickMsg struct {
	Type     string            `json:"type"`
	Tick     uint64            `json:"tick"`
	Entities []resolve.Request `json:"entities"`
}

// DespawnMsg ends an entity's lifetime, dropping its external assignment.
type DespawnMsg struct {
	Type     string `json:"type"`
	EntityID uint32 `json:"entity_id"`
}

// OffsetsMsg answers a TickMsg with one result per entity, in order.
type OffsetsMsg struct {
	Type    string         `json:"type"`
	Tick    uint64         `json:"tick"`
	Results []OffsetResult `json:"results"`
}

type OffsetResult struct {
	EntityID uint32      `json:"entity_id"`
	Kind     string      `json:"kind"`
	Value    float64     `json:"value,omitempty"`
	Offset   *model.Vec3 `json:"offset,omitempty"`
	Rotation float64     `json:"rotation,omitempty"`
	Source   string      `json:"source,omitempty"`
	Rule     string      `json:"rule,omitempty"`
	// FromModel marks offsets read from the equipped model's attributes.
	FromModel bool `json:"from_model,omitempty"`
}

func decodeBase(b []byte) (baseMsg, error) {
	var m baseMsg
	err := json.Unmarshal(b, &m)
	return m, err
}

// NewOffsetResult flattens a resolver result for the wire. It runs outside
// the store lock, so it only uses values copied by the resolver.
func NewOffsetResult(id uint32, r resolve.Result) OffsetResult {
	out := OffsetResult{EntityID: id, Kind: r.Kind.String(), Rule: r.Label, FromModel: r.FromModel}
	if r.Kind != resolve.None && r.Source != model.SourceNone {
		out.Source = r.Source.String()
	}
	switch r.Kind {
	case resolve.Scalar:
		out.Value = r.Value
	case resolve.Vector:
		off := r.Offset
		out.Offset = &off
		out.Rotation = r.Rotation
	}
	return out
}
