package world

import (
	"encoding/json"
	"errors"
	"fmt"

	"terramorph.dev/internal/protocol"
	simenc "terramorph.dev/internal/sim/encoding"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

// ErrProtocolViolation means the replica received a reference outside the
// valid grid. The transport is assumed reliable and ordered, so this can only
// be a corrupted stream; callers should treat it as fatal.
var ErrProtocolViolation = errors.New("world: protocol violation")

// MeshRebuilder regenerates renderable geometry for one chunk. Rendering
// itself lives outside this core.
type MeshRebuilder interface {
	RebuildChunk(terrain.ChunkIndex)
}

// Replica is a passive copy of the world. It never originates mutations; it
// only applies diffs received from the authoritative host, in order.
type Replica struct {
	cfg   Config
	field *terrain.Field

	settlements map[terrain.SettlementID]*settlement.Settlement
	ruins       map[terrain.SettlementID][]terrain.Location

	rebuilder MeshRebuilder
}

// NewReplica builds a replica from the same seed as the host. Worldgen is
// deterministic, so host and replica start from identical fields.
func NewReplica(cfg Config, rebuilder MeshRebuilder) *Replica {
	cfg = cfg.withDefaults()
	r := &Replica{
		cfg:         cfg,
		field:       terrain.NewField(cfg.ChunkWidth, cfg.ChunkCount, cfg.WaterLevel),
		settlements: map[terrain.SettlementID]*settlement.Settlement{},
		ruins:       map[terrain.SettlementID][]terrain.Location{},
		rebuilder:   rebuilder,
	}
	terrain.Generate(r.field, terrain.GenConfig{
		Seed:           cfg.Seed,
		Step:           cfg.StepHeight,
		PlateauRegion:  cfg.PlateauRegion,
		PlateauSteps:   cfg.PlateauSteps,
		ForestPermille: cfg.ForestPermille,
		SwampPermille:  cfg.SwampPermille,
		RockPermille:   cfg.RockPermille,
	})
	return r
}

func (r *Replica) Field() *terrain.Field { return r.field }

func (r *Replica) Settlement(id terrain.SettlementID) (*settlement.Settlement, bool) {
	s, ok := r.settlements[id]
	return s, ok
}

// Apply routes one wire message. Unknown message types are ignored for
// forward compatibility; malformed or out-of-grid payloads are fatal.
func (r *Replica) Apply(raw []byte) error {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	switch base.Type {
	case protocol.TypeVertexUpdate:
		var m protocol.VertexUpdateMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplyVertexUpdate(m)
	case protocol.TypeChunkRebuild:
		var m protocol.ChunkRebuildMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplyChunkRebuild(m)
	case protocol.TypeSettlementFounded:
		var m protocol.SettlementFoundedMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplySettlementFounded(m)
	case protocol.TypeTierChanged:
		var m protocol.TierChangedMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplyTierChanged(m)
	case protocol.TypeSettlementDestroyed:
		var m protocol.SettlementDestroyedMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplySettlementDestroyed(m)
	case protocol.TypeFullState:
		var m protocol.FullStateMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return r.ApplyFullState(m)
	}
	return nil
}

// ApplyVertexUpdate writes the new height into every chunk that shares the
// vertex (the west/north/northwest fan-out lives in the field's SetHeight).
// Omitting that fan-out would leave visible seams between chunk meshes.
func (r *Replica) ApplyVertexUpdate(m protocol.VertexUpdateMsg) error {
	loc := terrain.Location{X: int(m.GlobalX), Z: int(m.GlobalZ)}
	if !r.field.InBounds(loc) {
		return fmt.Errorf("%w: vertex %v", ErrProtocolViolation, loc)
	}
	return r.field.SetHeight(loc, m.Height)
}

// ApplyChunkRebuild hands the chunk to the rendering collaborator. By the
// protocol's flush ordering, every height for this flush has already landed.
func (r *Replica) ApplyChunkRebuild(m protocol.ChunkRebuildMsg) error {
	ci := terrain.ChunkIndex{CX: int(m.ChunkX), CZ: int(m.ChunkZ)}
	if !r.field.ChunkInBounds(ci) {
		return fmt.Errorf("%w: chunk %+v", ErrProtocolViolation, ci)
	}
	if r.rebuilder != nil {
		r.rebuilder.RebuildChunk(ci)
	}
	return nil
}

func (r *Replica) ApplySettlementFounded(m protocol.SettlementFoundedMsg) error {
	id := terrain.SettlementID(m.SettlementID)
	occupied, err := r.locations(m.Occupied)
	if err != nil {
		return err
	}
	s := &settlement.Settlement{
		ID:             id,
		Faction:        m.Faction,
		Root:           terrain.Location{X: int(m.RootX), Z: int(m.RootZ)},
		Tier:           settlement.Tier(m.Tier),
		Health:         r.cfg.TierHealth[clampTier(m.Tier)],
		Occupied:       occupied,
		FootprintTiles: settlement.FootprintFor(settlement.Tier(m.Tier)),
	}
	r.settlements[id] = s
	for _, loc := range occupied {
		_ = r.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotLive, Settlement: id})
	}
	return nil
}

func (r *Replica) ApplyTierChanged(m protocol.TierChangedMsg) error {
	id := terrain.SettlementID(m.SettlementID)
	s, ok := r.settlements[id]
	if !ok {
		return fmt.Errorf("%w: settlement %s", ErrProtocolViolation, id)
	}
	occupied, err := r.locations(m.NewOccupied)
	if err != nil {
		return err
	}
	for _, loc := range s.Occupied {
		_ = r.field.SetOccupant(loc, terrain.Slot{})
	}
	s.Tier = settlement.Tier(m.NewTier)
	s.Health = r.cfg.TierHealth[clampTier(m.NewTier)]
	s.Occupied = occupied
	s.FootprintTiles = settlement.FootprintFor(s.Tier)
	for _, loc := range occupied {
		_ = r.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotLive, Settlement: id})
	}
	return nil
}

func (r *Replica) ApplySettlementDestroyed(m protocol.SettlementDestroyedMsg) error {
	id := terrain.SettlementID(m.SettlementID)
	s, ok := r.settlements[id]
	if !ok {
		return fmt.Errorf("%w: settlement %s", ErrProtocolViolation, id)
	}
	ruins, err := r.locations(m.Ruins)
	if err != nil {
		return err
	}
	for _, loc := range s.Occupied {
		_ = r.field.SetOccupant(loc, terrain.Slot{})
	}
	for _, loc := range ruins {
		_ = r.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotRuins, Settlement: id})
	}
	r.ruins[id] = ruins
	delete(r.settlements, id)
	return nil
}

// ApplyFullState replaces the replica's world with the host's bulk export.
// Occupancy is wiped first so slots from the replica's previous state cannot
// survive the reset; the export's settlement and ruins lists rebuild them.
func (r *Replica) ApplyFullState(m protocol.FullStateMsg) error {
	r.field.ClearOccupancy()
	for _, cs := range m.Chunks {
		ci := terrain.ChunkIndex{CX: cs.CX, CZ: cs.CZ}
		if !r.field.ChunkInBounds(ci) {
			return fmt.Errorf("%w: chunk %+v", ErrProtocolViolation, ci)
		}
		heights, err := simenc.DecodeHeights(cs.Heights)
		if err != nil {
			return fmt.Errorf("%w: chunk %+v heights: %v", ErrProtocolViolation, ci, err)
		}
		featVals, err := simenc.DecodeRLE(cs.Features)
		if err != nil {
			return fmt.Errorf("%w: chunk %+v features: %v", ErrProtocolViolation, ci, err)
		}
		if err := r.field.RestoreChunk(ci, heights, featuresFromVals(featVals)); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
	}

	r.settlements = map[terrain.SettlementID]*settlement.Settlement{}
	r.ruins = map[terrain.SettlementID][]terrain.Location{}
	for _, ss := range m.Settlements {
		id := terrain.SettlementID(ss.SettlementID)
		occupied, err := r.locations(ss.Occupied)
		if err != nil {
			return err
		}
		s := &settlement.Settlement{
			ID:             id,
			Faction:        ss.Faction,
			Root:           terrain.Location{X: int(ss.RootX), Z: int(ss.RootZ)},
			Tier:           settlement.Tier(ss.Tier),
			Health:         ss.Health,
			Occupants:      ss.Occupants,
			UnderAttack:    ss.UnderAttack,
			Occupied:       occupied,
			FootprintTiles: settlement.FootprintFor(settlement.Tier(ss.Tier)),
		}
		r.settlements[id] = s
		for _, loc := range occupied {
			_ = r.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotLive, Settlement: id})
		}
	}
	for _, rs := range m.Ruins {
		id := terrain.SettlementID(rs.SettlementID)
		ruins, err := r.locations(rs.Vertices)
		if err != nil {
			return err
		}
		r.ruins[id] = ruins
		for _, loc := range ruins {
			_ = r.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotRuins, Settlement: id})
		}
	}

	if r.rebuilder != nil {
		count := r.cfg.ChunkCount
		for cz := 0; cz < count; cz++ {
			for cx := 0; cx < count; cx++ {
				r.rebuilder.RebuildChunk(terrain.ChunkIndex{CX: cx, CZ: cz})
			}
		}
	}
	return nil
}

func (r *Replica) locations(pairs [][2]int32) ([]terrain.Location, error) {
	out := make([]terrain.Location, len(pairs))
	for i, p := range pairs {
		loc := terrain.Location{X: int(p[0]), Z: int(p[1])}
		if !r.field.InBounds(loc) {
			return nil, fmt.Errorf("%w: vertex %v", ErrProtocolViolation, loc)
		}
		out[i] = loc
	}
	return out, nil
}

func clampTier(t int) settlement.Tier {
	if t < 0 {
		return 0
	}
	if t >= settlement.TierCount {
		return settlement.TierCount - 1
	}
	return settlement.Tier(t)
}
