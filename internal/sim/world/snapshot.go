package world

import (
	"fmt"

	"terramorph.dev/internal/persistence/snapshot"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

const snapshotVersion = 1

// Snapshot captures the host's full state for resume and archival.
func (h *Host) Snapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshotVersion,
			WorldID:  h.cfg.ID,
			FlushSeq: h.flushSeq,
		},
		Seed:           h.cfg.Seed,
		ChunkWidth:     h.cfg.ChunkWidth,
		ChunkCount:     h.cfg.ChunkCount,
		StepHeight:     h.cfg.StepHeight,
		WaterLevel:     h.cfg.WaterLevel,
		PlateauRegion:  h.cfg.PlateauRegion,
		PlateauSteps:   h.cfg.PlateauSteps,
		ForestPermille: h.cfg.ForestPermille,
		SwampPermille:  h.cfg.SwampPermille,
		RockPermille:   h.cfg.RockPermille,
		TierHealth:     h.cfg.TierHealth,
		Counters: snapshot.CountersV1{
			NextSettlement: h.nextSettlementNum,
			MutationSeq:    h.mutationSeq,
		},
	}

	for cz := 0; cz < h.cfg.ChunkCount; cz++ {
		for cx := 0; cx < h.cfg.ChunkCount; cx++ {
			ci := terrain.ChunkIndex{CX: cx, CZ: cz}
			heights, feats, err := h.field.ExportChunk(ci)
			if err != nil {
				continue
			}
			fb := make([]uint8, len(feats))
			for i, f := range feats {
				fb[i] = uint8(f)
			}
			snap.Chunks = append(snap.Chunks, snapshot.ChunkV1{CX: cx, CZ: cz, Heights: heights, Features: fb})
		}
	}

	for _, s := range h.sortedSettlements() {
		snap.Settlements = append(snap.Settlements, snapshot.SettlementV1{
			ID:          string(s.ID),
			Faction:     s.Faction,
			RootX:       int32(s.Root.X),
			RootZ:       int32(s.Root.Z),
			Tier:        int(s.Tier),
			Health:      s.Health,
			Occupants:   s.Occupants,
			UnderAttack: s.UnderAttack,
			Occupied:    vertexPairs(s.Occupied),
		})
	}
	for _, id := range sortedRuinIDs(h.ruins) {
		snap.Ruins = append(snap.Ruins, snapshot.RuinsV1{ID: string(id), Vertices: vertexPairs(h.ruins[id])})
	}
	return snap
}

// FromSnapshot resumes a host from a written snapshot.
func FromSnapshot(snap snapshot.SnapshotV1) (*Host, error) {
	if snap.Header.Version != snapshotVersion {
		return nil, fmt.Errorf("world: unsupported snapshot version %d", snap.Header.Version)
	}
	cfg := Config{
		ID:             snap.Header.WorldID,
		Seed:           snap.Seed,
		ChunkWidth:     snap.ChunkWidth,
		ChunkCount:     snap.ChunkCount,
		StepHeight:     snap.StepHeight,
		WaterLevel:     snap.WaterLevel,
		PlateauRegion:  snap.PlateauRegion,
		PlateauSteps:   snap.PlateauSteps,
		ForestPermille: snap.ForestPermille,
		SwampPermille:  snap.SwampPermille,
		RockPermille:   snap.RockPermille,
		TierHealth:     snap.TierHealth,
	}.withDefaults()

	h := &Host{
		cfg:               cfg,
		field:             terrain.NewField(cfg.ChunkWidth, cfg.ChunkCount, cfg.WaterLevel),
		dirty:             terrain.NewDirtyTracker(),
		settlements:       map[terrain.SettlementID]*settlement.Settlement{},
		ruins:             map[terrain.SettlementID][]terrain.Location{},
		nextSettlementNum: snap.Counters.NextSettlement,
		mutationSeq:       snap.Counters.MutationSeq,
		flushSeq:          snap.Header.FlushSeq,
	}

	for _, cs := range snap.Chunks {
		feats := make([]terrain.Features, len(cs.Features))
		for i, b := range cs.Features {
			feats[i] = terrain.Features(b)
		}
		if err := h.field.RestoreChunk(terrain.ChunkIndex{CX: cs.CX, CZ: cs.CZ}, cs.Heights, feats); err != nil {
			return nil, err
		}
	}

	for _, sv := range snap.Settlements {
		s := &settlement.Settlement{
			ID:             terrain.SettlementID(sv.ID),
			Faction:        sv.Faction,
			Root:           terrain.Location{X: int(sv.RootX), Z: int(sv.RootZ)},
			Tier:           settlement.Tier(sv.Tier),
			Health:         sv.Health,
			Occupants:      sv.Occupants,
			UnderAttack:    sv.UnderAttack,
			FootprintTiles: settlement.FootprintFor(settlement.Tier(sv.Tier)),
		}
		for _, p := range sv.Occupied {
			s.Occupied = append(s.Occupied, terrain.Location{X: int(p[0]), Z: int(p[1])})
		}
		h.settlements[s.ID] = s
		h.occupy(s)
	}
	for _, rv := range snap.Ruins {
		id := terrain.SettlementID(rv.ID)
		for _, p := range rv.Vertices {
			loc := terrain.Location{X: int(p[0]), Z: int(p[1])}
			h.ruins[id] = append(h.ruins[id], loc)
			_ = h.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotRuins, Settlement: id})
		}
	}
	return h, nil
}
