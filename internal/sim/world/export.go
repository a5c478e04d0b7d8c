package world

import (
	"sort"

	"terramorph.dev/internal/protocol"
	simenc "terramorph.dev/internal/sim/encoding"
	"terramorph.dev/internal/sim/terrain"
)

// ExportState derives a full vertex dump from the height field for late
// joiners. Chunks are emitted in grid order with RLE-compressed payloads.
func (h *Host) ExportState() protocol.FullStateMsg {
	msg := protocol.FullStateMsg{
		Type:            protocol.TypeFullState,
		ProtocolVersion: protocol.Version,
		WorldParams:     h.WorldParams(),
	}

	count := h.cfg.ChunkCount
	for cz := 0; cz < count; cz++ {
		for cx := 0; cx < count; cx++ {
			ci := terrain.ChunkIndex{CX: cx, CZ: cz}
			heights, feats, err := h.field.ExportChunk(ci)
			if err != nil {
				continue
			}
			msg.Chunks = append(msg.Chunks, protocol.ChunkState{
				CX:       cx,
				CZ:       cz,
				Heights:  simenc.EncodeHeights(heights),
				Features: simenc.EncodeRLE(featureVals(feats)),
			})
		}
	}

	for _, s := range h.sortedSettlements() {
		msg.Settlements = append(msg.Settlements, protocol.SettlementState{
			SettlementID: string(s.ID),
			Faction:      s.Faction,
			RootX:        int32(s.Root.X),
			RootZ:        int32(s.Root.Z),
			Tier:         int(s.Tier),
			Health:       s.Health,
			Occupants:    s.Occupants,
			UnderAttack:  s.UnderAttack,
			Occupied:     vertexPairs(s.Occupied),
		})
	}
	for _, id := range sortedRuinIDs(h.ruins) {
		msg.Ruins = append(msg.Ruins, protocol.RuinsState{
			SettlementID: string(id),
			Vertices:     vertexPairs(h.ruins[id]),
		})
	}
	return msg
}

func sortedRuinIDs(ruins map[terrain.SettlementID][]terrain.Location) []terrain.SettlementID {
	ids := make([]terrain.SettlementID, 0, len(ruins))
	for id := range ruins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func featureVals(feats []terrain.Features) []uint32 {
	out := make([]uint32, len(feats))
	for i, f := range feats {
		out[i] = uint32(f)
	}
	return out
}

func featuresFromVals(vals []uint32) []terrain.Features {
	out := make([]terrain.Features, len(vals))
	for i, v := range vals {
		out[i] = terrain.Features(v)
	}
	return out
}
