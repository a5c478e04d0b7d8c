package world

import (
	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/mathx"
	"terramorph.dev/internal/sim/terrain"
)

// Vertices the 5x5 growth window can read extend from root-2 to root+3 on
// each axis, so any change within this radius of a root can flip a tier.
const growthWatchRadius = 4

// Flush drains the dirty tracker and queues, in order, one height-update
// message per dirty vertex followed by one mesh-rebuild message per dirty
// chunk. Replicas therefore always apply every height before rebuilding any
// mesh. Afterwards, settlements near the changed vertices are re-evaluated
// and tier transitions go out as state messages. Flushing an empty tracker
// emits nothing.
func (h *Host) Flush() {
	verts, chunks := h.dirty.Drain()
	if len(verts) == 0 && len(chunks) == 0 {
		return
	}

	for _, vu := range verts {
		h.enqueue(protocol.VertexUpdateMsg{
			Type:    protocol.TypeVertexUpdate,
			GlobalX: int32(vu.Loc.X),
			GlobalZ: int32(vu.Loc.Z),
			Height:  vu.Height,
		})
	}
	for _, ci := range chunks {
		h.enqueue(protocol.ChunkRebuildMsg{
			Type:   protocol.TypeChunkRebuild,
			ChunkX: int32(ci.CX),
			ChunkZ: int32(ci.CZ),
		})
	}

	tierChanges := h.reevaluateNear(verts)

	h.flushSeq++
	if h.flushLog != nil {
		entry := FlushLogEntry{Seq: h.flushSeq, Vertices: len(verts), Chunks: len(chunks), TierChanges: tierChanges}
		if err := h.flushLog.WriteFlush(entry); err != nil {
			h.logf("flush log: %v", err)
		}
	}
}

func (h *Host) reevaluateNear(verts []terrain.VertexUpdate) int {
	changes := 0
	for _, s := range h.sortedSettlements() {
		for _, vu := range verts {
			dx := mathx.AbsInt(vu.Loc.X - s.Root.X)
			dz := mathx.AbsInt(vu.Loc.Z - s.Root.Z)
			if dx <= growthWatchRadius && dz <= growthWatchRadius {
				if h.reevaluate(s) {
					changes++
				}
				break
			}
		}
	}
	return changes
}
