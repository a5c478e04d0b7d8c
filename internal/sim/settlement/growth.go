package settlement

import (
	"terramorph.dev/internal/sim/mathx"
	"terramorph.dev/internal/sim/terrain"
)

// Growth evaluation scans a 5x5 tile window centered on the settlement root
// with a frontier expansion instead of a full sweep: a not-flat tile stops its
// branch, so walled-in settlements touch only a handful of tiles.

type cellState uint8

const (
	cellUnvisited cellState = iota
	cellFlat
	cellNotFlat
)

type offset struct {
	x, z int
}

// Survey is the result of one growth evaluation.
type Survey struct {
	FlatTiles int // flat tiles found around the root, center excluded
	Others    int // distinct live settlements sharing the window
}

// Evaluate counts contiguous flat, buildable tiles around the settlement's
// root tile. Tiles fully covered by another live settlement count as flat and
// record the sharer but are not expanded through; tiles touching ruins are
// not flat at all.
func Evaluate(f *terrain.Field, s *Settlement) Survey {
	rootHeight, err := f.HeightAt(s.Root)
	if err != nil {
		return Survey{}
	}

	var grid [5][5]cellState
	mark := func(o offset, st cellState) { grid[o.x+2][o.z+2] = st }
	state := func(o offset) cellState { return grid[o.x+2][o.z+2] }

	mark(offset{0, 0}, cellFlat)

	others := map[terrain.SettlementID]struct{}{}
	frontier := []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	flat := 0

	for len(frontier) > 0 {
		o := frontier[0]
		frontier = frontier[1:]
		if state(o) != cellUnvisited {
			continue
		}

		ok, shared := tileFlat(f, s, rootHeight, o, others)
		if !ok {
			mark(o, cellNotFlat)
			continue
		}
		mark(o, cellFlat)
		flat++
		if shared {
			// Another settlement's ground: credit it, don't grow through it.
			continue
		}
		frontier = append(frontier, pushes(o)...)
	}

	return Survey{FlatTiles: flat, Others: len(others)}
}

// tileFlat checks the tile at the given offset from the root tile. A tile is
// flat iff its four corner vertices are in bounds, level with the root and
// open for this settlement's growth.
func tileFlat(f *terrain.Field, s *Settlement, rootHeight int32, o offset, others map[terrain.SettlementID]struct{}) (flat, shared bool) {
	base := terrain.Location{X: s.Root.X + o.x, Z: s.Root.Z + o.z}
	corners := [4]terrain.Location{
		base,
		{X: base.X + 1, Z: base.Z},
		{X: base.X, Z: base.Z + 1},
		{X: base.X + 1, Z: base.Z + 1},
	}

	var slots [4]terrain.Slot
	for i, c := range corners {
		h, err := f.HeightAt(c)
		if err != nil || h != rootHeight {
			return false, false
		}
		if !f.IsAccessible(c) || f.IsSwamp(c) || f.IsRock(c) {
			return false, false
		}
		sl, err := f.OccupantAt(c)
		if err != nil {
			return false, false
		}
		slots[i] = sl
	}

	// A tile whose whole footprint belongs to another live settlement still
	// counts toward the shared flat region.
	if owner, ok := coveredByOther(slots, s.ID); ok {
		others[owner] = struct{}{}
		return true, true
	}

	for _, sl := range slots {
		switch sl.Kind {
		case terrain.SlotEmpty:
		case terrain.SlotLive:
			if sl.Settlement != s.ID {
				// Partial overlap with a foreign footprint: blocked.
				return false, false
			}
		case terrain.SlotRuins:
			// Ruins block flat-area counting entirely.
			return false, false
		}
	}
	return true, false
}

func coveredByOther(slots [4]terrain.Slot, self terrain.SettlementID) (terrain.SettlementID, bool) {
	first := slots[0]
	if first.Kind != terrain.SlotLive || first.Settlement == self {
		return "", false
	}
	for _, sl := range slots[1:] {
		if sl.Kind != terrain.SlotLive || sl.Settlement != first.Settlement {
			return "", false
		}
	}
	return first.Settlement, true
}

// pushes yields the next frontier cells for a flat tile, keyed on its offset
// class relative to the center. Every push stays inside the 5x5 window.
func pushes(o offset) []offset {
	ax := mathx.AbsInt(o.x)
	az := mathx.AbsInt(o.z)
	switch {
	case ax+az == 1:
		// Orthogonal ring 1: straight continuation plus both laterals.
		if o.z == 0 {
			return []offset{{2 * o.x, 0}, {o.x, 1}, {o.x, -1}}
		}
		return []offset{{0, 2 * o.z}, {1, o.z}, {-1, o.z}}
	case ax == 1 && az == 1:
		// Diagonal ring 1: continue along each axis.
		return []offset{{2 * o.x, o.z}, {o.x, 2 * o.z}}
	case ax == 2 && az != 2:
		return []offset{{o.x, o.z - 1}, {o.x, o.z + 1}}
	case az == 2 && ax != 2:
		return []offset{{o.x - 1, o.z}, {o.x + 1, o.z}}
	default:
		// Window corners terminate.
		return nil
	}
}
