package world

import (
	"errors"
	"fmt"
	"sort"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/mathx"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

// FoundSettlement claims a buildable vertex for a new camp-tier settlement and
// evaluates its initial tier from the surrounding flat area.
func (h *Host) FoundSettlement(root terrain.Location, faction string) (*settlement.Settlement, error) {
	if !h.field.InBounds(root) {
		return nil, fmt.Errorf("%w: %v", terrain.ErrOutOfBounds, root)
	}
	if !h.field.IsBuildable(root) {
		return nil, fmt.Errorf("%w: %v", ErrNotBuildable, root)
	}

	s := &settlement.Settlement{
		ID:             h.nextSettlementID(),
		Faction:        faction,
		Root:           root,
		Tier:           settlement.TierCamp,
		Health:         h.cfg.TierHealth[settlement.TierCamp],
		Occupied:       []terrain.Location{root},
		FootprintTiles: 1,
	}
	h.occupy(s)
	h.settlements[s.ID] = s

	h.enqueue(protocol.SettlementFoundedMsg{
		Type:         protocol.TypeSettlementFounded,
		SettlementID: string(s.ID),
		Faction:      s.Faction,
		RootX:        int32(root.X),
		RootZ:        int32(root.Z),
		Tier:         int(s.Tier),
		Occupied:     vertexPairs(s.Occupied),
	})

	h.reevaluate(s)
	h.reevaluateAround(root, s.ID)
	return s, nil
}

// DamageSettlement applies combat damage. Damage marks the settlement as
// under attack, freezing growth; at zero health the settlement is destroyed
// and its vertices become ruins markers.
func (h *Host) DamageSettlement(id terrain.SettlementID, amount int32) error {
	s, ok := h.settlements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, id)
	}
	s.UnderAttack = true
	s.Health -= amount
	if s.Health <= 0 {
		h.destroySettlement(s)
	}
	return nil
}

// SetUnderAttack toggles the combat freeze. Clearing it triggers the deferred
// re-evaluation immediately.
func (h *Host) SetUnderAttack(id terrain.SettlementID, under bool) error {
	s, ok := h.settlements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, id)
	}
	s.UnderAttack = under
	if !under {
		h.reevaluate(s)
	}
	return nil
}

func (h *Host) destroySettlement(s *settlement.Settlement) {
	for _, loc := range s.Occupied {
		_ = h.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotRuins, Settlement: s.ID})
	}
	h.ruins[s.ID] = append([]terrain.Location(nil), s.Occupied...)
	delete(h.settlements, s.ID)

	h.enqueue(protocol.SettlementDestroyedMsg{
		Type:         protocol.TypeSettlementDestroyed,
		SettlementID: string(s.ID),
		Ruins:        vertexPairs(s.Occupied),
	})

	h.reevaluateAround(s.Root, s.ID)
}

// reevaluate recomputes the settlement's tier and applies the transition.
// Returns true when the tier changed. Skipped entirely under attack.
func (h *Host) reevaluate(s *settlement.Settlement) bool {
	if s.UnderAttack {
		return false
	}

	sv := settlement.Evaluate(h.field, s)
	tier, err := settlement.TierFor(sv.FlatTiles, sv.Others)
	if err != nil {
		// Invariant violation; clamped value is still usable.
		if errors.Is(err, settlement.ErrInvalidTier) {
			h.logf("growth: %v", err)
		} else {
			return false
		}
	}
	if tier == s.Tier {
		return false
	}

	h.vacate(s)
	s.Tier = tier
	s.Health = h.cfg.TierHealth[tier]
	s.Occupied = settlement.OccupiedFor(h.field, s.Root, tier)
	s.FootprintTiles = settlement.FootprintFor(tier)
	h.occupy(s)

	h.enqueue(protocol.TierChangedMsg{
		Type:         protocol.TypeTierChanged,
		SettlementID: string(s.ID),
		NewTier:      int(tier),
		NewOccupied:  vertexPairs(s.Occupied),
	})
	return true
}

// reevaluateAround re-runs growth for every other settlement whose window can
// see the given vertex, after an occupancy change there.
func (h *Host) reevaluateAround(loc terrain.Location, except terrain.SettlementID) {
	for _, s := range h.sortedSettlements() {
		if s.ID == except {
			continue
		}
		dx := mathx.AbsInt(loc.X - s.Root.X)
		dz := mathx.AbsInt(loc.Z - s.Root.Z)
		if dx <= growthWatchRadius && dz <= growthWatchRadius {
			h.reevaluate(s)
		}
	}
}

func (h *Host) occupy(s *settlement.Settlement) {
	for _, loc := range s.Occupied {
		_ = h.field.SetOccupant(loc, terrain.Slot{Kind: terrain.SlotLive, Settlement: s.ID})
	}
}

func (h *Host) vacate(s *settlement.Settlement) {
	for _, loc := range s.Occupied {
		_ = h.field.SetOccupant(loc, terrain.Slot{})
	}
}

// sortedSettlements keeps evaluation order deterministic across runs.
func (h *Host) sortedSettlements() []*settlement.Settlement {
	out := make([]*settlement.Settlement, 0, len(h.settlements))
	for _, s := range h.settlements {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func vertexPairs(locs []terrain.Location) [][2]int32 {
	out := make([][2]int32, len(locs))
	for i, loc := range locs {
		out[i] = [2]int32{int32(loc.X), int32(loc.Z)}
	}
	return out
}
