package world

import (
	"encoding/json"
	"errors"
	"testing"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

func TestFoundSettlement_OpenPlainGrowsToCitadel(t *testing.T) {
	h := NewHost(flatConfig())
	root := terrain.Location{X: 8, Z: 8}

	s, err := h.FoundSettlement(root, "red")
	if err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	if s.ID != "S1" {
		t.Fatalf("settlement id = %s, want S1", s.ID)
	}
	// 24 flat tiles around the root promote it straight to the top tier.
	if s.Tier != settlement.TierCitadel {
		t.Fatalf("tier = %v, want CITADEL", s.Tier)
	}
	if len(s.Occupied) != 16 || s.FootprintTiles != 2 {
		t.Fatalf("occupied %d vertices footprint %d, want 16 and 2", len(s.Occupied), s.FootprintTiles)
	}
	if s.Health != 500 {
		t.Fatalf("health = %d, want 500", s.Health)
	}

	raw := h.DrainOutbound()
	if len(raw) != 2 {
		t.Fatalf("got %d messages, want FOUNDED then TIER_CHANGED", len(raw))
	}
	var founded protocol.SettlementFoundedMsg
	if err := json.Unmarshal(raw[0], &founded); err != nil || founded.Type != protocol.TypeSettlementFounded {
		t.Fatalf("first message %s: %v", raw[0], err)
	}
	if founded.Tier != int(settlement.TierCamp) {
		t.Fatalf("founded at tier %d, want camp", founded.Tier)
	}
	var tc protocol.TierChangedMsg
	if err := json.Unmarshal(raw[1], &tc); err != nil || tc.Type != protocol.TypeTierChanged {
		t.Fatalf("second message %s: %v", raw[1], err)
	}
	if tc.NewTier != int(settlement.TierCitadel) || len(tc.NewOccupied) != 16 {
		t.Fatalf("tier change = %+v", tc)
	}

	// The 4x4 block is claimed on the field.
	sl, err := h.Field().OccupantAt(terrain.Location{X: 7, Z: 7})
	if err != nil || sl.Kind != terrain.SlotLive || sl.Settlement != s.ID {
		t.Fatalf("corner occupancy = %+v, %v", sl, err)
	}
}

func TestFoundSettlement_Rejections(t *testing.T) {
	h := NewHost(flatConfig())

	if _, err := h.FoundSettlement(terrain.Location{X: 99, Z: 0}, "red"); !errors.Is(err, terrain.ErrOutOfBounds) {
		t.Fatalf("out of bounds err = %v", err)
	}

	rock := terrain.Location{X: 20, Z: 20}
	_ = h.Field().SetFeatures(rock, terrain.FeatRock)
	if _, err := h.FoundSettlement(rock, "red"); !errors.Is(err, ErrNotBuildable) {
		t.Fatalf("rock err = %v", err)
	}

	if _, err := h.FoundSettlement(terrain.Location{X: 8, Z: 8}, "red"); err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	// The citadel block covers (7,7)..(10,10).
	if _, err := h.FoundSettlement(terrain.Location{X: 9, Z: 9}, "blue"); !errors.Is(err, ErrNotBuildable) {
		t.Fatalf("occupied vertex err = %v", err)
	}
}

func TestUnderAttackFreezesTierReevaluation(t *testing.T) {
	h := NewHost(flatConfig())
	s, err := h.FoundSettlement(terrain.Location{X: 8, Z: 8}, "red")
	if err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	h.DrainOutbound()

	if err := h.DamageSettlement(s.ID, 50); err != nil {
		t.Fatalf("DamageSettlement: %v", err)
	}
	if !s.UnderAttack || s.Health != 450 {
		t.Fatalf("after damage: underAttack=%v health=%d", s.UnderAttack, s.Health)
	}

	// Raise a vertex inside the growth window; frozen settlements must not
	// react even though the flat area shrank.
	if err := h.ApplyMutation([]terrain.Location{{X: 10, Z: 8}}, true); err != nil {
		t.Fatalf("ApplyMutation: %v", err)
	}
	h.Flush()
	for _, m := range decodeAll(t, h.DrainOutbound()) {
		if m.Type == protocol.TypeTierChanged {
			t.Fatalf("tier change emitted while under attack")
		}
	}
	if s.Tier != settlement.TierCitadel {
		t.Fatalf("tier moved to %v while under attack", s.Tier)
	}

	// Combat ends: the deferred re-evaluation runs immediately.
	if err := h.SetUnderAttack(s.ID, false); err != nil {
		t.Fatalf("SetUnderAttack: %v", err)
	}
	if s.Tier != settlement.TierCity {
		t.Fatalf("tier after combat = %v, want CITY", s.Tier)
	}
	if len(s.Occupied) != 1 || s.Occupied[0] != s.Root {
		t.Fatalf("demoted settlement still occupies %v", s.Occupied)
	}

	raw := h.DrainOutbound()
	if len(raw) != 1 {
		t.Fatalf("got %d messages, want one TIER_CHANGED", len(raw))
	}
	var tc protocol.TierChangedMsg
	if err := json.Unmarshal(raw[0], &tc); err != nil || tc.NewTier != int(settlement.TierCity) {
		t.Fatalf("tier change %s: %v", raw[0], err)
	}
}

func TestDestroySettlementLeavesRuins(t *testing.T) {
	h := NewHost(flatConfig())
	s, err := h.FoundSettlement(terrain.Location{X: 8, Z: 8}, "red")
	if err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	h.DrainOutbound()

	if err := h.DamageSettlement(s.ID, 600); err != nil {
		t.Fatalf("DamageSettlement: %v", err)
	}
	if _, ok := h.Settlement(s.ID); ok {
		t.Fatalf("settlement survived lethal damage")
	}

	raw := h.DrainOutbound()
	if len(raw) != 1 {
		t.Fatalf("got %d messages, want one SETTLEMENT_DESTROYED", len(raw))
	}
	var dm protocol.SettlementDestroyedMsg
	if err := json.Unmarshal(raw[0], &dm); err != nil || dm.Type != protocol.TypeSettlementDestroyed {
		t.Fatalf("destroy message %s: %v", raw[0], err)
	}
	if len(dm.Ruins) != 16 {
		t.Fatalf("ruins cover %d vertices, want 16", len(dm.Ruins))
	}

	sl, err := h.Field().OccupantAt(s.Root)
	if err != nil || sl.Kind != terrain.SlotRuins || sl.Settlement != s.ID {
		t.Fatalf("root slot after destruction = %+v, %v", sl, err)
	}

	// Ruins never free up for new construction.
	if _, err := h.FoundSettlement(s.Root, "blue"); !errors.Is(err, ErrNotBuildable) {
		t.Fatalf("founding on ruins err = %v", err)
	}
}

func TestDamageSettlement_Unknown(t *testing.T) {
	h := NewHost(flatConfig())
	if err := h.DamageSettlement("S404", 10); !errors.Is(err, ErrUnknownSettlement) {
		t.Fatalf("err = %v, want ErrUnknownSettlement", err)
	}
	if err := h.SetUnderAttack("S404", true); !errors.Is(err, ErrUnknownSettlement) {
		t.Fatalf("err = %v, want ErrUnknownSettlement", err)
	}
}
