package settlement

import (
	"errors"
	"fmt"

	"terramorph.dev/internal/sim/terrain"
)

// Tier is one of the six ordered settlement size classes.
type Tier int

const (
	TierCamp Tier = iota
	TierHamlet
	TierVillage
	TierTown
	TierCity
	TierCitadel

	TierCount = 6
)

// ErrInvalidTier flags a growth computation that left [0, TierCount). Treated
// as a programming-invariant violation: callers clamp and log.
var ErrInvalidTier = errors.New("settlement: tier out of range")

func (t Tier) String() string {
	switch t {
	case TierCamp:
		return "CAMP"
	case TierHamlet:
		return "HAMLET"
	case TierVillage:
		return "VILLAGE"
	case TierTown:
		return "TOWN"
	case TierCity:
		return "CITY"
	case TierCitadel:
		return "CITADEL"
	default:
		return fmt.Sprintf("TIER_%d", int(t))
	}
}

// HealthTable holds max health per tier.
type HealthTable [TierCount]int32

func DefaultHealth() HealthTable {
	return HealthTable{40, 80, 140, 220, 320, 500}
}

// Settlement is one population center rooted at a single vertex. Tiers below
// Citadel occupy only the root; a Citadel occupies a contiguous 4x4 vertex
// block around it.
type Settlement struct {
	ID      terrain.SettlementID
	Faction string
	Root    terrain.Location

	Tier      Tier
	Health    int32
	Occupants int

	// UnderAttack suspends tier re-evaluation until combat ends.
	UnderAttack bool

	Occupied []terrain.Location

	// FootprintTiles is the collision footprint span: 1 tile for tiers below
	// Citadel, 2x2 tiles for a Citadel.
	FootprintTiles int
}

func FootprintFor(t Tier) int {
	if t == TierCitadel {
		return 2
	}
	return 1
}

// OccupiedFor computes the occupied-vertex set for a tier, dropping vertices
// that would fall outside the world so the occupied set stays in bounds.
func OccupiedFor(f *terrain.Field, root terrain.Location, t Tier) []terrain.Location {
	if t != TierCitadel {
		return []terrain.Location{root}
	}
	out := make([]terrain.Location, 0, 16)
	for j := -1; j <= 2; j++ {
		for i := -1; i <= 2; i++ {
			loc := terrain.Location{X: root.X + i, Z: root.Z + j}
			if f.InBounds(loc) {
				out = append(out, loc)
			}
		}
	}
	return out
}

// TierFor buckets a flat-tile count into a tier. The count is first split
// among every settlement sharing the window, self included: one other
// settlement found means each side keeps half the tile credit.
func TierFor(flatTiles, otherSettlements int) (Tier, error) {
	div := otherSettlements + 1
	if div < 1 {
		div = 1
	}
	share := flatTiles / div
	t := Tier((share + 1) / 5)
	if t < 0 || t >= TierCount {
		clamped := t
		if clamped < 0 {
			clamped = 0
		}
		if clamped >= TierCount {
			clamped = TierCount - 1
		}
		return clamped, fmt.Errorf("%w: %d (flat=%d others=%d)", ErrInvalidTier, int(t), flatTiles, otherSettlements)
	}
	return t, nil
}
