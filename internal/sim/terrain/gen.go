package terrain

import "terramorph.dev/internal/sim/mathx"

// GenConfig drives deterministic world generation. Heights come out as
// step-aligned plateaus so freshly generated terrain already satisfies the
// step-height rule inside each plateau.
type GenConfig struct {
	Seed          int64
	Step          int32
	PlateauRegion int // tiles per plateau cell
	PlateauSteps  int // distinct plateau levels

	ForestPermille int
	SwampPermille  int
	RockPermille   int
}

const (
	seedMixForest = 0x5e41
	seedMixSwamp  = 0x7a19
	seedMixRock   = 0x3cd7
)

// Generate fills the whole field from the seed. Shared boundary vertices are a
// pure function of their global coordinate, so duplicated copies agree by
// construction.
func Generate(f *Field, cfg GenConfig) {
	region := cfg.PlateauRegion
	if region <= 0 {
		region = 8
	}
	steps := cfg.PlateauSteps
	if steps <= 0 {
		steps = 4
	}
	step := cfg.Step
	if step <= 0 {
		step = 1
	}

	w := f.Width()
	for z := 0; z <= w; z++ {
		for x := 0; x <= w; x++ {
			loc := Location{X: x, Z: z}

			rx := mathx.FloorDiv(x, region)
			rz := mathx.FloorDiv(z, region)
			level := int32(mathx.Hash2(cfg.Seed, rx, rz) % uint64(steps))
			_ = f.SetHeight(loc, level*step)

			var feat Features
			if !f.IsUnderwater(loc) {
				if roll(cfg.Seed^seedMixForest, x, z, cfg.ForestPermille) {
					feat |= FeatForest
				} else if roll(cfg.Seed^seedMixSwamp, x, z, cfg.SwampPermille) {
					feat |= FeatSwamp
				} else if roll(cfg.Seed^seedMixRock, x, z, cfg.RockPermille) {
					feat |= FeatRock
				}
			}
			_ = f.SetFeatures(loc, feat)
		}
	}
}

func roll(seed int64, x, z, permille int) bool {
	if permille <= 0 {
		return false
	}
	return mathx.Hash2(seed, x, z)%1000 < uint64(permille)
}
