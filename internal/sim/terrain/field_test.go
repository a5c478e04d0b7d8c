package terrain

import (
	"errors"
	"testing"
)

func TestChunkFor_RoundTripAllVertices(t *testing.T) {
	f := NewField(16, 4, 0)
	w := f.Width()
	for z := 0; z <= w; z++ {
		for x := 0; x <= w; x++ {
			loc := Location{X: x, Z: z}
			ci, lo, err := f.ChunkFor(loc)
			if err != nil {
				t.Fatalf("ChunkFor(%v): %v", loc, err)
			}
			if !f.ChunkInBounds(ci) {
				t.Fatalf("ChunkFor(%v) left the grid: %+v", loc, ci)
			}
			if lo.X < 0 || lo.X > 16 || lo.Z < 0 || lo.Z > 16 {
				t.Fatalf("ChunkFor(%v) local out of range: %+v", loc, lo)
			}
			if back := f.GlobalFor(ci, lo); back != loc {
				t.Fatalf("GlobalFor(ChunkFor(%v)) = %v", loc, back)
			}
		}
	}
}

func TestChunkFor_EdgeClampsIntoLastChunk(t *testing.T) {
	f := NewField(16, 4, 0)
	w := f.Width()

	ci, lo, err := f.ChunkFor(Location{X: w, Z: w})
	if err != nil {
		t.Fatalf("ChunkFor edge: %v", err)
	}
	if ci != (ChunkIndex{CX: 3, CZ: 3}) {
		t.Fatalf("edge chunk = %+v, want {3 3}", ci)
	}
	if lo != (Local{X: 16, Z: 16}) {
		t.Fatalf("edge local = %+v, want {16 16}", lo)
	}
}

func TestChunkFor_OutOfBounds(t *testing.T) {
	f := NewField(16, 4, 0)
	for _, loc := range []Location{{X: -1}, {Z: -1}, {X: 65}, {Z: 65}, {X: -1, Z: -1}} {
		if _, _, err := f.ChunkFor(loc); !errors.Is(err, ErrOutOfBounds) {
			t.Fatalf("ChunkFor(%v) err = %v, want ErrOutOfBounds", loc, err)
		}
	}
	if err := f.SetHeight(Location{X: 65, Z: 0}, 3); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("SetHeight out of bounds err = %v", err)
	}
}

func TestChunks_BoundaryFanOut(t *testing.T) {
	f := NewField(16, 4, 0)

	cases := []struct {
		loc  Location
		want []ChunkIndex
	}{
		{Location{X: 5, Z: 5}, []ChunkIndex{{0, 0}}},
		{Location{X: 16, Z: 5}, []ChunkIndex{{1, 0}, {0, 0}}},
		{Location{X: 5, Z: 16}, []ChunkIndex{{0, 1}, {0, 0}}},
		{Location{X: 16, Z: 16}, []ChunkIndex{{1, 1}, {0, 1}, {1, 0}, {0, 0}}},
		// World edges have no neighbor on the far side.
		{Location{X: 0, Z: 5}, []ChunkIndex{{0, 0}}},
		{Location{X: 0, Z: 0}, []ChunkIndex{{0, 0}}},
		{Location{X: 64, Z: 5}, []ChunkIndex{{3, 0}}},
	}
	for _, tc := range cases {
		got, err := f.Chunks(tc.loc)
		if err != nil {
			t.Fatalf("Chunks(%v): %v", tc.loc, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("Chunks(%v) = %v, want %v", tc.loc, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("Chunks(%v) = %v, want %v", tc.loc, got, tc.want)
			}
		}
	}
}

func TestSetHeight_WritesEveryCopy(t *testing.T) {
	f := NewField(16, 4, 0)

	// Interior corner shared by four chunks.
	loc := Location{X: 16, Z: 16}
	if err := f.SetHeight(loc, 7); err != nil {
		t.Fatalf("SetHeight: %v", err)
	}

	reads := []struct {
		ci ChunkIndex
		lo Local
	}{
		{ChunkIndex{1, 1}, Local{0, 0}},
		{ChunkIndex{0, 1}, Local{16, 0}},
		{ChunkIndex{1, 0}, Local{0, 16}},
		{ChunkIndex{0, 0}, Local{16, 16}},
	}
	for _, r := range reads {
		if h := f.Chunk(r.ci).Height(r.lo.X, r.lo.Z); h != 7 {
			t.Fatalf("chunk %+v local %+v height = %d, want 7", r.ci, r.lo, h)
		}
	}

	if h, err := f.HeightAt(loc); err != nil || h != 7 {
		t.Fatalf("HeightAt(%v) = %d, %v", loc, h, err)
	}
}

func TestAccessibilityAndBuildability(t *testing.T) {
	f := NewField(16, 2, 1)
	loc := Location{X: 4, Z: 4}

	// Height 0 with water level 1: underwater.
	if f.IsAccessible(loc) {
		t.Fatalf("underwater vertex reported accessible")
	}
	if f.IsBuildable(loc) {
		t.Fatalf("underwater vertex reported buildable")
	}

	// Raising the seabed above the water line reclaims it.
	if err := f.SetHeight(loc, 1); err != nil {
		t.Fatalf("SetHeight: %v", err)
	}
	if !f.IsAccessible(loc) || !f.IsBuildable(loc) {
		t.Fatalf("dry vertex should be accessible and buildable")
	}

	if err := f.SetFeatures(loc, FeatForest); err != nil {
		t.Fatalf("SetFeatures: %v", err)
	}
	if f.IsAccessible(loc) {
		t.Fatalf("forest vertex reported accessible")
	}

	if err := f.SetFeatures(loc, FeatSwamp); err != nil {
		t.Fatalf("SetFeatures: %v", err)
	}
	if !f.IsAccessible(loc) {
		t.Fatalf("swamp vertex should stay accessible")
	}
	if f.IsBuildable(loc) {
		t.Fatalf("swamp vertex reported buildable")
	}

	if err := f.SetFeatures(loc, FeatRock); err != nil {
		t.Fatalf("SetFeatures: %v", err)
	}
	if f.IsBuildable(loc) {
		t.Fatalf("rock vertex reported buildable")
	}

	if err := f.SetFeatures(loc, 0); err != nil {
		t.Fatalf("SetFeatures: %v", err)
	}
	if err := f.SetOccupant(loc, Slot{Kind: SlotRuins, Settlement: "S1"}); err != nil {
		t.Fatalf("SetOccupant: %v", err)
	}
	if f.IsBuildable(loc) {
		t.Fatalf("ruins vertex reported buildable")
	}
}

func TestGenerate_BoundaryCopiesAgree(t *testing.T) {
	f := NewField(16, 4, 1)
	Generate(f, GenConfig{Seed: 1337, Step: 1, PlateauRegion: 8, PlateauSteps: 4, ForestPermille: 60, SwampPermille: 25, RockPermille: 15})

	w := f.Width()
	for z := 0; z <= w; z++ {
		for x := 0; x <= w; x++ {
			loc := Location{X: x, Z: z}
			refs, err := f.Chunks(loc)
			if err != nil {
				t.Fatalf("Chunks(%v): %v", loc, err)
			}
			if len(refs) < 2 {
				continue
			}
			want, _ := f.HeightAt(loc)
			for _, ci := range refs {
				lx := loc.X - ci.CX*16
				lz := loc.Z - ci.CZ*16
				if got := f.Chunk(ci).Height(lx, lz); got != want {
					t.Fatalf("vertex %v copy in %+v = %d, want %d", loc, ci, got, want)
				}
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	mk := func(seed int64) *Field {
		f := NewField(16, 4, 1)
		Generate(f, GenConfig{Seed: seed, Step: 1, PlateauRegion: 8, PlateauSteps: 4, ForestPermille: 60, SwampPermille: 25, RockPermille: 15})
		return f
	}
	if mk(42).Digest() != mk(42).Digest() {
		t.Fatalf("same seed produced different fields")
	}
	if mk(42).Digest() == mk(43).Digest() {
		t.Fatalf("different seeds produced identical fields")
	}
}
