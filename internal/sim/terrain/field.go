package terrain

import (
	"errors"
	"fmt"

	"terramorph.dev/internal/sim/mathx"
)

// ErrOutOfBounds is returned when a coordinate leaves the world extent.
// Coordinates are never silently clamped, except the documented edge-inclusive
// clamp in chunk-index mapping.
var ErrOutOfBounds = errors.New("terrain: location out of bounds")

// Field is the chunked height field plus the per-vertex occupancy index.
// Accessed only from the owning simulation goroutine.
type Field struct {
	chunkWidth int // tiles per chunk side
	chunkCount int // chunks per world side
	waterLevel int32

	chunks []*Chunk // row-major, CX fastest
}

func NewField(chunkWidth, chunkCount int, waterLevel int32) *Field {
	f := &Field{
		chunkWidth: chunkWidth,
		chunkCount: chunkCount,
		waterLevel: waterLevel,
		chunks:     make([]*Chunk, chunkCount*chunkCount),
	}
	for cz := 0; cz < chunkCount; cz++ {
		for cx := 0; cx < chunkCount; cx++ {
			f.chunks[cx+cz*chunkCount] = newChunk(cx, cz, chunkWidth)
		}
	}
	return f
}

func (f *Field) ChunkWidth() int   { return f.chunkWidth }
func (f *Field) ChunkCount() int   { return f.chunkCount }
func (f *Field) WaterLevel() int32 { return f.waterLevel }

// Width is the world extent in tiles; valid vertex coordinates are [0, Width]
// inclusive on both axes.
func (f *Field) Width() int { return f.chunkWidth * f.chunkCount }

func (f *Field) InBounds(loc Location) bool {
	w := f.Width()
	return loc.X >= 0 && loc.X <= w && loc.Z >= 0 && loc.Z <= w
}

func (f *Field) ChunkInBounds(ci ChunkIndex) bool {
	return ci.CX >= 0 && ci.CX < f.chunkCount && ci.CZ >= 0 && ci.CZ < f.chunkCount
}

func (f *Field) Chunk(ci ChunkIndex) *Chunk {
	return f.chunks[ci.CX+ci.CZ*f.chunkCount]
}

// ChunkFor maps a global vertex to its owning chunk and the local coordinate
// inside it. Division floors; a coordinate exactly on the world's outer edge
// maps into the last chunk at local chunkWidth instead of one past the grid.
func (f *Field) ChunkFor(loc Location) (ChunkIndex, Local, error) {
	if !f.InBounds(loc) {
		return ChunkIndex{}, Local{}, fmt.Errorf("%w: %v", ErrOutOfBounds, loc)
	}
	cx := mathx.FloorDiv(loc.X, f.chunkWidth)
	cz := mathx.FloorDiv(loc.Z, f.chunkWidth)
	lx := mathx.Mod(loc.X, f.chunkWidth)
	lz := mathx.Mod(loc.Z, f.chunkWidth)
	if cx == f.chunkCount {
		cx, lx = cx-1, f.chunkWidth
	}
	if cz == f.chunkCount {
		cz, lz = cz-1, f.chunkWidth
	}
	return ChunkIndex{CX: cx, CZ: cz}, Local{X: lx, Z: lz}, nil
}

// GlobalFor is the inverse of ChunkFor.
func (f *Field) GlobalFor(ci ChunkIndex, lo Local) Location {
	return Location{X: ci.CX*f.chunkWidth + lo.X, Z: ci.CZ*f.chunkWidth + lo.Z}
}

type copyRef struct {
	ci ChunkIndex
	lo Local
}

// copies lists every chunk-local storage slot holding this vertex: the owner
// plus the west/north/northwest neighbors when the vertex sits on a shared
// boundary. Writing all of them is what keeps the shared-boundary invariant.
func (f *Field) copies(loc Location) ([]copyRef, error) {
	ci, lo, err := f.ChunkFor(loc)
	if err != nil {
		return nil, err
	}
	out := make([]copyRef, 1, 4)
	out[0] = copyRef{ci: ci, lo: lo}
	w := f.chunkWidth
	if lo.X == 0 && ci.CX > 0 {
		out = append(out, copyRef{ci: ChunkIndex{CX: ci.CX - 1, CZ: ci.CZ}, lo: Local{X: w, Z: lo.Z}})
	}
	if lo.Z == 0 && ci.CZ > 0 {
		out = append(out, copyRef{ci: ChunkIndex{CX: ci.CX, CZ: ci.CZ - 1}, lo: Local{X: lo.X, Z: w}})
	}
	if lo.X == 0 && lo.Z == 0 && ci.CX > 0 && ci.CZ > 0 {
		out = append(out, copyRef{ci: ChunkIndex{CX: ci.CX - 1, CZ: ci.CZ - 1}, lo: Local{X: w, Z: w}})
	}
	return out, nil
}

// Chunks returns every chunk whose stored grid contains this vertex.
func (f *Field) Chunks(loc Location) ([]ChunkIndex, error) {
	refs, err := f.copies(loc)
	if err != nil {
		return nil, err
	}
	out := make([]ChunkIndex, len(refs))
	for i, r := range refs {
		out[i] = r.ci
	}
	return out, nil
}

func (f *Field) HeightAt(loc Location) (int32, error) {
	ci, lo, err := f.ChunkFor(loc)
	if err != nil {
		return 0, err
	}
	return f.Chunk(ci).Height(lo.X, lo.Z), nil
}

// SetHeight writes every stored copy of the vertex. It never refuses a value;
// step-height policy is the caller's responsibility.
func (f *Field) SetHeight(loc Location, h int32) error {
	refs, err := f.copies(loc)
	if err != nil {
		return err
	}
	for _, r := range refs {
		f.Chunk(r.ci).setHeight(r.lo.X, r.lo.Z, h)
	}
	return nil
}

func (f *Field) OccupantAt(loc Location) (Slot, error) {
	ci, lo, err := f.ChunkFor(loc)
	if err != nil {
		return Slot{}, err
	}
	return f.Chunk(ci).slot(lo.X, lo.Z), nil
}

func (f *Field) SetOccupant(loc Location, s Slot) error {
	refs, err := f.copies(loc)
	if err != nil {
		return err
	}
	for _, r := range refs {
		f.Chunk(r.ci).setSlot(r.lo.X, r.lo.Z, s)
	}
	return nil
}

func (f *Field) FeaturesAt(loc Location) (Features, error) {
	ci, lo, err := f.ChunkFor(loc)
	if err != nil {
		return 0, err
	}
	return f.Chunk(ci).features(lo.X, lo.Z), nil
}

func (f *Field) SetFeatures(loc Location, feat Features) error {
	refs, err := f.copies(loc)
	if err != nil {
		return err
	}
	for _, r := range refs {
		f.Chunk(r.ci).setFeatures(r.lo.X, r.lo.Z, feat)
	}
	return nil
}

func (f *Field) IsUnderwater(loc Location) bool {
	h, err := f.HeightAt(loc)
	if err != nil {
		return false
	}
	return h < f.waterLevel
}

func (f *Field) IsForest(loc Location) bool { return f.hasFeature(loc, FeatForest) }
func (f *Field) IsSwamp(loc Location) bool  { return f.hasFeature(loc, FeatSwamp) }
func (f *Field) IsRock(loc Location) bool   { return f.hasFeature(loc, FeatRock) }

func (f *Field) hasFeature(loc Location, bit Features) bool {
	feat, err := f.FeaturesAt(loc)
	if err != nil {
		return false
	}
	return feat&bit != 0
}

// IsAccessible reports whether the vertex can be walked on at all.
func (f *Field) IsAccessible(loc Location) bool {
	return f.InBounds(loc) && !f.IsUnderwater(loc) && !f.IsForest(loc)
}

// IsBuildable reports whether new construction may claim the vertex. Ruins
// markers block reuse; live settlements are handled by the growth scan.
func (f *Field) IsBuildable(loc Location) bool {
	if !f.IsAccessible(loc) || f.IsSwamp(loc) || f.IsRock(loc) {
		return false
	}
	s, err := f.OccupantAt(loc)
	if err != nil {
		return false
	}
	return s.Kind == SlotEmpty
}
