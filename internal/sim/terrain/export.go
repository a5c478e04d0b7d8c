package terrain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ExportChunk copies out one chunk's height and feature grids for bulk export
// and snapshots. Occupancy is not exported here; it is re-derived from the
// settlement and ruins lists.
func (f *Field) ExportChunk(ci ChunkIndex) ([]int32, []Features, error) {
	if !f.ChunkInBounds(ci) {
		return nil, nil, fmt.Errorf("%w: chunk %+v", ErrOutOfBounds, ci)
	}
	c := f.Chunk(ci)
	heights := append([]int32(nil), c.Heights...)
	feats := append([]Features(nil), c.flags...)
	return heights, feats, nil
}

// RestoreChunk overwrites one chunk's grids from exported data. Occupancy is
// untouched; callers restoring a whole world reset it with ClearOccupancy and
// reapply slots from settlement state afterwards.
func (f *Field) RestoreChunk(ci ChunkIndex, heights []int32, feats []Features) error {
	if !f.ChunkInBounds(ci) {
		return fmt.Errorf("%w: chunk %+v", ErrOutOfBounds, ci)
	}
	c := f.Chunk(ci)
	want := (f.chunkWidth + 1) * (f.chunkWidth + 1)
	if len(heights) != want || len(feats) != want {
		return fmt.Errorf("terrain: chunk %+v grid size %d/%d, want %d", ci, len(heights), len(feats), want)
	}
	copy(c.Heights, heights)
	copy(c.flags, feats)
	c.dirty = true
	return nil
}

// ClearOccupancy empties every occupancy slot in the field.
func (f *Field) ClearOccupancy() {
	for _, c := range f.chunks {
		for i := range c.slots {
			c.slots[i] = Slot{}
		}
		c.dirty = true
	}
}

// Digest hashes the whole field deterministically, chunk by chunk in grid
// order. Two replicas that applied the same diffs report the same digest.
func (f *Field) Digest() string {
	h := sha256.New()
	for _, c := range f.chunks {
		d := c.Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
