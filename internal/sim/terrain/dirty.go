package terrain

import "sort"

// VertexUpdate is one pending height diff.
type VertexUpdate struct {
	Loc    Location
	Height int32
}

// DirtyTracker accumulates mutated vertices and chunks needing a mesh rebuild
// since the last drain. Last write wins per vertex. Not safe for concurrent
// use; the host mutates and drains from one goroutine.
type DirtyTracker struct {
	verts  map[Location]int32
	chunks map[ChunkIndex]struct{}
}

func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		verts:  map[Location]int32{},
		chunks: map[ChunkIndex]struct{}{},
	}
}

func (d *DirtyTracker) MarkVertex(loc Location, h int32) {
	d.verts[loc] = h
}

func (d *DirtyTracker) MarkChunk(ci ChunkIndex) {
	d.chunks[ci] = struct{}{}
}

func (d *DirtyTracker) Empty() bool {
	return len(d.verts) == 0 && len(d.chunks) == 0
}

// Drain empties both sets and returns their prior contents in deterministic
// order (X then Z for vertices, CX then CZ for chunks). A second immediate
// call returns empty slices.
func (d *DirtyTracker) Drain() ([]VertexUpdate, []ChunkIndex) {
	verts := make([]VertexUpdate, 0, len(d.verts))
	for loc, h := range d.verts {
		verts = append(verts, VertexUpdate{Loc: loc, Height: h})
	}
	sort.Slice(verts, func(i, j int) bool {
		if verts[i].Loc.X != verts[j].Loc.X {
			return verts[i].Loc.X < verts[j].Loc.X
		}
		return verts[i].Loc.Z < verts[j].Loc.Z
	})

	chunks := make([]ChunkIndex, 0, len(d.chunks))
	for ci := range d.chunks {
		chunks = append(chunks, ci)
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].CX != chunks[j].CX {
			return chunks[i].CX < chunks[j].CX
		}
		return chunks[i].CZ < chunks[j].CZ
	})

	d.verts = map[Location]int32{}
	d.chunks = map[ChunkIndex]struct{}{}
	return verts, chunks
}
