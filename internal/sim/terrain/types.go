package terrain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Location addresses one height-field vertex by global integer coordinates.
type Location struct {
	X int
	Z int
}

func (l Location) String() string { return fmt.Sprintf("(%d,%d)", l.X, l.Z) }

// ChunkIndex identifies one chunk in the fixed chunk grid.
type ChunkIndex struct {
	CX int
	CZ int
}

// Local is a vertex coordinate inside one chunk, in [0, chunkWidth] per axis.
type Local struct {
	X int
	Z int
}

// SettlementID is an ordinal settlement identifier ("S1", "S2", ...).
type SettlementID string

// SlotKind tags one occupancy slot.
type SlotKind uint8

const (
	SlotEmpty SlotKind = iota
	SlotLive
	SlotRuins
)

// Slot is the per-vertex occupancy variant: empty, a live settlement, or the
// marker left behind by a destroyed one.
type Slot struct {
	Kind       SlotKind
	Settlement SettlementID
}

// Features is a per-vertex terrain flag bitmask. Underwater is not a stored
// bit: it is derived from height versus the water level, so deformation that
// raises the seabed reclaims the vertex without flag bookkeeping.
type Features uint8

const (
	FeatForest Features = 1 << iota
	FeatSwamp
	FeatRock
)

// Chunk owns a local (width+1)^2 vertex grid of heights, occupancy slots and
// feature flags. The rightmost/bottommost row and column are numerically
// identical to the leftmost/topmost row and column of the east/south neighbor.
type Chunk struct {
	CX, CZ int

	width   int // tiles per side; vertex grid stride is width+1
	Heights []int32
	slots   []Slot
	flags   []Features

	dirty bool
	hash  [32]byte
}

func newChunk(cx, cz, width int) *Chunk {
	n := (width + 1) * (width + 1)
	return &Chunk{
		CX:      cx,
		CZ:      cz,
		width:   width,
		Heights: make([]int32, n),
		slots:   make([]Slot, n),
		flags:   make([]Features, n),
	}
}

func (c *Chunk) index(x, z int) int {
	// x fastest, then z
	return x + z*(c.width+1)
}

func (c *Chunk) Height(x, z int) int32 {
	return c.Heights[c.index(x, z)]
}

func (c *Chunk) setHeight(x, z int, h int32) {
	i := c.index(x, z)
	if c.Heights[i] == h {
		return
	}
	c.Heights[i] = h
	c.dirty = true
}

func (c *Chunk) slot(x, z int) Slot { return c.slots[c.index(x, z)] }

func (c *Chunk) setSlot(x, z int, s Slot) {
	i := c.index(x, z)
	if c.slots[i] == s {
		return
	}
	c.slots[i] = s
	c.dirty = true
}

func (c *Chunk) features(x, z int) Features { return c.flags[c.index(x, z)] }

func (c *Chunk) setFeatures(x, z int, f Features) {
	i := c.index(x, z)
	if c.flags[i] == f {
		return
	}
	c.flags[i] = f
	c.dirty = true
}

// Digest hashes heights, occupancy and flags deterministically. Used by
// determinism checks and the state digest.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [4]byte
		for i, v := range c.Heights {
			binary.LittleEndian.PutUint32(tmp[:], uint32(v))
			h.Write(tmp[:])
			h.Write([]byte{byte(c.slots[i].Kind), byte(c.flags[i])})
			h.Write([]byte(c.slots[i].Settlement))
			h.Write([]byte{0})
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
