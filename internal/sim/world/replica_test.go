package world

import (
	"encoding/json"
	"errors"
	"testing"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/terrain"
)

// countingRebuilder records mesh rebuild requests.
type countingRebuilder struct {
	chunks []terrain.ChunkIndex
}

func (c *countingRebuilder) RebuildChunk(ci terrain.ChunkIndex) {
	c.chunks = append(c.chunks, ci)
}

func hillyConfig() Config {
	return Config{
		ID:             "test",
		Seed:           1337,
		ChunkWidth:     16,
		ChunkCount:     4,
		StepHeight:     1,
		WaterLevel:     1,
		PlateauRegion:  8,
		PlateauSteps:   4,
		ForestPermille: 60,
		SwampPermille:  25,
		RockPermille:   15,
	}
}

func TestReplica_SameSeedStartsIdentical(t *testing.T) {
	cfg := hillyConfig()
	h := NewHost(cfg)
	r := NewReplica(cfg, nil)
	if h.Field().Digest() != r.Field().Digest() {
		t.Fatalf("freshly generated host and replica differ")
	}
}

func TestReplica_ConvergesUnderMutations(t *testing.T) {
	cfg := hillyConfig()
	h := NewHost(cfg)
	rec := &countingRebuilder{}
	r := NewReplica(cfg, rec)

	regions := [][]terrain.Location{
		{{X: 5, Z: 5}},
		{{X: 16, Z: 16}, {X: 17, Z: 16}},
		{{X: 48, Z: 3}, {X: 48, Z: 4}, {X: 49, Z: 3}},
		{{X: 31, Z: 31}},
	}
	for i, region := range regions {
		raise := i%2 == 0
		if err := h.ApplyMutation(region, raise); err != nil {
			t.Fatalf("ApplyMutation %d: %v", i, err)
		}
		h.Flush()
		for _, raw := range h.DrainOutbound() {
			if err := r.Apply(raw); err != nil {
				t.Fatalf("replica apply: %v", err)
			}
		}
		if h.Field().Digest() != r.Field().Digest() {
			t.Fatalf("digest diverged after batch %d", i)
		}
	}

	if len(rec.chunks) == 0 {
		t.Fatalf("no mesh rebuilds reached the replica")
	}

	// Boundary vertices must agree across every chunk that stores a copy,
	// otherwise adjacent meshes tear apart at the seam.
	f := r.Field()
	w := f.Width()
	for z := 0; z <= w; z += cfg.ChunkWidth {
		for x := 0; x <= w; x++ {
			loc := terrain.Location{X: x, Z: z}
			want, _ := f.HeightAt(loc)
			refs, err := f.Chunks(loc)
			if err != nil {
				t.Fatalf("Chunks(%v): %v", loc, err)
			}
			for _, ci := range refs {
				lx := loc.X - ci.CX*cfg.ChunkWidth
				lz := loc.Z - ci.CZ*cfg.ChunkWidth
				if got := f.Chunk(ci).Height(lx, lz); got != want {
					t.Fatalf("seam at %v: chunk %+v has %d, want %d", loc, ci, got, want)
				}
			}
		}
	}
}

func TestReplica_SettlementMessages(t *testing.T) {
	cfg := flatConfig()
	h := NewHost(cfg)
	r := NewReplica(cfg, nil)

	s, err := h.FoundSettlement(terrain.Location{X: 8, Z: 8}, "red")
	if err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	for _, raw := range h.DrainOutbound() {
		if err := r.Apply(raw); err != nil {
			t.Fatalf("replica apply: %v", err)
		}
	}

	rs, ok := r.Settlement(s.ID)
	if !ok {
		t.Fatalf("settlement missing on replica")
	}
	if rs.Tier != s.Tier || len(rs.Occupied) != len(s.Occupied) {
		t.Fatalf("replica settlement = tier %v occ %d, host = tier %v occ %d",
			rs.Tier, len(rs.Occupied), s.Tier, len(s.Occupied))
	}
	if h.Field().Digest() != r.Field().Digest() {
		t.Fatalf("occupancy diverged after settlement sync")
	}

	if err := h.DamageSettlement(s.ID, 600); err != nil {
		t.Fatalf("DamageSettlement: %v", err)
	}
	for _, raw := range h.DrainOutbound() {
		if err := r.Apply(raw); err != nil {
			t.Fatalf("replica apply: %v", err)
		}
	}
	if _, ok := r.Settlement(s.ID); ok {
		t.Fatalf("destroyed settlement still on replica")
	}
	if h.Field().Digest() != r.Field().Digest() {
		t.Fatalf("ruins diverged after destruction")
	}
}

func TestReplica_OutOfGridReferencesAreFatal(t *testing.T) {
	r := NewReplica(flatConfig(), nil)

	bad := [][]byte{
		mustJSON(t, protocol.VertexUpdateMsg{Type: protocol.TypeVertexUpdate, GlobalX: 999, GlobalZ: 0, Height: 1}),
		mustJSON(t, protocol.VertexUpdateMsg{Type: protocol.TypeVertexUpdate, GlobalX: -1, GlobalZ: 0, Height: 1}),
		mustJSON(t, protocol.ChunkRebuildMsg{Type: protocol.TypeChunkRebuild, ChunkX: 2, ChunkZ: 0}),
		mustJSON(t, protocol.ChunkRebuildMsg{Type: protocol.TypeChunkRebuild, ChunkX: 0, ChunkZ: -1}),
	}
	for i, raw := range bad {
		if err := r.Apply(raw); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("message %d err = %v, want ErrProtocolViolation", i, err)
		}
	}
}

func TestReplica_IgnoresUnknownMessageTypes(t *testing.T) {
	r := NewReplica(flatConfig(), nil)
	if err := r.Apply([]byte(`{"type":"SOMETHING_NEW","protocol_version":"1.0"}`)); err != nil {
		t.Fatalf("unknown type err = %v, want nil", err)
	}
	if err := r.Apply([]byte(`{not json`)); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("malformed json err = %v", err)
	}
}

func TestExportState_SeedsLateJoiner(t *testing.T) {
	cfg := hillyConfig()
	h := NewHost(cfg)

	if err := h.ApplyMutation([]terrain.Location{{X: 10, Z: 10}, {X: 11, Z: 10}}, true); err != nil {
		t.Fatalf("ApplyMutation: %v", err)
	}
	h.Flush()
	h.DrainOutbound()

	root, ok := findBuildable(h.Field())
	if !ok {
		t.Fatalf("no buildable vertex in generated world")
	}
	if _, err := h.FoundSettlement(root, "red"); err != nil {
		t.Fatalf("FoundSettlement: %v", err)
	}
	h.DrainOutbound()

	// The late joiner generated a different world entirely; FULL_STATE must
	// overwrite all of it.
	lateCfg := cfg
	lateCfg.Seed = 9999
	rec := &countingRebuilder{}
	r := NewReplica(lateCfg, rec)

	raw := mustJSON(t, h.ExportState())
	if err := r.Apply(raw); err != nil {
		t.Fatalf("apply full state: %v", err)
	}

	if h.Field().Digest() != r.Field().Digest() {
		t.Fatalf("full state did not converge the replica")
	}
	if want := cfg.ChunkCount * cfg.ChunkCount; len(rec.chunks) != want {
		t.Fatalf("full state rebuilt %d chunks, want %d", len(rec.chunks), want)
	}
}

func TestApplyFullState_DropsStaleOccupancy(t *testing.T) {
	cfg := flatConfig()
	h := NewHost(cfg)
	r := NewReplica(cfg, nil)

	// Leftover replica state: a live settlement the host does not have. The
	// bulk reset must not let its slots survive.
	stale := terrain.Location{X: 8, Z: 8}
	if err := r.Field().SetOccupant(stale, terrain.Slot{Kind: terrain.SlotLive, Settlement: "S1"}); err != nil {
		t.Fatalf("SetOccupant: %v", err)
	}

	if err := r.Apply(mustJSON(t, h.ExportState())); err != nil {
		t.Fatalf("apply full state: %v", err)
	}
	slot, err := r.Field().OccupantAt(stale)
	if err != nil {
		t.Fatalf("OccupantAt: %v", err)
	}
	if slot.Kind != terrain.SlotEmpty {
		t.Fatalf("stale occupancy survived full state: %+v", slot)
	}
	if h.Field().Digest() != r.Field().Digest() {
		t.Fatalf("replica did not converge on the host's state")
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// findBuildable scans for a vertex where a settlement can be founded, staying
// away from the world edge so citadel growth has room.
func findBuildable(f *terrain.Field) (terrain.Location, bool) {
	w := f.Width()
	for z := 4; z <= w-4; z++ {
		for x := 4; x <= w-4; x++ {
			loc := terrain.Location{X: x, Z: z}
			if f.IsBuildable(loc) {
				return loc, true
			}
		}
	}
	return terrain.Location{}, false
}
