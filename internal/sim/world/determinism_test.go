package world

import (
	"testing"

	"terramorph.dev/internal/sim/terrain"
)

func TestDeterminism_FixedMutationsSameDigest(t *testing.T) {
	run := func() string {
		h := NewHost(hillyConfig())
		script := []struct {
			region []terrain.Location
			raise  bool
		}{
			{[]terrain.Location{{X: 8, Z: 8}}, true},
			{[]terrain.Location{{X: 16, Z: 16}, {X: 16, Z: 17}}, true},
			{[]terrain.Location{{X: 8, Z: 8}}, false},
			{[]terrain.Location{{X: 40, Z: 22}}, true},
		}
		for i, step := range script {
			if err := h.ApplyMutation(step.region, step.raise); err != nil {
				t.Fatalf("ApplyMutation %d: %v", i, err)
			}
			h.Flush()
		}
		if root, ok := findBuildable(h.Field()); ok {
			if _, err := h.FoundSettlement(root, "red"); err != nil {
				t.Fatalf("FoundSettlement: %v", err)
			}
		}
		return h.Field().Digest()
	}

	if run() != run() {
		t.Fatalf("identical runs produced different digests")
	}
}
