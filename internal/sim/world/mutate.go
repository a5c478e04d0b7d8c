package world

import (
	"fmt"

	"terramorph.dev/internal/sim/terrain"
)

// ApplyMutation steps every target vertex up or down by the step height, then
// terraces the surrounding terrain so no edge exceeds one step. Every changed
// vertex and every chunk holding a copy of it is marked dirty; nothing is
// emitted until Flush. The whole region is validated before any mutation: an
// out-of-bounds target is caller misuse and leaves the field untouched.
func (h *Host) ApplyMutation(region []terrain.Location, raise bool) error {
	for _, loc := range region {
		if !h.field.InBounds(loc) {
			return fmt.Errorf("%w: %v", terrain.ErrOutOfBounds, loc)
		}
	}

	changed := 0
	for _, loc := range region {
		cur, err := h.field.HeightAt(loc)
		if err != nil {
			return err
		}
		next := cur + h.cfg.StepHeight
		if !raise {
			next = cur - h.cfg.StepHeight
			if next < 0 {
				next = 0
			}
		}
		if next == cur {
			continue
		}
		h.setVertex(loc, next)
		changed++
		changed += h.terrace(loc)
	}

	h.mutationSeq++
	if h.mutationLog != nil {
		entry := MutationLogEntry{Seq: h.mutationSeq, Targets: len(region), Raise: raise, Changed: changed}
		if err := h.mutationLog.WriteMutation(entry); err != nil {
			h.logf("mutation log: %v", err)
		}
	}
	return nil
}

func (h *Host) setVertex(loc terrain.Location, height int32) {
	_ = h.field.SetHeight(loc, height)
	h.dirty.MarkVertex(loc, height)
	chunks, err := h.field.Chunks(loc)
	if err != nil {
		return
	}
	for _, ci := range chunks {
		h.dirty.MarkChunk(ci)
	}
}

var neighborOffsets = [4]terrain.Location{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

// terrace pulls neighbors toward the origin until every edge is within one
// step, propagating outward. Returns the number of vertices it changed.
func (h *Host) terrace(origin terrain.Location) int {
	step := h.cfg.StepHeight
	changed := 0
	queue := []terrain.Location{origin}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		vh, err := h.field.HeightAt(v)
		if err != nil {
			continue
		}
		for _, d := range neighborOffsets {
			n := terrain.Location{X: v.X + d.X, Z: v.Z + d.Z}
			nh, err := h.field.HeightAt(n)
			if err != nil {
				continue // world edge
			}
			switch {
			case nh > vh+step:
				h.setVertex(n, vh+step)
			case nh < vh-step:
				h.setVertex(n, vh-step)
			default:
				continue
			}
			changed++
			queue = append(queue, n)
		}
	}
	return changed
}
