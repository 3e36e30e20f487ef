package worldtest

import (
	"testing"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
	"minefield.gg/internal/sim/world"
)

// A player that followed every RECT and FLAGGED must end up with the same
// public board as a newcomer that only received CHUNK snapshots.
func TestReplicaMatchesFreshSnapshot(t *testing.T) {
	h := NewHarness(t, world.WorldConfig{TickRateHz: 20, Seed: 7, MinesPerChunk: 30, Respawn: 1})
	view := geom.RectFromSize(geom.Pos{X: -32, Y: -32}, 64, 64)

	a := h.Join("a")
	b := h.Join("b")
	h.Query(a, view)
	h.Query(b, view)

	clicks := []geom.Pos{{X: 0, Y: 0}, {X: 20, Y: -20}, {X: -25, Y: 10}, {X: 5, Y: 25}, {X: -10, Y: -10}}
	for i, p := range clicks {
		who := a
		if i%2 == 1 {
			who = b
		}
		h.Act(who, protocol.TypeClick, p.X, p.Y)
		if f, ok := frontier(a, view); ok {
			h.Act(a, protocol.TypeFlag, f.X, f.Y)
		}
	}
	// Both actions in one tick.
	h.Step(
		world.ActionEnvelope{PlayerID: a.ID, Type: protocol.TypeClick, X: 30, Y: 30},
		world.ActionEnvelope{PlayerID: b.ID, Type: protocol.TypeClick, X: -30, Y: -30},
	)

	c := h.Join("c")
	h.Query(c, view)
	if c.Replica.Len() == 0 {
		t.Fatalf("newcomer received no chunks")
	}

	for _, s := range []*Session{a, b} {
		for _, k := range c.Replica.OverlapRegion(view.Min, view.Max) {
			_, held := s.Replica.GetChunk(k)
			cr := geom.ChunkRect(k)
			for y := cr.Min.Y; y < cr.Max.Y; y++ {
				for x := cr.Min.X; x < cr.Max.X; x++ {
					p := geom.Pos{X: x, Y: y}
					want := c.Replica.GetTile(p)
					got := s.Replica.GetTile(p)
					if !held && want != tile.Empty {
						t.Fatalf("session %s missing chunk %v with visible tile %s at %v", s.ID, k, want, p)
					}
					if held && got != want {
						t.Fatalf("session %s tile %v = %s, snapshot has %s", s.ID, p, got, want)
					}
				}
			}
		}
	}
}

// frontier finds a hidden tile next to a revealed number in a chunk s holds.
func frontier(s *Session, view geom.Rect) (geom.Pos, bool) {
	for _, k := range s.Replica.OverlapRegion(view.Min, view.Max) {
		cr := geom.ChunkRect(k)
		for y := cr.Min.Y; y < cr.Max.Y; y++ {
			for x := cr.Min.X; x < cr.Max.X; x++ {
				p := geom.Pos{X: x, Y: y}
				t := s.Replica.GetTile(p)
				if !t.IsRevealed() || t.Adjacent() == 0 {
					continue
				}
				for _, n := range geom.Neighbors(p) {
					if _, ok := s.Replica.GetChunk(n); !ok || !view.Contains(n) {
						continue
					}
					if nt := s.Replica.GetTile(n); !nt.IsRevealed() && !nt.IsFlagged() {
						return n, true
					}
				}
			}
		}
	}
	return geom.Pos{}, false
}
