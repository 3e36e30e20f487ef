package main

import (
	"math/rand"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/mirror"
)

type move struct {
	Type string
	At   geom.Pos
}

// planner looks at the replica and picks the next action. Certain moves
// (flags and chords deduced from a number) win over guesses.
type planner struct {
	rng  *rand.Rand
	view geom.Rect
}

func (p *planner) next(r *mirror.Replica) (move, bool) {
	var frontier []geom.Pos
	seen := map[geom.Pos]bool{}

	for _, k := range r.OverlapRegion(p.view.Min, p.view.Max) {
		cr := geom.ChunkRect(k)
		for y := cr.Min.Y; y < cr.Max.Y; y++ {
			for x := cr.Min.X; x < cr.Max.X; x++ {
				at := geom.Pos{X: x, Y: y}
				t := r.GetTile(at)
				if !t.IsRevealed() || t.HasMine() || t.Adjacent() == 0 {
					continue
				}
				var hidden []geom.Pos
				marked := 0
				for _, n := range geom.Neighbors(at) {
					if _, ok := r.GetChunk(geom.ChunkOrigin(n)); !ok {
						continue
					}
					nt := r.GetTile(n)
					switch {
					case nt.IsFlagged() || nt.Exploded():
						marked++
					case !nt.IsRevealed():
						hidden = append(hidden, n)
					}
				}
				if len(hidden) == 0 {
					continue
				}
				if marked == t.Adjacent() {
					return move{Type: protocol.TypeDoubleClick, At: at}, true
				}
				if marked+len(hidden) == t.Adjacent() {
					return move{Type: protocol.TypeFlag, At: hidden[0]}, true
				}
				for _, h := range hidden {
					if p.view.Contains(h) && !seen[h] {
						seen[h] = true
						frontier = append(frontier, h)
					}
				}
			}
		}
	}

	if len(frontier) > 0 {
		return move{Type: protocol.TypeClick, At: frontier[p.rng.Intn(len(frontier))]}, true
	}
	if p.view.Empty() {
		return move{}, false
	}
	// Nothing known yet: guess anywhere in view.
	at := geom.Pos{
		X: p.view.Min.X + p.rng.Intn(p.view.Width()),
		Y: p.view.Min.Y + p.rng.Intn(p.view.Height()),
	}
	if t := r.GetTile(at); t.IsRevealed() || t.IsFlagged() {
		return move{}, false
	}
	return move{Type: protocol.TypeClick, At: at}, true
}
