// Package reveal implements click and chord reveals over a store.
package reveal

import (
	"minefield.gg/internal/sim/diff"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/store"
)

// Scorer is told about every tile a player reveals. It is called
// synchronously from inside the flood and must not touch the store.
type Scorer interface {
	OnTileRevealed(playerID string, adjacent int, hasMine bool)
}

type ScorerFunc func(playerID string, adjacent int, hasMine bool)

func (f ScorerFunc) OnTileRevealed(playerID string, adjacent int, hasMine bool) {
	f(playerID, adjacent, hasMine)
}

type nopScorer struct{}

func (nopScorer) OnTileRevealed(string, int, bool) {}

type Result struct {
	// Updates holds every tile written by the request, in reveal order.
	Updates []diff.Update
	HitMine bool
	// Generated lists chunks whose mines were laid during the request.
	Generated []store.Key
}

func (r Result) Count() int { return len(r.Updates) }

func (r Result) Empty() bool { return len(r.Updates) == 0 }

type Engine struct {
	store  *store.Store
	scorer Scorer
}

func New(s *store.Store, scorer Scorer) *Engine {
	if scorer == nil {
		scorer = nopScorer{}
	}
	return &Engine{store: s, scorer: scorer}
}

// Reveal opens the tile at p and, if it has no adjacent mines, the whole
// connected zero region around it plus its border. Revealed tiles are
// skipped. Flagged tiles are never opened, so a flag on the border of a
// zero region stays hidden and a click on one does nothing.
func (e *Engine) Reveal(playerID string, p geom.Pos) Result {
	if !e.store.InBounds(p) {
		return Result{}
	}
	generated := e.store.EnsureGenerated(p)
	if e.store.GetTile(p).IsFlagged() {
		return Result{Generated: generated}
	}
	res := e.flood(playerID, []geom.Pos{p})
	res.Generated = append(generated, res.Generated...)
	return res
}

// Chord reveals the unflagged neighbours of a revealed number once the
// number of flagged or exploded neighbours matches it.
func (e *Engine) Chord(playerID string, p geom.Pos) Result {
	t := e.store.GetTile(p)
	if !t.IsRevealed() || t.HasMine() || t.Adjacent() == 0 {
		return Result{}
	}
	marked := 0
	var open []geom.Pos
	for _, n := range geom.Neighbors(p) {
		nt := e.store.GetTile(n)
		switch {
		case nt.IsRevealed():
			if nt.HasMine() {
				marked++
			}
		case nt.IsFlagged():
			marked++
		default:
			if e.store.InBounds(n) {
				open = append(open, n)
			}
		}
	}
	if marked != t.Adjacent() || len(open) == 0 {
		return Result{}
	}
	return e.flood(playerID, open)
}

func (e *Engine) flood(playerID string, starts []geom.Pos) Result {
	var res Result
	stack := append([]geom.Pos(nil), starts...)
	visited := make(map[geom.Pos]struct{}, len(starts))

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[p]; ok {
			continue
		}
		visited[p] = struct{}{}
		if !e.store.InBounds(p) {
			continue
		}

		res.Generated = append(res.Generated, e.store.EnsureGenerated(p)...)
		t := e.store.GetTile(p)
		if t.IsRevealed() || t.IsFlagged() {
			continue
		}
		opened := t.WithRevealed()
		if !e.store.UpdateTile(p, opened) {
			continue
		}
		res.Updates = append(res.Updates, diff.Update{Pos: p, Tile: opened})
		e.scorer.OnTileRevealed(playerID, t.Adjacent(), t.HasMine())

		if t.HasMine() {
			res.HitMine = true
			continue
		}
		if t.Adjacent() != 0 {
			continue
		}
		for _, n := range geom.Neighbors(p) {
			if _, ok := visited[n]; ok {
				continue
			}
			if e.store.GetTile(n).IsRevealed() {
				continue
			}
			stack = append(stack, n)
		}
	}
	return res
}

// Exploded lists the mines opened by the request.
func (r Result) Exploded() []geom.Pos {
	var out []geom.Pos
	for _, u := range r.Updates {
		if u.Tile.Exploded() {
			out = append(out, u.Pos)
		}
	}
	return out
}
