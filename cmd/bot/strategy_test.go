package main

import (
	"math/rand"
	"testing"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/mirror"
	"minefield.gg/internal/sim/tile"
)

// replicaWith builds a replica holding chunk (0,0): every tile revealed and
// empty except the overrides.
func replicaWith(t *testing.T, overrides map[geom.Pos]tile.Tile) *mirror.Replica {
	t.Helper()
	tiles := make([]tile.Tile, geom.ChunkArea)
	for i := range tiles {
		tiles[i] = tile.Empty.WithRevealed()
	}
	for p, v := range overrides {
		tiles[p.Y*geom.ChunkSize+p.X] = v
	}
	data, err := tilecodec.Encode(tilecodec.EncodingRaw, tiles)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r := mirror.NewReplica(0)
	if err := r.ApplyChunk(protocol.ChunkMsg{Type: protocol.TypeChunk, Encoding: tilecodec.EncodingRaw, Data: data}); err != nil {
		t.Fatalf("ApplyChunk: %v", err)
	}
	return r
}

func newPlanner() *planner {
	return &planner{rng: rand.New(rand.NewSource(1)), view: geom.ChunkRect(geom.Pos{})}
}

func TestPlannerFlagsForcedMine(t *testing.T) {
	r := replicaWith(t, map[geom.Pos]tile.Tile{
		{X: 1, Y: 1}: tile.Empty.WithRevealed().WithAdjacent(1),
		{X: 2, Y: 2}: tile.Empty,
	})
	m, ok := newPlanner().next(r)
	if !ok || m.Type != protocol.TypeFlag || m.At != (geom.Pos{X: 2, Y: 2}) {
		t.Fatalf("move=%+v ok=%v", m, ok)
	}
}

func TestPlannerChordsSatisfiedNumber(t *testing.T) {
	r := replicaWith(t, map[geom.Pos]tile.Tile{
		{X: 1, Y: 1}: tile.Empty.WithRevealed().WithAdjacent(1),
		{X: 2, Y: 2}: tile.Empty.WithFlag(),
		{X: 0, Y: 0}: tile.Empty,
	})
	m, ok := newPlanner().next(r)
	if !ok || m.Type != protocol.TypeDoubleClick || m.At != (geom.Pos{X: 1, Y: 1}) {
		t.Fatalf("move=%+v ok=%v", m, ok)
	}
}

func TestPlannerGuessesFrontier(t *testing.T) {
	r := replicaWith(t, map[geom.Pos]tile.Tile{
		{X: 5, Y: 5}: tile.Empty.WithRevealed().WithAdjacent(2),
		{X: 6, Y: 6}: tile.Empty,
		{X: 6, Y: 5}: tile.Empty,
		{X: 6, Y: 4}: tile.Empty,
	})
	m, ok := newPlanner().next(r)
	if !ok || m.Type != protocol.TypeClick {
		t.Fatalf("move=%+v ok=%v", m, ok)
	}
	if m.At.X != 6 || m.At.Y < 4 || m.At.Y > 6 {
		t.Fatalf("guess %v is not on the frontier", m.At)
	}
}

func TestPlannerEmptyReplicaGuessesInView(t *testing.T) {
	p := newPlanner()
	m, ok := p.next(mirror.NewReplica(0))
	if !ok || m.Type != protocol.TypeClick || !p.view.Contains(m.At) {
		t.Fatalf("move=%+v ok=%v", m, ok)
	}
}
