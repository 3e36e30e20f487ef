package spatial

import (
	"testing"

	"minefield.gg/internal/sim/geom"
)

func TestQuadtree_InsertOnce(t *testing.T) {
	q := NewQuadtree()
	p := geom.Pos{X: 16, Y: -32}
	if !q.Insert(p) {
		t.Fatalf("first insert should report new")
	}
	if q.Insert(p) {
		t.Fatalf("second insert should report duplicate")
	}
	if q.Len() != 1 {
		t.Fatalf("len=%d want 1", q.Len())
	}
}

func TestQuadtree_QueryHalfOpen(t *testing.T) {
	q := NewQuadtree()
	for y := -64; y < 64; y += 16 {
		for x := -64; x < 64; x += 16 {
			q.Insert(geom.Pos{X: x, Y: y})
		}
	}
	got := q.Query(geom.Pos{X: 0, Y: 0}, geom.Pos{X: 32, Y: 32})
	want := []geom.Pos{{X: 0, Y: 0}, {X: 16, Y: 0}, {X: 0, Y: 16}, {X: 16, Y: 16}}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	// Max edge is exclusive.
	if got := q.Query(geom.Pos{X: 0, Y: 0}, geom.Pos{X: 16, Y: 16}); len(got) != 1 {
		t.Fatalf("expected exactly origin, got %v", got)
	}
	if got := q.Query(geom.Pos{X: 5, Y: 5}, geom.Pos{X: 5, Y: 50}); got != nil {
		t.Fatalf("empty box should return nil, got %v", got)
	}
}

func TestQuadtree_GrowsOutward(t *testing.T) {
	q := NewQuadtree()
	pts := []geom.Pos{
		{X: 0, Y: 0},
		{X: 1 << 20, Y: 0},
		{X: -(1 << 22), Y: 1 << 18},
		{X: 48, Y: -(1 << 24)},
	}
	for _, p := range pts {
		if !q.Insert(p) {
			t.Fatalf("insert %v failed", p)
		}
	}
	for _, p := range pts {
		if !q.Contains(p) {
			t.Fatalf("missing %v after growth", p)
		}
	}
	got := q.Query(geom.Pos{X: -(1 << 30), Y: -(1 << 30)}, geom.Pos{X: 1 << 30, Y: 1 << 30})
	if len(got) != len(pts) {
		t.Fatalf("query all: got %d want %d", len(got), len(pts))
	}
}

func TestQuadtree_MatchesBruteForce(t *testing.T) {
	q := NewQuadtree()
	var all []geom.Pos
	for i := 0; i < 500; i++ {
		h := geom.Hash2(7, i, -i)
		p := geom.Pos{X: (int(h%257) - 128) * 16, Y: (int((h>>16)%257) - 128) * 16}
		if q.Insert(p) {
			all = append(all, p)
		}
	}
	box := geom.Rect{Min: geom.Pos{X: -300, Y: -700}, Max: geom.Pos{X: 900, Y: 160}}
	want := 0
	for _, p := range all {
		if box.Contains(p) {
			want++
		}
	}
	if got := q.Query(box.Min, box.Max); len(got) != want {
		t.Fatalf("got %d points want %d", len(got), want)
	}
}
