package diff

import (
	"errors"
	"testing"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
)

func TestFromUpdates_BoundingBox(t *testing.T) {
	ups := []Update{
		{Pos: geom.Pos{X: -2, Y: 5}, Tile: tile.Revealed | 1},
		{Pos: geom.Pos{X: 3, Y: 7}, Tile: tile.Revealed},
	}
	p, err := FromUpdates(ups, 0)
	if err != nil {
		t.Fatalf("FromUpdates: %v", err)
	}
	if p.Origin != (geom.Pos{X: -2, Y: 5}) || p.W != 6 || p.H != 3 {
		t.Fatalf("bad shape: origin=%v %dx%d", p.Origin, p.W, p.H)
	}
	if p.Count() != 2 {
		t.Fatalf("count=%d want 2", p.Count())
	}
	// A zero tile is a legal changed value distinct from "no change".
	got := p.Updates()
	if len(got) != 2 || got[1].Tile != tile.Revealed || got[1].Pos != (geom.Pos{X: 3, Y: 7}) {
		t.Fatalf("updates=%v", got)
	}
	if err := p.Validate(0); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFromUpdates_ZeroValueStillChanged(t *testing.T) {
	p, err := FromUpdates([]Update{{Pos: geom.Pos{X: 1, Y: 1}, Tile: tile.Empty}}, 0)
	if err != nil {
		t.Fatalf("FromUpdates: %v", err)
	}
	if !p.IsChanged(0) {
		t.Fatalf("zero tile must be marked changed")
	}
}

func TestFromUpdates_TooLarge(t *testing.T) {
	ups := []Update{
		{Pos: geom.Pos{X: 0, Y: 0}, Tile: tile.Revealed},
		{Pos: geom.Pos{X: 1000, Y: 1000}, Tile: tile.Revealed},
	}
	if _, err := FromUpdates(ups, 4096); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	ps := Pack(ups, 4096)
	if len(ps) != 2 {
		t.Fatalf("Pack fallback: got %d patches want 2", len(ps))
	}
	for _, p := range ps {
		if p.Cells() != 1 {
			t.Fatalf("per-chunk patch should be 1x1, got %dx%d", p.W, p.H)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	good := New(geom.Pos{}, 3, 3)
	good.Set(geom.Pos{X: 1, Y: 1}, tile.Revealed|2)

	cases := []struct {
		name string
		mut  func(p *Patch)
	}{
		{"zero width", func(p *Patch) { p.W = 0 }},
		{"short tiles", func(p *Patch) { p.Tiles = p.Tiles[:8] }},
		{"short bitmap", func(p *Patch) { p.Changed = nil }},
		{"adjacency over 8", func(p *Patch) { p.Tiles[4] = tile.Revealed | 9 }},
		{"loading bit", func(p *Patch) { p.Tiles[4] = tile.Revealed | tile.Loading }},
		{"stray bitmap bit", func(p *Patch) { p.Changed[1] |= 0x80 }},
	}
	for _, tc := range cases {
		p := good
		p.Tiles = append([]tile.Tile(nil), good.Tiles...)
		p.Changed = append([]byte(nil), good.Changed...)
		tc.mut(&p)
		if err := p.Validate(0); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if err := good.Validate(0); err != nil {
		t.Fatalf("good patch rejected: %v", err)
	}
}

func TestPublic_HidesUnrevealed(t *testing.T) {
	p := New(geom.Pos{}, 2, 1)
	p.Set(geom.Pos{X: 0, Y: 0}, tile.Mine|tile.Flag|3)
	p.Set(geom.Pos{X: 1, Y: 0}, tile.Revealed|2)
	pub := p.Public()
	if pub.Tiles[0] != tile.Flag {
		t.Fatalf("unrevealed tile leaked: %s", pub.Tiles[0])
	}
	if pub.Tiles[1] != tile.Revealed|2 {
		t.Fatalf("revealed tile altered: %s", pub.Tiles[1])
	}
	if p.Tiles[0] != tile.Mine|tile.Flag|3 {
		t.Fatalf("Public mutated the source patch")
	}
}

func TestPerChunk_SplitsOnBoundaries(t *testing.T) {
	ups := []Update{
		{Pos: geom.Pos{X: 15, Y: 0}, Tile: tile.Revealed},
		{Pos: geom.Pos{X: 16, Y: 0}, Tile: tile.Revealed},
		{Pos: geom.Pos{X: -1, Y: -1}, Tile: tile.Revealed},
	}
	ps := PerChunk(ups)
	if len(ps) != 3 {
		t.Fatalf("got %d patches want 3", len(ps))
	}
	if ps[0].Origin != (geom.Pos{X: -1, Y: -1}) {
		t.Fatalf("order: first origin=%v", ps[0].Origin)
	}
}
