package worldtest

import (
	"testing"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/world"
)

var script = []struct {
	typ  string
	x, y int
}{
	{protocol.TypeClick, 0, 0},
	{protocol.TypeClick, 7, -3},
	{protocol.TypeFlag, 12, 12},
	{protocol.TypeClick, -20, 5},
	{protocol.TypeDoubleClick, 0, 0},
	{protocol.TypeClick, 31, 31},
	{protocol.TypeUnflag, 12, 12},
	{protocol.TypeClick, -9, -30},
}

func runScript(t *testing.T, cfg world.WorldConfig) []string {
	t.Helper()
	h := NewHarness(t, cfg)
	s := h.Join("bot")
	h.Query(s, geom.RectFromSize(geom.Pos{X: -32, Y: -32}, 64, 64))
	for _, a := range script {
		// Respawn is shorter than a tick, so a mine never blocks the script.
		h.Act(s, a.typ, a.x, a.y)
	}
	return h.Digests()
}

func TestDeterminism_SameSeedSameDigests(t *testing.T) {
	cfg := world.WorldConfig{TickRateHz: 20, Seed: 42, MinesPerChunk: 40, Respawn: 1}
	d1 := runScript(t, cfg)
	d2 := runScript(t, cfg)
	if len(d1) == 0 || len(d1) != len(d2) {
		t.Fatalf("tick entries: %d vs %d", len(d1), len(d2))
	}
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Fatalf("digest mismatch at entry %d: %s vs %s", i, d1[i], d2[i])
		}
	}
}

func TestDeterminism_SeedChangesLayout(t *testing.T) {
	a := runScript(t, world.WorldConfig{TickRateHz: 20, Seed: 1, MinesPerChunk: 40, Respawn: 1})
	b := runScript(t, world.WorldConfig{TickRateHz: 20, Seed: 2, MinesPerChunk: 40, Respawn: 1})
	same := len(a) == len(b)
	for i := 0; same && i < len(a); i++ {
		same = a[i] == b[i]
	}
	if same {
		t.Fatalf("different seeds produced identical digests")
	}
}
