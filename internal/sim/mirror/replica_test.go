package mirror

import (
	"encoding/json"
	"testing"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/diff"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/tile"
)

func chunkMsg(t *testing.T, origin geom.Pos, tiles []tile.Tile) []byte {
	t.Helper()
	data, err := tilecodec.Encode(tilecodec.EncodingRLE, tiles)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, _ := json.Marshal(protocol.ChunkMsg{Type: protocol.TypeChunk, X: origin.X, Y: origin.Y, Encoding: tilecodec.EncodingRLE, Data: data})
	return raw
}

func rectMsg(t *testing.T, p diff.Patch) []byte {
	t.Helper()
	data, err := tilecodec.Encode(tilecodec.EncodingZSTD, p.Tiles)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, _ := json.Marshal(protocol.RectMsg{
		Type: protocol.TypeRect, X: p.Origin.X, Y: p.Origin.Y, W: p.W, H: p.H,
		Encoding: tilecodec.EncodingZSTD, Data: data, Changed: tilecodec.EncodeBitmap(p.Changed),
	})
	return raw
}

func TestReplica_RectIdempotent(t *testing.T) {
	r := NewReplica(0)
	if _, err := r.Apply(chunkMsg(t, geom.Pos{}, make([]tile.Tile, geom.ChunkArea))); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	r.TakeDirty()

	p, _ := diff.FromUpdates([]diff.Update{
		{Pos: geom.Pos{X: 2, Y: 2}, Tile: tile.Revealed},
		{Pos: geom.Pos{X: 4, Y: 3}, Tile: tile.Revealed | 1},
	}, 0)
	raw := rectMsg(t, p)
	if _, err := r.Apply(raw); err != nil {
		t.Fatalf("rect: %v", err)
	}
	if got := r.TakeDirty(); len(got) != 1 {
		t.Fatalf("dirty=%v", got)
	}
	c, _ := r.GetChunk(geom.Pos{})
	before := c.Tiles()
	if _, err := r.Apply(raw); err != nil {
		t.Fatalf("rect again: %v", err)
	}
	after := c.Tiles()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("tile %d changed on reapply", i)
		}
	}
	if got := r.TakeDirty(); got != nil {
		t.Fatalf("reapply marked dirty: %v", got)
	}
	if r.GetTile(geom.Pos{X: 3, Y: 2}) != tile.Empty {
		t.Fatalf("unchanged cell written")
	}
}

func TestReplica_FlagEventsAppliedOnce(t *testing.T) {
	r := NewReplica(0)
	r.Apply(chunkMsg(t, geom.Pos{}, make([]tile.Tile, geom.ChunkArea)))
	flag, _ := json.Marshal(protocol.FlagMsg{Type: protocol.TypeFlagged, PlayerID: "p", X: 1, Y: 1})
	unflag, _ := json.Marshal(protocol.FlagMsg{Type: protocol.TypeUnflagged, PlayerID: "p", X: 1, Y: 1})

	r.Apply(flag)
	if !r.GetTile(geom.Pos{X: 1, Y: 1}).IsFlagged() {
		t.Fatalf("flag not applied")
	}
	r.Apply(unflag)
	if r.GetTile(geom.Pos{X: 1, Y: 1}).IsFlagged() {
		t.Fatalf("unflag not applied")
	}
	// Flag on a chunk the replica never received is dropped.
	far, _ := json.Marshal(protocol.FlagMsg{Type: protocol.TypeFlagged, PlayerID: "p", X: 100, Y: 100})
	r.Apply(far)
	if r.Len() != 1 {
		t.Fatalf("flag event created a chunk")
	}
}

func TestReplica_RectOnUnknownChunkIgnored(t *testing.T) {
	r := NewReplica(0)
	p, _ := diff.FromUpdates([]diff.Update{{Pos: geom.Pos{X: 40, Y: 40}, Tile: tile.Revealed}}, 0)
	if _, err := r.Apply(rectMsg(t, p)); err != nil {
		t.Fatalf("rect: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("rect created a chunk")
	}
	if keys := r.QueryRegion(geom.Pos{X: -100, Y: -100}, geom.Pos{X: 100, Y: 100}); len(keys) != 0 {
		t.Fatalf("query returned %v", keys)
	}
}

func TestReplica_FatalRect(t *testing.T) {
	r := NewReplica(0)
	r.Apply(chunkMsg(t, geom.Pos{}, make([]tile.Tile, geom.ChunkArea)))
	p, _ := diff.FromUpdates([]diff.Update{{Pos: geom.Pos{X: 5, Y: 5}, Tile: tile.Revealed | tile.Mine}}, 0)
	got, err := r.Apply(rectMsg(t, p))
	if err != nil || !got.Fatal {
		t.Fatalf("fatal=%v err=%v", got.Fatal, err)
	}
}

func TestReplica_RejectsMalformed(t *testing.T) {
	r := NewReplica(64)
	r.Apply(chunkMsg(t, geom.Pos{}, make([]tile.Tile, geom.ChunkArea)))
	r.TakeDirty()

	p, _ := diff.FromUpdates([]diff.Update{{Pos: geom.Pos{X: 1, Y: 1}, Tile: tile.Revealed}}, 0)
	data, _ := tilecodec.Encode(tilecodec.EncodingRLE, p.Tiles)
	cases := []protocol.RectMsg{
		// Bitmap too short.
		{Type: protocol.TypeRect, X: 1, Y: 1, W: 1, H: 1, Encoding: "RLE", Data: data, Changed: ""},
		// Dimensions disagree with payload.
		{Type: protocol.TypeRect, X: 1, Y: 1, W: 2, H: 1, Encoding: "RLE", Data: data, Changed: "AQ=="},
		// Above the cell cap.
		{Type: protocol.TypeRect, X: 0, Y: 0, W: 100, H: 100, Encoding: "RLE", Data: data, Changed: "AQ=="},
	}
	for i, m := range cases {
		raw, _ := json.Marshal(m)
		if _, err := r.Apply(raw); err == nil {
			t.Fatalf("case %d accepted", i)
		}
	}
	// Adjacency above 8.
	bad, _ := tilecodec.Encode(tilecodec.EncodingRaw, []tile.Tile{tile.Revealed | 9})
	raw, _ := json.Marshal(protocol.RectMsg{Type: protocol.TypeRect, X: 1, Y: 1, W: 1, H: 1, Encoding: "RAW", Data: bad, Changed: "AQ=="})
	if _, err := r.Apply(raw); err == nil {
		t.Fatalf("invalid tile accepted")
	}
	if got := r.TakeDirty(); got != nil {
		t.Fatalf("malformed messages touched state: %v", got)
	}
}

func TestReplica_Players(t *testing.T) {
	r := NewReplica(0)
	pm, _ := json.Marshal(protocol.PlayerMsg{Type: protocol.TypePlayer, PlayerID: "p1", Name: "a", Connected: true})
	r.Apply(pm)
	dm, _ := json.Marshal(protocol.DisconnectedMsg{Type: protocol.TypeDisconnected, PlayerID: "p1"})
	r.Apply(dm)
	p, ok := r.Player("p1")
	if !ok || p.Connected {
		t.Fatalf("player=%+v ok=%v", p, ok)
	}
}
