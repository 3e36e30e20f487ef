package tilecodec

import (
	"testing"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
)

func sampleChunk() []tile.Tile {
	tiles := make([]tile.Tile, geom.ChunkArea)
	for i := range tiles {
		switch {
		case i%37 == 0:
			tiles[i] = tile.Flag
		case i > 128:
			tiles[i] = tile.Revealed | tile.Tile(i%4)
		}
	}
	return tiles
}

func TestEncodeDecode_AllEncodings(t *testing.T) {
	in := sampleChunk()
	for _, enc := range []string{EncodingRaw, EncodingRLE, EncodingZSTD, EncodingLZ4} {
		data, err := Encode(enc, in)
		if err != nil {
			t.Fatalf("%s encode: %v", enc, err)
		}
		out, err := Decode(enc, data, len(in))
		if err != nil {
			t.Fatalf("%s decode: %v", enc, err)
		}
		for i := range in {
			if out[i] != in[i] {
				t.Fatalf("%s mismatch at %d: %s vs %s", enc, i, out[i], in[i])
			}
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	data, _ := Encode(EncodingRLE, sampleChunk())
	if _, err := Decode(EncodingRLE, data, 100); err == nil {
		t.Fatalf("length mismatch accepted")
	}
	if _, err := Decode(EncodingRLE, "!!not base64!!", 256); err == nil {
		t.Fatalf("bad base64 accepted")
	}
	if _, err := Decode("BROTLI", data, 256); err == nil {
		t.Fatalf("unknown encoding accepted")
	}
	if _, err := Decode(EncodingLZ4, data, 256); err == nil {
		t.Fatalf("non-lz4 payload accepted as LZ4")
	}
	if _, err := Decode(EncodingZSTD, data, 256); err == nil {
		t.Fatalf("non-zstd payload accepted as ZSTD")
	}
}

func TestBitmap(t *testing.T) {
	bits := []byte{0x01, 0x80, 0xFF}
	got, err := DecodeBitmap(EncodeBitmap(bits), 3)
	if err != nil {
		t.Fatalf("DecodeBitmap: %v", err)
	}
	if string(got) != string(bits) {
		t.Fatalf("bitmap=%v", got)
	}
	if _, err := DecodeBitmap(EncodeBitmap(bits), 2); err == nil {
		t.Fatalf("bitmap length mismatch accepted")
	}
}

func TestFrameCache_KeyedByRevision(t *testing.T) {
	fc, err := NewFrameCache(1 << 20)
	if err != nil {
		t.Fatalf("NewFrameCache: %v", err)
	}
	defer fc.Close()

	calls := 0
	tiles := sampleChunk()
	get := func() []tile.Tile { calls++; return tiles }

	a, err := fc.Encode(geom.Pos{X: 16}, 3, EncodingRLE, get)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fc.Wait()
	b, _ := fc.Encode(geom.Pos{X: 16}, 3, EncodingRLE, get)
	if a != b || calls != 1 {
		t.Fatalf("expected cache hit: calls=%d", calls)
	}

	tiles = append([]tile.Tile(nil), tiles...)
	tiles[0] = tile.Revealed
	c, _ := fc.Encode(geom.Pos{X: 16}, 4, EncodingRLE, get)
	if c == a || calls != 2 {
		t.Fatalf("new revision served stale payload: calls=%d", calls)
	}
}

func TestFrameCache_NilPassesThrough(t *testing.T) {
	fc, err := NewFrameCache(0)
	if err != nil || fc != nil {
		t.Fatalf("zero size should return nil cache: %v %v", fc, err)
	}
	if _, err := fc.Encode(geom.Pos{}, 0, EncodingRLE, sampleChunk); err != nil {
		t.Fatalf("nil cache Encode: %v", err)
	}
	if h, m := fc.Metrics(); h != 0 || m != 0 {
		t.Fatalf("nil metrics=%d/%d", h, m)
	}
}
