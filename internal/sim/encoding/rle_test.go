package encoding

import (
	"errors"
	"testing"

	"minefield.gg/internal/sim/tile"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]tile.Tile, 0, 256)
	in = append(in, 1, 1, 1, 2, 2, tile.Revealed|3)
	for i := 0; i < 200; i++ {
		in = append(in, tile.Empty)
	}
	in = append(in, tile.Flag, tile.Revealed, tile.Revealed, tile.Revealed)

	enc := EncodeRLE(in)
	out, err := DecodeRLEString(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_RejectsOversizedRun(t *testing.T) {
	raw := AppendRLE(nil, make([]tile.Tile, 300))
	if _, err := DecodeRLE(raw, 256); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestRLE_RejectsGarbage(t *testing.T) {
	if _, err := DecodeRLE([]byte{0xFF}, 256); err == nil {
		t.Fatalf("truncated varint accepted")
	}
	if _, err := DecodeRLE([]byte{0x80, 0x02, 0x01}, 256); err == nil {
		t.Fatalf("tile value above 255 accepted")
	}
	if _, err := DecodeRLE([]byte{0x01, 0x00}, 256); err == nil {
		t.Fatalf("zero run accepted")
	}
}
