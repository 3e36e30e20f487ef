// Package encoding packs tile buffers as varint run-length pairs.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"minefield.gg/internal/sim/tile"
)

var ErrTooLong = errors.New("rle: output exceeds limit")

// AppendRLE appends (tile, run_len) uvarint pairs for tiles to dst.
func AppendRLE(dst []byte, tiles []tile.Tile) []byte {
	buf := bytes.NewBuffer(dst)
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(tiles) {
		t := tiles[i]
		run := 1
		for j := i + 1; j < len(tiles) && tiles[j] == t; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(t))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

// DecodeRLE expands raw pairs. max caps the number of tiles produced so a
// hostile run length cannot allocate without bound.
func DecodeRLE(raw []byte, max int) ([]tile.Tile, error) {
	var out []tile.Tile
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFF {
			return nil, fmt.Errorf("tile value too large: %d", v)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if run > uint64(max-len(out)) {
			return nil, ErrTooLong
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, tile.Tile(v))
		}
	}
	return out, nil
}

// EncodeRLE is AppendRLE wrapped in standard base64.
func EncodeRLE(tiles []tile.Tile) string {
	return base64.StdEncoding.EncodeToString(AppendRLE(nil, tiles))
}

func DecodeRLEString(b64 string, max int) ([]tile.Tile, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return DecodeRLE(raw, max)
}
