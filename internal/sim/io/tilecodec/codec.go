// Package tilecodec turns tile buffers and changed bitmaps into wire
// payloads.
package tilecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"minefield.gg/internal/sim/encoding"
	"minefield.gg/internal/sim/tile"
)

const (
	EncodingRaw  = "RAW"
	EncodingRLE  = "RLE"
	EncodingZSTD = "ZSTD"
	EncodingLZ4  = "LZ4"
)

// maxDecoded caps zstd output per payload.
const maxDecoded = 4 << 20

func Known(enc string) bool {
	switch enc {
	case EncodingRaw, EncodingRLE, EncodingZSTD, EncodingLZ4:
		return true
	}
	return false
}

var (
	encOnce sync.Once
	zenc    *zstd.Encoder
	zdec    *zstd.Decoder
	zerr    error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	encOnce.Do(func() {
		zenc, zerr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zerr != nil {
			return
		}
		zdec, zerr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded), zstd.WithDecoderConcurrency(0))
	})
	return zenc, zdec, zerr
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))
	return io.ReadAll(io.LimitReader(zr, maxDecoded))
}

// Encode returns base64 of tiles in the requested encoding. ZSTD and LZ4
// wrap the RLE stream.
func Encode(enc string, tiles []tile.Tile) (string, error) {
	switch enc {
	case EncodingRaw:
		raw := make([]byte, len(tiles))
		for i, t := range tiles {
			raw[i] = byte(t)
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	case EncodingRLE:
		return encoding.EncodeRLE(tiles), nil
	case EncodingZSTD:
		e, _, err := zstdCodecs()
		if err != nil {
			return "", err
		}
		packed := e.EncodeAll(encoding.AppendRLE(nil, tiles), nil)
		return base64.StdEncoding.EncodeToString(packed), nil
	case EncodingLZ4:
		packed, err := compressLZ4(encoding.AppendRLE(nil, tiles))
		if err != nil {
			return "", fmt.Errorf("tilecodec: lz4: %w", err)
		}
		return base64.StdEncoding.EncodeToString(packed), nil
	}
	return "", fmt.Errorf("tilecodec: unknown encoding %q", enc)
}

// Decode reverses Encode and requires exactly n tiles.
func Decode(enc, data string, n int) ([]tile.Tile, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("tilecodec: %w", err)
	}
	var out []tile.Tile
	switch enc {
	case EncodingRaw:
		out = make([]tile.Tile, len(raw))
		for i, b := range raw {
			out[i] = tile.Tile(b)
		}
	case EncodingRLE:
		out, err = encoding.DecodeRLE(raw, n)
	case EncodingZSTD:
		_, d, zerr := zstdCodecs()
		if zerr != nil {
			return nil, zerr
		}
		var rle []byte
		rle, err = d.DecodeAll(raw, nil)
		if err == nil {
			out, err = encoding.DecodeRLE(rle, n)
		}
	case EncodingLZ4:
		var rle []byte
		rle, err = decompressLZ4(raw)
		if err == nil {
			out, err = encoding.DecodeRLE(rle, n)
		}
	default:
		return nil, fmt.Errorf("tilecodec: unknown encoding %q", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("tilecodec: decode %s: %w", enc, err)
	}
	if len(out) != n {
		return nil, fmt.Errorf("tilecodec: got %d tiles want %d", len(out), n)
	}
	return out, nil
}

func EncodeBitmap(bits []byte) string {
	return base64.StdEncoding.EncodeToString(bits)
}

// DecodeBitmap requires exactly n bytes.
func DecodeBitmap(data string, n int) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("tilecodec: bitmap: %w", err)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("tilecodec: bitmap len=%d want %d", len(raw), n)
	}
	return raw, nil
}
