package store

import (
	"lukechampine.com/blake3"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
)

// Key identifies a chunk by its origin.
type Key = geom.Pos

type Chunk struct {
	Origin geom.Pos
	tiles  [geom.ChunkArea]tile.Tile

	rev       uint64
	generated bool
}

func newChunk(origin geom.Pos) *Chunk {
	return &Chunk{Origin: origin}
}

// IndexOf maps a world coordinate to its local index, or -1 if p lies
// outside this chunk.
func (c *Chunk) IndexOf(p geom.Pos) int {
	lx := p.X - c.Origin.X
	ly := p.Y - c.Origin.Y
	if lx < 0 || ly < 0 || lx >= geom.ChunkSize || ly >= geom.ChunkSize {
		return -1
	}
	return ly*geom.ChunkSize + lx
}

// CoordsOf is the inverse of IndexOf. i is not checked.
func (c *Chunk) CoordsOf(i int) geom.Pos {
	return c.Origin.Add(i%geom.ChunkSize, i/geom.ChunkSize)
}

func (c *Chunk) Get(p geom.Pos) (tile.Tile, bool) {
	i := c.IndexOf(p)
	if i < 0 {
		return tile.Empty, false
	}
	return c.tiles[i], true
}

// Set writes t at p and reports whether the stored value changed. Writes
// outside the chunk are ignored.
func (c *Chunk) Set(p geom.Pos, t tile.Tile) bool {
	i := c.IndexOf(p)
	if i < 0 {
		return false
	}
	return c.setAt(i, t)
}

func (c *Chunk) At(i int) tile.Tile { return c.tiles[i] }

func (c *Chunk) setAt(i int, t tile.Tile) bool {
	if c.tiles[i] == t {
		return false
	}
	c.tiles[i] = t
	c.rev++
	return true
}

// Rev increases on every write.
func (c *Chunk) Rev() uint64 { return c.rev }

// Generated reports whether mines have been laid in this chunk.
func (c *Chunk) Generated() bool { return c.generated }

// Tiles returns a copy of the tile buffer.
func (c *Chunk) Tiles() []tile.Tile {
	out := make([]tile.Tile, geom.ChunkArea)
	copy(out, c.tiles[:])
	return out
}

// Public returns the tile buffer as observers may see it.
func (c *Chunk) Public() []tile.Tile {
	return tile.PublicSlice(make([]tile.Tile, geom.ChunkArea), c.tiles[:])
}

// Digest hashes the raw tiles, hidden mines included.
func (c *Chunk) Digest() [32]byte {
	buf := make([]byte, geom.ChunkArea)
	for i, t := range c.tiles {
		buf[i] = byte(t)
	}
	return blake3.Sum256(buf)
}
