// Package store holds the chunked minefield and every operation that crosses
// a chunk boundary.
package store

import (
	"fmt"
	"sort"

	"minefield.gg/internal/sim/diff"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/spatial"
	"minefield.gg/internal/sim/tile"
)

type Options struct {
	// CreateOnWrite materializes absent chunks on write. The authority sets
	// it; replicas leave it off and only materialize chunks via InsertChunk.
	CreateOnWrite bool

	// Bounds limits the playable area. The zero Rect means unbounded.
	Bounds geom.Rect

	Seed          int64
	MinesPerChunk int
}

type Store struct {
	opts   Options
	chunks map[Key]*Chunk
	index  *spatial.Quadtree
	dirty  map[Key]struct{}
}

func New(opts Options) *Store {
	if opts.MinesPerChunk > geom.ChunkArea {
		opts.MinesPerChunk = geom.ChunkArea
	}
	return &Store{
		opts:   opts,
		chunks: map[Key]*Chunk{},
		index:  spatial.NewQuadtree(),
		dirty:  map[Key]struct{}{},
	}
}

func (s *Store) Options() Options { return s.opts }

func (s *Store) InBounds(p geom.Pos) bool {
	if s.opts.Bounds.Empty() {
		return true
	}
	return s.opts.Bounds.Contains(p)
}

func (s *Store) chunkInBounds(origin geom.Pos) bool {
	if s.opts.Bounds.Empty() {
		return true
	}
	return s.opts.Bounds.Intersects(geom.ChunkRect(origin))
}

func (s *Store) Len() int { return len(s.chunks) }

// GetChunk returns the chunk containing p without creating it.
func (s *Store) GetChunk(p geom.Pos) (*Chunk, bool) {
	ch, ok := s.chunks[geom.ChunkOrigin(p)]
	return ch, ok
}

// GetOrCreateChunk returns the chunk containing p, creating and indexing it
// if absent.
func (s *Store) GetOrCreateChunk(p geom.Pos) *Chunk {
	k := geom.ChunkOrigin(p)
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := newChunk(k)
	s.chunks[k] = ch
	s.index.Insert(k)
	return ch
}

// chunkForWrite applies the CreateOnWrite policy.
func (s *Store) chunkForWrite(p geom.Pos) *Chunk {
	if s.opts.CreateOnWrite {
		return s.GetOrCreateChunk(p)
	}
	ch, _ := s.GetChunk(p)
	return ch
}

// GetTile never creates a chunk; absent chunks read as zero.
func (s *Store) GetTile(p geom.Pos) tile.Tile {
	ch, ok := s.GetChunk(p)
	if !ok {
		return tile.Empty
	}
	t, _ := ch.Get(p)
	return t
}

// UpdateTile writes t at p and reports whether anything changed.
func (s *Store) UpdateTile(p geom.Pos, t tile.Tile) bool {
	if !s.InBounds(p) {
		return false
	}
	ch := s.chunkForWrite(p)
	if ch == nil {
		return false
	}
	if !ch.Set(p, t) {
		return false
	}
	s.dirty[ch.Origin] = struct{}{}
	return true
}

// SetFlag sets or clears the flag at p. Revealed tiles and absent chunks are
// left alone. It returns the resulting tile and whether it changed.
func (s *Store) SetFlag(p geom.Pos, on bool) (tile.Tile, bool) {
	ch, ok := s.GetChunk(p)
	if !ok || !s.InBounds(p) {
		return tile.Empty, false
	}
	t, _ := ch.Get(p)
	if t.IsRevealed() {
		return t, false
	}
	next := t.WithoutFlag()
	if on {
		next = t.WithFlag()
	}
	if !ch.Set(p, next) {
		return t, false
	}
	s.dirty[ch.Origin] = struct{}{}
	return next, true
}

// ToggleFlag flips the flag at p.
func (s *Store) ToggleFlag(p geom.Pos) (tile.Tile, bool) {
	return s.SetFlag(p, !s.GetTile(p).IsFlagged())
}

// QueryRegion returns the materialized chunks whose origin lies in the
// half-open box [topLeft, bottomRight), ordered by row then column.
func (s *Store) QueryRegion(topLeft, bottomRight geom.Pos) []Key {
	if bottomRight.X <= topLeft.X || bottomRight.Y <= topLeft.Y {
		return nil
	}
	return s.materialized(s.index.Query(topLeft, bottomRight))
}

// OverlapRegion returns the materialized chunks with at least one tile in
// the half-open box [topLeft, bottomRight). Viewports use it so a chunk
// straddling the top or left edge is still drawn.
func (s *Store) OverlapRegion(topLeft, bottomRight geom.Pos) []Key {
	if bottomRight.X <= topLeft.X || bottomRight.Y <= topLeft.Y {
		return nil
	}
	min := topLeft.Add(-(geom.ChunkSize - 1), -(geom.ChunkSize - 1))
	return s.materialized(s.index.Query(min, bottomRight))
}

func (s *Store) materialized(found []Key) []Key {
	out := found[:0]
	for _, k := range found {
		if _, ok := s.chunks[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// ApplyRegionDiff writes every changed cell of p and reports whether any
// applied tile is an exploded mine. Cells outside materialized chunks are
// skipped unless CreateOnWrite is set. A patch that fails Validate is
// dropped whole.
func (s *Store) ApplyRegionDiff(p diff.Patch) bool {
	// Size caps are the decoder's concern; here only shape and tiles.
	if p.Validate(p.Cells()) != nil {
		return false
	}
	fatal := false
	for i := 0; i < p.Cells(); i++ {
		if !p.IsChanged(i) {
			continue
		}
		pos := p.PosOf(i)
		t := p.Tiles[i]
		s.UpdateTile(pos, t)
		if t.Exploded() && s.GetTile(pos) == t {
			fatal = true
		}
	}
	return fatal
}

// InsertChunk creates or replaces the chunk at origin with tiles. Used when a
// chunk arrives whole over the network.
func (s *Store) InsertChunk(origin geom.Pos, tiles []tile.Tile) error {
	if geom.ChunkOrigin(origin) != origin {
		return fmt.Errorf("store: %s is not a chunk origin", origin)
	}
	if len(tiles) != geom.ChunkArea {
		return fmt.Errorf("store: chunk %s has %d tiles, want %d", origin, len(tiles), geom.ChunkArea)
	}
	ch := s.GetOrCreateChunk(origin)
	for i, t := range tiles {
		ch.setAt(i, t)
	}
	ch.generated = true
	s.dirty[origin] = struct{}{}
	return nil
}

// Keys lists every materialized chunk origin, ordered by row then column.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func (s *Store) MarkDirty(k Key) {
	if _, ok := s.chunks[k]; ok {
		s.dirty[k] = struct{}{}
	}
}

// TakeDirty returns and clears the set of chunks written since the last call.
func (s *Store) TakeDirty() []Key {
	if len(s.dirty) == 0 {
		return nil
	}
	out := make([]Key, 0, len(s.dirty))
	for k := range s.dirty {
		out = append(out, k)
	}
	s.dirty = map[Key]struct{}{}
	sortKeys(out)
	return out
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].X < keys[j].X
	})
}
