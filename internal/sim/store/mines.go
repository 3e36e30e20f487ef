package store

import (
	"minefield.gg/internal/sim/geom"
)

// PlaceMine lays a mine at local index i of ch and bumps the adjacency of its
// eight neighbours, crossing into other chunks as needed. It reports false if
// the cell was already mined.
func (s *Store) PlaceMine(ch *Chunk, i int) bool {
	if i < 0 || i >= geom.ChunkArea {
		return false
	}
	t := ch.At(i)
	if t.HasMine() {
		return false
	}
	ch.setAt(i, t.WithMine())
	s.dirty[ch.Origin] = struct{}{}

	for _, n := range geom.Neighbors(ch.CoordsOf(i)) {
		if !s.InBounds(n) {
			continue
		}
		nc := ch
		j := ch.IndexOf(n)
		if j < 0 {
			nc = s.chunkForWrite(n)
			if nc == nil {
				continue
			}
			j = nc.IndexOf(n)
		}
		if nc.setAt(j, nc.At(j).IncAdjacent()) {
			s.dirty[nc.Origin] = struct{}{}
		}
	}
	return true
}

// MineLayout returns the local indices chosen for the chunk at origin. The
// choice depends only on seed, origin and count.
func MineLayout(seed int64, origin geom.Pos, count int) []int {
	if count <= 0 {
		return nil
	}
	if count > geom.ChunkArea {
		count = geom.ChunkArea
	}
	var perm [geom.ChunkArea]int
	for i := range perm {
		perm[i] = i
	}
	h := geom.Hash2(seed, origin.X, origin.Y)
	out := make([]int, count)
	for k := 0; k < count; k++ {
		h = geom.Mix(h)
		j := k + int(h%uint64(geom.ChunkArea-k))
		perm[k], perm[j] = perm[j], perm[k]
		out[k] = perm[k]
	}
	return out
}

func (s *Store) generate(ch *Chunk) bool {
	if ch.generated {
		return false
	}
	ch.generated = true
	for _, i := range MineLayout(s.opts.Seed, ch.Origin, s.opts.MinesPerChunk) {
		s.PlaceMine(ch, i)
	}
	return true
}

// EnsureGenerated generates the chunk containing p and its eight neighbour
// chunks, so that every adjacency count in p's chunk is final. Neighbours of
// those chunks are created but not generated. It returns the origins that
// were generated by this call. Replicas never generate.
func (s *Store) EnsureGenerated(p geom.Pos) []Key {
	if !s.opts.CreateOnWrite {
		return nil
	}
	center := geom.ChunkOrigin(p)
	var out []Key
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			o := center.Add(dx*geom.ChunkSize, dy*geom.ChunkSize)
			if !s.chunkInBounds(o) {
				continue
			}
			if s.generate(s.GetOrCreateChunk(o)) {
				out = append(out, o)
			}
		}
	}
	return out
}
