// Package diff builds and checks rectangular tile patches.
//
// A patch carries an explicit changed bitmap so that an all-zero tile is a
// legal value rather than a "no change" marker.
package diff

import (
	"errors"
	"fmt"
	"sort"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
)

// MaxCells is the default cap on W*H for one patch.
const MaxCells = 64 * 1024

var (
	ErrEmpty    = errors.New("diff: no updates")
	ErrTooLarge = errors.New("diff: patch exceeds cell limit")
)

// Update is one tile write at a world coordinate.
type Update struct {
	Pos  geom.Pos
	Tile tile.Tile
}

// Patch is a W×H row-major tile matrix anchored at Origin. Only cells whose
// bit is set in Changed carry a value.
type Patch struct {
	Origin  geom.Pos
	W, H    int
	Tiles   []tile.Tile
	Changed []byte
}

// BitmapLen is the byte length of a changed bitmap for n cells.
func BitmapLen(n int) int { return (n + 7) / 8 }

func New(origin geom.Pos, w, h int) Patch {
	n := w * h
	return Patch{
		Origin:  origin,
		W:       w,
		H:       h,
		Tiles:   make([]tile.Tile, n),
		Changed: make([]byte, BitmapLen(n)),
	}
}

func (p Patch) Cells() int { return p.W * p.H }

func (p Patch) Rect() geom.Rect { return geom.RectFromSize(p.Origin, p.W, p.H) }

func (p Patch) IsChanged(i int) bool {
	return p.Changed[i>>3]&(1<<(uint(i)&7)) != 0
}

// Set writes t at world coordinate pos, which must lie inside the patch.
func (p Patch) Set(pos geom.Pos, t tile.Tile) {
	i := (pos.Y-p.Origin.Y)*p.W + (pos.X - p.Origin.X)
	p.Tiles[i] = t
	p.Changed[i>>3] |= 1 << (uint(i) & 7)
}

func (p Patch) PosOf(i int) geom.Pos {
	return p.Origin.Add(i%p.W, i/p.W)
}

// Count returns the number of changed cells.
func (p Patch) Count() int {
	n := 0
	for i := 0; i < p.Cells(); i++ {
		if p.IsChanged(i) {
			n++
		}
	}
	return n
}

// Updates lists the changed cells in row-major order.
func (p Patch) Updates() []Update {
	var out []Update
	for i := 0; i < p.Cells(); i++ {
		if p.IsChanged(i) {
			out = append(out, Update{Pos: p.PosOf(i), Tile: p.Tiles[i]})
		}
	}
	return out
}

// Public returns a copy with every tile reduced to its public projection.
func (p Patch) Public() Patch {
	out := Patch{Origin: p.Origin, W: p.W, H: p.H}
	out.Tiles = tile.PublicSlice(make([]tile.Tile, len(p.Tiles)), p.Tiles)
	out.Changed = append([]byte(nil), p.Changed...)
	for i := range out.Tiles {
		if !p.IsChanged(i) {
			out.Tiles[i] = tile.Empty
		}
	}
	return out
}

// Validate rejects patches whose shape or contents cannot have come from an
// authority. maxCells <= 0 uses MaxCells.
func (p Patch) Validate(maxCells int) error {
	if maxCells <= 0 {
		maxCells = MaxCells
	}
	if p.W <= 0 || p.H <= 0 {
		return fmt.Errorf("diff: bad dimensions %dx%d", p.W, p.H)
	}
	if p.W > maxCells || p.H > maxCells || p.W*p.H > maxCells {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, p.W, p.H)
	}
	n := p.W * p.H
	if len(p.Tiles) != n {
		return fmt.Errorf("diff: tiles len=%d want %d", len(p.Tiles), n)
	}
	if len(p.Changed) != BitmapLen(n) {
		return fmt.Errorf("diff: bitmap len=%d want %d", len(p.Changed), BitmapLen(n))
	}
	if n%8 != 0 && p.Changed[len(p.Changed)-1]>>(uint(n)%8) != 0 {
		return errors.New("diff: bitmap has bits past the last cell")
	}
	for i, t := range p.Tiles {
		if !p.IsChanged(i) {
			continue
		}
		if !t.Valid() {
			return fmt.Errorf("diff: invalid tile %s at %s", t, p.PosOf(i))
		}
	}
	return nil
}

// FromUpdates builds the minimal bounding patch for updates. Later updates
// to the same cell win.
func FromUpdates(updates []Update, maxCells int) (Patch, error) {
	if len(updates) == 0 {
		return Patch{}, ErrEmpty
	}
	if maxCells <= 0 {
		maxCells = MaxCells
	}
	min, max := updates[0].Pos, updates[0].Pos
	for _, u := range updates[1:] {
		if u.Pos.X < min.X {
			min.X = u.Pos.X
		}
		if u.Pos.Y < min.Y {
			min.Y = u.Pos.Y
		}
		if u.Pos.X > max.X {
			max.X = u.Pos.X
		}
		if u.Pos.Y > max.Y {
			max.Y = u.Pos.Y
		}
	}
	w := max.X - min.X + 1
	h := max.Y - min.Y + 1
	if w > maxCells || h > maxCells || w*h > maxCells {
		return Patch{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}
	p := New(min, w, h)
	for _, u := range updates {
		p.Set(u.Pos, u.Tile)
	}
	return p, nil
}

// PerChunk splits updates into one bounding patch per chunk, ordered by
// chunk origin.
func PerChunk(updates []Update) []Patch {
	groups := make(map[geom.Pos][]Update)
	for _, u := range updates {
		o := geom.ChunkOrigin(u.Pos)
		groups[o] = append(groups[o], u)
	}
	origins := make([]geom.Pos, 0, len(groups))
	for o := range groups {
		origins = append(origins, o)
	}
	sort.Slice(origins, func(i, j int) bool {
		if origins[i].Y != origins[j].Y {
			return origins[i].Y < origins[j].Y
		}
		return origins[i].X < origins[j].X
	})
	out := make([]Patch, 0, len(origins))
	for _, o := range origins {
		p, err := FromUpdates(groups[o], geom.ChunkArea)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Pack returns a single patch when the bounding box fits within maxCells and
// falls back to per-chunk patches otherwise.
func Pack(updates []Update, maxCells int) []Patch {
	if len(updates) == 0 {
		return nil
	}
	p, err := FromUpdates(updates, maxCells)
	if err == nil {
		return []Patch{p}
	}
	return PerChunk(updates)
}
