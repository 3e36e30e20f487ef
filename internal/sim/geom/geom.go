package geom

import "fmt"

// ChunkSize is the edge length of a chunk in tiles.
const ChunkSize = 16

// ChunkArea is the number of tiles in one chunk.
const ChunkArea = ChunkSize * ChunkSize

// Pos is a world coordinate. Both axes are unbounded.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y} }

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// ChunkOrigin returns the top-left corner of the chunk containing p.
func ChunkOrigin(p Pos) Pos {
	return Pos{
		X: FloorDiv(p.X, ChunkSize) * ChunkSize,
		Y: FloorDiv(p.Y, ChunkSize) * ChunkSize,
	}
}

// Offsets of the 8 neighbours, row by row.
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Neighbors returns the 8 cells surrounding p.
func Neighbors(p Pos) [8]Pos {
	var out [8]Pos
	for i, d := range neighborOffsets {
		out[i] = p.Add(d[0], d[1])
	}
	return out
}

// Rect is the half-open box [Min, Max).
type Rect struct {
	Min Pos `json:"min"`
	Max Pos `json:"max"`
}

// RectFromSize builds a rect anchored at topLeft.
func RectFromSize(topLeft Pos, w, h int) Rect {
	return Rect{Min: topLeft, Max: topLeft.Add(w, h)}
}

func (r Rect) Empty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

func (r Rect) Width() int {
	if r.Empty() {
		return 0
	}
	return r.Max.X - r.Min.X
}

func (r Rect) Height() int {
	if r.Empty() {
		return 0
	}
	return r.Max.Y - r.Min.Y
}

func (r Rect) Contains(p Pos) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Intersects reports whether the two half-open rects overlap.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Min.X < o.Max.X && o.Min.X < r.Max.X && r.Min.Y < o.Max.Y && o.Min.Y < r.Max.Y
}

// ChunkRect returns the extent of the chunk whose origin is given.
func ChunkRect(origin Pos) Rect {
	return RectFromSize(origin, ChunkSize, ChunkSize)
}
