// Package tile packs one minefield cell into a byte.
//
//	bits 0-3  adjacent mine count (0..8)
//	bit  4    mine
//	bit  5    flag
//	bit  6    revealed
//	bit  7    loading (client placeholder, never set by the server)
package tile

type Tile uint8

const (
	AdjacentMask Tile = 0b1111
	Mine         Tile = 1 << 4
	Flag         Tile = 1 << 5
	Revealed     Tile = 1 << 6
	Loading      Tile = 1 << 7

	// PublicMask is what an unrevealed tile may disclose.
	PublicMask = Flag | Revealed
)

// Empty is the unknown, unrevealed, unmined, unflagged tile.
const Empty Tile = 0

func (t Tile) Adjacent() int    { return int(t & AdjacentMask) }
func (t Tile) HasMine() bool    { return t&Mine != 0 }
func (t Tile) IsFlagged() bool  { return t&Flag != 0 }
func (t Tile) IsRevealed() bool { return t&Revealed != 0 }
func (t Tile) IsLoading() bool  { return t&Loading != 0 }

// WithFlag sets the flag bit. It is not a toggle.
func (t Tile) WithFlag() Tile { return t | Flag }

// WithoutFlag clears the flag bit. It is not a toggle.
func (t Tile) WithoutFlag() Tile { return t &^ Flag }

func (t Tile) WithRevealed() Tile { return t | Revealed }

func (t Tile) WithMine() Tile { return t | Mine }

func (t Tile) WithLoading() Tile { return t | Loading }

// WithAdjacent replaces the adjacency count, clamped to [0,8].
func (t Tile) WithAdjacent(n int) Tile {
	if n < 0 {
		n = 0
	}
	if n > 8 {
		n = 8
	}
	return (t &^ AdjacentMask) | Tile(n)
}

// IncAdjacent adds one to the adjacency count, saturating at 8.
func (t Tile) IncAdjacent() Tile {
	return t.WithAdjacent(t.Adjacent() + 1)
}

// Public returns the view of t that is safe to send to any client.
// Every path that serializes tiles for a client must go through here.
func (t Tile) Public() Tile {
	if t.IsRevealed() {
		return t &^ Loading
	}
	return t & PublicMask
}

// Valid reports whether t can appear on the wire.
func (t Tile) Valid() bool {
	return t.Adjacent() <= 8 && !t.IsLoading()
}

// Exploded reports a revealed mine.
func (t Tile) Exploded() bool { return t.IsRevealed() && t.HasMine() }

func (t Tile) String() string {
	switch {
	case t.IsRevealed() && t.HasMine():
		return "*"
	case t.IsRevealed():
		return string(rune('0' + t.Adjacent()))
	case t.IsFlagged():
		return "F"
	case t.IsLoading():
		return "?"
	default:
		return "."
	}
}

// PublicSlice projects every tile in place and returns dst.
func PublicSlice(dst, src []Tile) []Tile {
	if cap(dst) < len(src) {
		dst = make([]Tile, len(src))
	}
	dst = dst[:len(src)]
	for i, t := range src {
		dst[i] = t.Public()
	}
	return dst
}
