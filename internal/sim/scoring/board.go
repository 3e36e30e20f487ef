// Package scoring keeps per-player reveal statistics and death timers.
package scoring

import (
	"sort"
	"time"

	"minefield.gg/internal/sim/geom"
)

type Player struct {
	ID        string
	Name      string
	LastClick geom.Pos

	// Histogram[i] counts safe tiles revealed showing i adjacent mines.
	Histogram [9]int
	Deaths    int
	DeadUntil time.Time
}

// Points is the sum over the histogram of count * adjacency^4.
func (p *Player) Points() int64 {
	var total int64
	for i, n := range p.Histogram {
		w := int64(i * i)
		total += int64(n) * w * w
	}
	return total
}

func (p *Player) Revealed() int {
	n := 0
	for _, c := range p.Histogram {
		n += c
	}
	return n
}

func (p *Player) Alive(now time.Time) bool { return !now.Before(p.DeadUntil) }

type Config struct {
	Respawn       time.Duration
	RespawnGrowth time.Duration
}

// Board is owned by the world loop and is not safe for concurrent use.
type Board struct {
	cfg     Config
	now     func() time.Time
	players map[string]*Player
	changed map[string]struct{}
}

func NewBoard(cfg Config, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{
		cfg:     cfg,
		now:     now,
		players: map[string]*Player{},
		changed: map[string]struct{}{},
	}
}

// Join returns the player with id, creating it if needed.
func (b *Board) Join(id, name string) *Player {
	p, ok := b.players[id]
	if !ok {
		p = &Player{ID: id}
		b.players[id] = p
	}
	if name != "" {
		p.Name = name
	}
	b.changed[id] = struct{}{}
	return p
}

// Touch queues id for the next TakeChanged without modifying it.
func (b *Board) Touch(id string) {
	if _, ok := b.players[id]; ok {
		b.changed[id] = struct{}{}
	}
}

func (b *Board) Get(id string) (*Player, bool) {
	p, ok := b.players[id]
	return p, ok
}

func (b *Board) Len() int { return len(b.players) }

// Alive reports false for unknown players.
func (b *Board) Alive(id string) bool {
	p, ok := b.players[id]
	return ok && p.Alive(b.now())
}

func (b *Board) SetLastClick(id string, at geom.Pos) {
	if p, ok := b.players[id]; ok && p.LastClick != at {
		p.LastClick = at
		b.changed[id] = struct{}{}
	}
}

// OnTileRevealed records one revealed tile. Opening a mine kills the player.
func (b *Board) OnTileRevealed(id string, adjacent int, hasMine bool) {
	p, ok := b.players[id]
	if !ok {
		return
	}
	b.changed[id] = struct{}{}
	if hasMine {
		b.kill(p)
		return
	}
	if adjacent >= 0 && adjacent < len(p.Histogram) {
		p.Histogram[adjacent]++
	}
}

func (b *Board) kill(p *Player) {
	delay := b.cfg.Respawn + time.Duration(p.Deaths)*b.cfg.RespawnGrowth
	p.DeadUntil = b.now().Add(delay)
	p.Deaths++
}

// TakeChanged returns the players touched since the last call, sorted by id.
func (b *Board) TakeChanged() []*Player {
	if len(b.changed) == 0 {
		return nil
	}
	out := make([]*Player, 0, len(b.changed))
	for id := range b.changed {
		if p, ok := b.players[id]; ok {
			out = append(out, p)
		}
	}
	b.changed = map[string]struct{}{}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leaderboard returns up to n players ordered by points, then id.
func (b *Board) Leaderboard(n int) []*Player {
	out := make([]*Player, 0, len(b.players))
	for _, p := range b.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Points(), out[j].Points()
		if pi != pj {
			return pi > pj
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
