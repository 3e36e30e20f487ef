package world

import (
	"context"
	"sort"
)

// StateSnapshot is the admin view of the world, assembled on the loop.
type StateSnapshot struct {
	Tick        uint64        `json:"tick"`
	Chunks      int           `json:"chunks"`
	Generated   int           `json:"generated"`
	Bounds      [4]int        `json:"bounds,omitempty"`
	Leaderboard []LeaderEntry `json:"leaderboard"`
	Clients     []string      `json:"clients"`
	Observers   int           `json:"observers"`
	Metrics     WorldMetrics  `json:"metrics"`
}

type LeaderEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Points   int64  `json:"points"`
	Revealed int    `json:"revealed"`
	Deaths   int    `json:"deaths"`
}

type stateReq struct {
	resp chan StateSnapshot
}

// RequestState asks the world loop for a StateSnapshot.
func (w *World) RequestState(ctx context.Context) (StateSnapshot, error) {
	req := stateReq{resp: make(chan StateSnapshot, 1)}
	select {
	case w.stateReq <- req:
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
	select {
	case s := <-req.resp:
		return s, nil
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

func (w *World) stateSnapshot() StateSnapshot {
	s := StateSnapshot{
		Tick:      w.tick.Load(),
		Chunks:    w.store.Len(),
		Observers: len(w.observers),
		Metrics:   w.Metrics(),
	}
	if b := w.cfg.Bounds(); !b.Empty() {
		s.Bounds = [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	}
	for _, k := range w.store.Keys() {
		if ch, ok := w.store.GetChunk(k); ok && ch.Generated() {
			s.Generated++
		}
	}
	for _, p := range w.board.Leaderboard(20) {
		s.Leaderboard = append(s.Leaderboard, LeaderEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Points:   p.Points(),
			Revealed: p.Revealed(),
			Deaths:   p.Deaths,
		})
	}
	for id := range w.clients {
		s.Clients = append(s.Clients, id)
	}
	sort.Strings(s.Clients)
	return s
}
