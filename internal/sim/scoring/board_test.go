package scoring

import (
	"testing"
	"time"
)

func TestPoints(t *testing.T) {
	p := &Player{}
	p.Histogram[0] = 10
	p.Histogram[1] = 3
	p.Histogram[2] = 2
	p.Histogram[8] = 1
	want := int64(0 + 3*1 + 2*16 + 4096)
	if got := p.Points(); got != want {
		t.Fatalf("points=%d want %d", got, want)
	}
	if p.Revealed() != 16 {
		t.Fatalf("revealed=%d", p.Revealed())
	}
}

func TestBoard_DeathAndRespawnGrowth(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBoard(Config{Respawn: 10 * time.Second, RespawnGrowth: 5 * time.Second}, func() time.Time { return now })
	b.Join("a", "alice")
	if !b.Alive("a") {
		t.Fatalf("new player should be alive")
	}
	b.OnTileRevealed("a", 3, false)
	b.OnTileRevealed("a", 0, true)
	p, _ := b.Get("a")
	if p.Deaths != 1 || !p.DeadUntil.Equal(now.Add(10*time.Second)) {
		t.Fatalf("first death: deaths=%d until=%v", p.Deaths, p.DeadUntil)
	}
	if b.Alive("a") {
		t.Fatalf("player should be dead")
	}
	if p.Histogram[3] != 1 || p.Revealed() != 1 {
		t.Fatalf("mine counted in histogram: %v", p.Histogram)
	}

	now = now.Add(10 * time.Second)
	if !b.Alive("a") {
		t.Fatalf("player should respawn at DeadUntil")
	}
	b.OnTileRevealed("a", 0, true)
	if !p.DeadUntil.Equal(now.Add(15 * time.Second)) {
		t.Fatalf("second death should add growth: until=%v", p.DeadUntil)
	}
}

func TestBoard_UnknownPlayerIgnored(t *testing.T) {
	b := NewBoard(Config{}, nil)
	b.OnTileRevealed("ghost", 1, false)
	if b.Len() != 0 || b.Alive("ghost") {
		t.Fatalf("unknown player should not be created")
	}
}

func TestBoard_TakeChangedAndLeaderboard(t *testing.T) {
	b := NewBoard(Config{}, nil)
	b.Join("b", "")
	b.Join("a", "")
	b.OnTileRevealed("b", 2, false)
	got := b.TakeChanged()
	if len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("changed=%v", got)
	}
	if b.TakeChanged() != nil {
		t.Fatalf("changed set not cleared")
	}
	lb := b.Leaderboard(1)
	if len(lb) != 1 || lb[0].ID != "b" {
		t.Fatalf("leaderboard=%v", lb)
	}
}
