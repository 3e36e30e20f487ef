// Package worldtest drives a world through its exported API only: joins and
// actions go through StepOnce and every session keeps a mirror.Replica fed
// from its outbound queue.
package worldtest

import (
	"encoding/json"
	"testing"
	"time"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/mirror"
	"minefield.gg/internal/sim/world"
)

const outQueue = 1 << 14

type Harness struct {
	T *testing.T
	W *world.World

	// Ticks holds every tick log entry the world wrote.
	Ticks []world.TickLogEntry

	now      time.Time
	sessions []*Session
}

// Session is one connected player as seen from the client side.
type Session struct {
	ID      string
	Token   string
	Out     chan []byte
	Replica *mirror.Replica
	Errors  []protocol.ErrorMsg
	// Explosions counts RECTs received that opened a mine.
	Explosions int
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	h := &Harness{T: t, now: time.Unix(1_700_000_000, 0)}
	w, err := world.New(cfg, func() time.Time { return h.now })
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	w.SetTickLogger(tickRecorder{h})
	t.Cleanup(w.Close)
	h.W = w
	return h
}

type tickRecorder struct{ h *Harness }

func (r tickRecorder) WriteTick(e world.TickLogEntry) error {
	r.h.Ticks = append(r.h.Ticks, e)
	return nil
}

// Advance moves the world clock.
func (h *Harness) Advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *Harness) Join(name string) *Session {
	h.T.Helper()
	s := &Session{Out: make(chan []byte, outQueue), Replica: mirror.NewReplica(0)}
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{Name: name, Encodings: []string{"RLE"}, Out: s.Out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.PlayerID == "" {
		h.T.Fatalf("join returned empty player id")
	}
	s.ID, s.Token = jr.Welcome.PlayerID, jr.Welcome.ResumeToken
	h.sessions = append(h.sessions, s)
	h.drainAll()
	return s
}

// Step runs one tick with the given actions and feeds every session's
// replica with what it was sent.
func (h *Harness) Step(envs ...world.ActionEnvelope) {
	h.T.Helper()
	h.W.StepOnce(nil, nil, envs)
	h.Advance(50 * time.Millisecond)
	h.drainAll()
}

func (h *Harness) Act(s *Session, typ string, x, y int) {
	h.T.Helper()
	h.Step(world.ActionEnvelope{PlayerID: s.ID, Type: typ, X: x, Y: y})
}

func (h *Harness) Query(s *Session, r geom.Rect) {
	h.T.Helper()
	h.Step(world.ActionEnvelope{
		PlayerID: s.ID,
		Type:     protocol.TypeQuery,
		X:        r.Min.X,
		Y:        r.Min.Y,
		W:        r.Width(),
		H:        r.Height(),
	})
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drain(s)
	}
}

func (h *Harness) drain(s *Session) {
	h.T.Helper()
	for {
		select {
		case b := <-s.Out:
			res, err := s.Replica.Apply(b)
			if err != nil {
				h.T.Fatalf("session %s: apply %s: %v", s.ID, res.Type, err)
			}
			if res.Fatal {
				s.Explosions++
			}
			if res.Type == protocol.TypeError {
				var e protocol.ErrorMsg
				if err := json.Unmarshal(b, &e); err != nil {
					h.T.Fatalf("decode ERROR: %v", err)
				}
				s.Errors = append(s.Errors, e)
			}
		default:
			return
		}
	}
}

// Digests returns the dirty-chunk digest of every logged tick.
func (h *Harness) Digests() []string {
	out := make([]string, 0, len(h.Ticks))
	for _, e := range h.Ticks {
		out = append(out, e.Digest)
	}
	return out
}
