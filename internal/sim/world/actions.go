package world

import (
	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/diff"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/reveal"
	"minefield.gg/internal/sim/store"
)

// applyAction runs one request to completion. Requests are handled strictly
// in arrival order.
func (w *World) applyAction(env ActionEnvelope) {
	c := w.clients[env.PlayerID]
	if _, ok := w.board.Get(env.PlayerID); !ok {
		return
	}
	w.counters.actions++
	at := geom.Pos{X: env.X, Y: env.Y}

	if env.Type == protocol.TypeQuery {
		if c != nil {
			w.handleQuery(c, env)
		}
		return
	}
	if !w.board.Alive(env.PlayerID) {
		if c != nil {
			w.sendError(c, protocol.ErrDead, "player is dead")
		}
		return
	}
	if !w.store.InBounds(at) {
		if c != nil {
			w.sendError(c, protocol.ErrInvalidTarget, "outside world boundary")
		}
		return
	}

	switch env.Type {
	case protocol.TypeClick:
		w.board.SetLastClick(env.PlayerID, at)
		w.finishReveal(env, w.engine.Reveal(env.PlayerID, at))
	case protocol.TypeDoubleClick:
		w.board.SetLastClick(env.PlayerID, at)
		w.finishReveal(env, w.engine.Chord(env.PlayerID, at))
	case protocol.TypeFlag, protocol.TypeUnflag:
		w.handleFlag(env, at)
	default:
		if c != nil {
			w.sendError(c, protocol.ErrBadRequest, "unknown action type")
		}
	}
}

func (w *World) finishReveal(env ActionEnvelope, res reveal.Result) {
	for _, o := range res.Generated {
		w.audit(AuditEntry{Actor: env.PlayerID, Action: "CHUNK_GENERATED", X: o.X, Y: o.Y})
	}
	w.counters.generated += uint64(len(res.Generated))
	w.audit(AuditEntry{
		Actor:    env.PlayerID,
		Action:   env.Type,
		X:        env.X,
		Y:        env.Y,
		Revealed: res.Count(),
		HitMine:  res.HitMine,
	})
	if res.Empty() {
		return
	}
	w.counters.revealed += uint64(res.Count())
	if res.HitMine {
		w.counters.deaths++
	}
	for _, p := range diff.Pack(res.Updates, w.cfg.MaxPatchCells) {
		w.broadcastPatch(env.PlayerID, p)
	}
}

func (w *World) handleFlag(env ActionEnvelope, at geom.Pos) {
	on := env.Type == protocol.TypeFlag
	if _, changed := w.store.SetFlag(at, on); !changed {
		return
	}
	w.audit(AuditEntry{Actor: env.PlayerID, Action: env.Type, X: at.X, Y: at.Y})
	typ := protocol.TypeUnflagged
	if on {
		typ = protocol.TypeFlagged
	}
	m := protocol.FlagMsg{Type: typ, PlayerID: env.PlayerID, X: at.X, Y: at.Y}
	origin := geom.ChunkOrigin(at)
	ch, _ := w.store.GetChunk(at)
	for _, c := range w.clients {
		rev, held := c.sent[origin]
		if !held && !c.view.Contains(at) {
			continue
		}
		if w.sendJSON(c, m) && held && rev+1 == ch.Rev() {
			c.sent[origin] = ch.Rev()
		}
	}
}

// broadcastPatch delivers p to every client that holds or views a chunk it
// touches. A client that views a touched chunk it does not hold gets the
// chunk snapshot first; the RECT then re-applies idempotently.
func (w *World) broadcastPatch(playerID string, p diff.Patch) {
	touched := touchedChunks(p)
	pub := p.Public()
	frames := map[string]protocol.RectMsg{}
	for _, c := range w.clients {
		if !w.wantsPatch(c, p.Rect(), touched) {
			continue
		}
		for _, k := range touched {
			if _, held := c.sent[k]; held || !c.view.Intersects(geom.ChunkRect(k)) {
				continue
			}
			if ch, ok := w.store.GetChunk(k); ok && ch.Generated() {
				w.sendChunk(c, ch)
			}
		}
		m, ok := frames[c.encoding]
		if !ok {
			var err error
			m, err = rectMsg(playerID, pub, c.encoding)
			if err != nil {
				continue
			}
			frames[c.encoding] = m
		}
		if !w.sendJSON(c, m) {
			continue
		}
		w.counters.rects++
		for _, k := range touched {
			if _, held := c.sent[k]; held {
				if ch, ok := w.store.GetChunk(k); ok {
					c.sent[k] = ch.Rev()
				}
			}
		}
	}
}

func (w *World) wantsPatch(c *clientState, r geom.Rect, touched []store.Key) bool {
	if c.view.Intersects(r) {
		return true
	}
	for _, k := range touched {
		if _, ok := c.sent[k]; ok {
			return true
		}
	}
	return false
}

func touchedChunks(p diff.Patch) []store.Key {
	seen := map[store.Key]struct{}{}
	var out []store.Key
	for i := 0; i < p.Cells(); i++ {
		if !p.IsChanged(i) {
			continue
		}
		k := geom.ChunkOrigin(p.PosOf(i))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func rectMsg(playerID string, p diff.Patch, enc string) (protocol.RectMsg, error) {
	data, err := tilecodec.Encode(enc, p.Tiles)
	if err != nil {
		return protocol.RectMsg{}, err
	}
	return protocol.RectMsg{
		Type:     protocol.TypeRect,
		PlayerID: playerID,
		X:        p.Origin.X,
		Y:        p.Origin.Y,
		W:        p.W,
		H:        p.H,
		Encoding: enc,
		Data:     data,
		Changed:  tilecodec.EncodeBitmap(p.Changed),
	}, nil
}

// handleQuery moves the client's view and snapshots the generated chunks in
// it. Queries never create chunks.
func (w *World) handleQuery(c *clientState, env ActionEnvelope) {
	if env.W <= 0 || env.H <= 0 {
		w.sendError(c, protocol.ErrBadRequest, "query rect must be non-empty")
		return
	}
	c.view = geom.RectFromSize(geom.Pos{X: env.X, Y: env.Y}, env.W, env.H)
	w.syncView(c)
}

func (w *World) audit(e AuditEntry) {
	e.Tick = w.tick.Load()
	e.UnixMS = w.now().UnixMilli()
	w.tickAudits = append(w.tickAudits, e)
}
