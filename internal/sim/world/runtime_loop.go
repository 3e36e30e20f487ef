package world

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"

	"minefield.gg/internal/observerproto"
	"minefield.gg/internal/sim/store"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(w.cfg.TickRateHz))
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.stateReq:
			req.resp <- w.stateSnapshot()
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering as
// Run. Intended for tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []LeaveRequest, actions []ActionEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, actions []ActionEnvelope) {
	start := time.Now()
	tick := w.tick.Load()

	for _, req := range joins {
		w.handleJoin(req)
	}
	for _, env := range actions {
		w.applyAction(env)
	}
	for _, req := range leaves {
		w.handleLeave(req)
	}
	w.resyncClients()

	for _, p := range w.board.TakeChanged() {
		w.broadcastJSON(w.playerMsg(p))
	}

	roster := w.roster()
	w.players.Store(roster)
	w.stepObservers(tick, roster)

	dirty := w.store.TakeDirty()
	w.flushLogs(tick, actions, dirty)

	w.tick.Add(1)
	w.publishMetrics(tick+1, len(dirty), time.Since(start))
}

func (w *World) roster() []observerproto.PlayerState {
	now := w.now()
	players := w.board.Leaderboard(0)
	out := make([]observerproto.PlayerState, 0, len(players))
	for _, p := range players {
		_, connected := w.clients[p.ID]
		out = append(out, observerproto.PlayerState{
			ID:        p.ID,
			Name:      p.Name,
			Connected: connected,
			Alive:     p.Alive(now),
			X:         p.LastClick.X,
			Y:         p.LastClick.Y,
			Points:    p.Points(),
			Deaths:    p.Deaths,
		})
	}
	return out
}

func (w *World) flushLogs(tick uint64, actions []ActionEnvelope, dirty []store.Key) {
	if w.auditLogger != nil {
		for _, e := range w.tickAudits {
			_ = w.auditLogger.WriteAudit(e)
		}
	}
	if w.tickLogger != nil && (len(w.tickJoins) > 0 || len(w.tickLeaves) > 0 || len(actions) > 0) {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:    tick,
			Joins:   append([]RecordedJoin(nil), w.tickJoins...),
			Leaves:  append([]string(nil), w.tickLeaves...),
			Actions: append([]ActionEnvelope(nil), actions...),
			Digest:  w.dirtyDigest(dirty),
		})
	}
	w.tickJoins = w.tickJoins[:0]
	w.tickLeaves = w.tickLeaves[:0]
	w.tickAudits = w.tickAudits[:0]
}

// dirtyDigest hashes the given chunks in order, each as origin plus tiles.
func (w *World) dirtyDigest(keys []store.Key) string {
	h := blake3.New(32, nil)
	var buf [16]byte
	for _, k := range keys {
		ch, ok := w.store.GetChunk(k)
		if !ok {
			continue
		}
		binary.BigEndian.PutUint64(buf[:8], uint64(int64(k.X)))
		binary.BigEndian.PutUint64(buf[8:], uint64(int64(k.Y)))
		h.Write(buf[:])
		d := ch.Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
