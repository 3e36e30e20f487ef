package world

import (
	"encoding/json"

	"minefield.gg/internal/observerproto"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/store"
)

// ObserverJoinRequest registers a read-only observer session that receives:
// - CHUNK snapshots for its viewport (dataOut)
// - per-tick roster (tickOut)
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	DataOut   chan []byte

	View      geom.Rect
	Encoding  string
	MaxChunks int
}

// ObserverSubscribeRequest moves an existing observer's viewport.
type ObserverSubscribeRequest struct {
	SessionID string
	View      geom.Rect
	Encoding  string
	MaxChunks int
}

type observerClient struct {
	id      string
	tickOut chan []byte
	dataOut chan []byte

	view      geom.Rect
	encoding  string
	maxChunks int

	// sent maps chunk origins to the revision last delivered.
	sent map[store.Key]uint64
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil || req.DataOut == nil {
		return
	}
	o := &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		dataOut: req.DataOut,
		sent:    map[store.Key]uint64{},
	}
	o.configure(req.View, req.Encoding, req.MaxChunks, w.cfg.MaxQueryChunks)
	w.observers[o.id] = o
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	o := w.observers[req.SessionID]
	if o == nil {
		return
	}
	o.configure(req.View, req.Encoding, req.MaxChunks, w.cfg.MaxQueryChunks)
}

func (w *World) handleObserverLeave(id string) {
	delete(w.observers, id)
}

func (o *observerClient) configure(view geom.Rect, enc string, maxChunks, limit int) {
	o.view = view
	o.encoding = pickEncoding([]string{enc})
	if maxChunks <= 0 || maxChunks > limit {
		maxChunks = limit
	}
	o.maxChunks = maxChunks
}

// stepObservers pushes changed and newly visible chunks to every observer,
// evicts chunks that left the view and sends the per-tick roster.
func (w *World) stepObservers(tick uint64, roster []observerproto.PlayerState) {
	if len(w.observers) == 0 {
		return
	}
	tickMsg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Players:         roster,
		Joins:           make([]observerproto.JoinInfo, 0, len(w.tickJoins)),
		Leaves:          w.tickLeaves,
	}
	for _, j := range w.tickJoins {
		tickMsg.Joins = append(tickMsg.Joins, observerproto.JoinInfo{PlayerID: j.PlayerID, Name: j.Name})
	}
	tb, err := json.Marshal(tickMsg)
	if err != nil {
		return
	}

	for _, o := range w.observers {
		w.syncObserver(o)
		sendLatest(o.tickOut, tb)
	}
}

func (w *World) syncObserver(o *observerClient) {
	for k := range o.sent {
		if o.view.Intersects(geom.ChunkRect(k)) {
			continue
		}
		b, err := json.Marshal(observerproto.ChunkEvictMsg{
			Type:            observerproto.TypeChunkEvict,
			ProtocolVersion: observerproto.Version,
			X:               k.X,
			Y:               k.Y,
		})
		if err != nil || !trySend(o.dataOut, b) {
			return
		}
		delete(o.sent, k)
	}
	if o.view.Empty() {
		return
	}
	n := 0
	for _, k := range w.store.OverlapRegion(o.view.Min, o.view.Max) {
		if n >= o.maxChunks {
			break
		}
		ch, ok := w.store.GetChunk(k)
		if !ok || !ch.Generated() {
			continue
		}
		n++
		if rev, ok := o.sent[k]; ok && rev == ch.Rev() {
			continue
		}
		m, err := w.chunkMsg(ch, o.encoding)
		if err != nil {
			continue
		}
		b, err := json.Marshal(m)
		if err != nil {
			continue
		}
		// A full queue leaves the old revision recorded; the chunk is
		// retried next tick.
		if !trySend(o.dataOut, b) {
			w.counters.drops++
			return
		}
		o.sent[k] = ch.Rev()
		w.counters.chunks++
	}
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

// sendLatest replaces the oldest queued message when ch is full. Used for
// per-tick state where only the newest value matters.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
