package world

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/scoring"
	"minefield.gg/internal/sim/store"
)

const maxNameLen = 32

type clientState struct {
	id       string
	out      chan []byte
	encoding string

	// view is the rect of the last QUERY; zero until the first one.
	view geom.Rect
	// sent maps chunk origins the client holds to the revision it was sent.
	sent map[store.Key]uint64
	// resync forces a fresh snapshot of view after a dropped message.
	resync bool
}

func pickEncoding(prefs []string) string {
	for _, e := range prefs {
		e = strings.ToUpper(strings.TrimSpace(e))
		if tilecodec.Known(e) {
			return e
		}
	}
	return tilecodec.EncodingRaw
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		name = "anonymous"
	}
	return name
}

func (w *World) handleJoin(req JoinRequest) {
	id := uuid.NewString()
	token := uuid.NewString()
	name := sanitizeName(req.Name)
	w.board.Join(id, name)
	w.tokens[token] = id
	w.tickJoins = append(w.tickJoins, RecordedJoin{PlayerID: id, Name: name})
	w.connect(id, token, req.Encodings, req.Out, req.Resp)
}

func (w *World) handleAttach(req AttachRequest) {
	id, ok := w.tokens[req.ResumeToken]
	if !ok {
		w.handleJoin(JoinRequest{Name: req.Name, Encodings: req.Encodings, Out: req.Out, Resp: req.Resp})
		return
	}
	w.connect(id, req.ResumeToken, req.Encodings, req.Out, req.Resp)
}

func (w *World) connect(id, token string, encodings []string, out chan []byte, resp chan JoinResponse) {
	c := &clientState{
		id:       id,
		out:      out,
		encoding: pickEncoding(encodings),
		sent:     map[store.Key]uint64{},
	}
	w.clients[id] = c
	if resp != nil {
		resp <- JoinResponse{Welcome: protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        id,
			ResumeToken:     token,
			Encoding:        c.encoding,
			WorldParams:     w.WorldParams(),
		}}
	}
	// Roster for the newcomer. Everyone hears about it at the end of the tick.
	for _, p := range w.board.Leaderboard(0) {
		if p.ID == id {
			continue
		}
		w.sendJSON(c, w.playerMsg(p))
	}
	w.board.Touch(id)
}

// handleLeave drops the session. The player stays on the board so that its
// resume token keeps working.
func (w *World) handleLeave(req LeaveRequest) {
	id := req.PlayerID
	c, ok := w.clients[id]
	if !ok || (req.Out != nil && c.out != req.Out) {
		return
	}
	delete(w.clients, id)
	w.tickLeaves = append(w.tickLeaves, id)
	w.board.Touch(id)
	w.broadcastJSON(protocol.DisconnectedMsg{Type: protocol.TypeDisconnected, PlayerID: id})
}

func (w *World) playerMsg(p *scoring.Player) protocol.PlayerMsg {
	m := protocol.PlayerMsg{
		Type:      protocol.TypePlayer,
		PlayerID:  p.ID,
		Name:      p.Name,
		X:         p.LastClick.X,
		Y:         p.LastClick.Y,
		Histogram: p.Histogram,
		Points:    p.Points(),
		Deaths:    p.Deaths,
	}
	if !p.Alive(w.now()) {
		m.DeadUntilMS = p.DeadUntil.UnixMilli()
	}
	_, m.Connected = w.clients[p.ID]
	return m
}

// send queues b without blocking. A full queue marks the client for resync
// instead of silently losing state.
func (w *World) send(c *clientState, b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		w.counters.drops++
		c.resync = true
		return false
	}
}

func (w *World) sendJSON(c *clientState, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return w.send(c, b)
}

func (w *World) broadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, c := range w.clients {
		w.send(c, b)
	}
}

func (w *World) sendError(c *clientState, code, msg string) {
	w.sendJSON(c, protocol.NewError(code, msg))
}

// chunkMsg encodes the public view of ch, going through the frame cache.
func (w *World) chunkMsg(ch *store.Chunk, enc string) (protocol.ChunkMsg, error) {
	data, err := w.frames.Encode(ch.Origin, ch.Rev(), enc, ch.Public)
	if err != nil {
		return protocol.ChunkMsg{}, err
	}
	return protocol.ChunkMsg{
		Type:     protocol.TypeChunk,
		X:        ch.Origin.X,
		Y:        ch.Origin.Y,
		Rev:      ch.Rev(),
		Encoding: enc,
		Data:     data,
	}, nil
}

// sendChunk snapshots one chunk to c and records the revision it holds.
func (w *World) sendChunk(c *clientState, ch *store.Chunk) bool {
	m, err := w.chunkMsg(ch, c.encoding)
	if err != nil {
		return false
	}
	if !w.sendJSON(c, m) {
		return false
	}
	c.sent[ch.Origin] = ch.Rev()
	w.counters.chunks++
	return true
}

// syncView sends every generated chunk in c's view that the client does not
// hold at its current revision, and forgets chunks that left the view.
func (w *World) syncView(c *clientState) {
	for k := range c.sent {
		if !c.view.Intersects(geom.ChunkRect(k)) {
			delete(c.sent, k)
		}
	}
	if c.view.Empty() {
		return
	}
	keys := w.store.OverlapRegion(c.view.Min, c.view.Max)
	n := 0
	for _, k := range keys {
		if n >= w.cfg.MaxQueryChunks {
			break
		}
		ch, ok := w.store.GetChunk(k)
		if !ok || !ch.Generated() {
			continue
		}
		n++
		if rev, ok := c.sent[k]; ok && rev == ch.Rev() {
			continue
		}
		if !w.sendChunk(c, ch) {
			return
		}
	}
}

// resyncClients re-snapshots the view of every client that lost a message.
func (w *World) resyncClients() {
	for _, c := range w.clients {
		if !c.resync {
			continue
		}
		c.resync = false
		c.sent = map[store.Key]uint64{}
		w.counters.resyncs++
		w.syncView(c)
	}
}
