// Package mirror keeps an observer-side copy of the minefield built from
// server messages. A Replica never creates chunks on its own; they appear
// only when a CHUNK snapshot arrives.
package mirror

import (
	"encoding/json"
	"fmt"

	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/diff"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/store"
	"minefield.gg/internal/sim/tile"
)

// Applied describes the effect of one inbound message.
type Applied struct {
	Type string
	// Fatal is set when a RECT opened a mine.
	Fatal bool
}

// Replica is not safe for concurrent use; feed it from one goroutine in
// arrival order.
type Replica struct {
	store         *store.Store
	players       map[string]protocol.PlayerMsg
	maxPatchCells int
}

func NewReplica(maxPatchCells int) *Replica {
	if maxPatchCells <= 0 {
		maxPatchCells = diff.MaxCells
	}
	return &Replica{
		store:         store.New(store.Options{}),
		players:       map[string]protocol.PlayerMsg{},
		maxPatchCells: maxPatchCells,
	}
}

// Apply validates and applies one raw server message. Malformed messages
// leave the replica untouched.
func (r *Replica) Apply(raw []byte) (Applied, error) {
	base, err := protocol.Validate(raw)
	if err != nil {
		return Applied{Type: base.Type}, err
	}
	out := Applied{Type: base.Type}
	switch base.Type {
	case protocol.TypeChunk:
		var m protocol.ChunkMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return out, err
		}
		return out, r.ApplyChunk(m)
	case protocol.TypeRect:
		var m protocol.RectMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return out, err
		}
		out.Fatal, err = r.ApplyRect(m)
		return out, err
	case protocol.TypeFlagged, protocol.TypeUnflagged:
		var m protocol.FlagMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return out, err
		}
		r.ApplyFlag(m)
	case protocol.TypePlayer:
		var m protocol.PlayerMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return out, err
		}
		r.players[m.PlayerID] = m
	case protocol.TypeDisconnected:
		var m protocol.DisconnectedMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return out, err
		}
		if p, ok := r.players[m.PlayerID]; ok {
			p.Connected = false
			r.players[m.PlayerID] = p
		}
	}
	return out, nil
}

// ApplyChunk installs a full chunk snapshot.
func (r *Replica) ApplyChunk(m protocol.ChunkMsg) error {
	origin := geom.Pos{X: m.X, Y: m.Y}
	if geom.ChunkOrigin(origin) != origin {
		return fmt.Errorf("mirror: chunk origin %s not aligned", origin)
	}
	tiles, err := tilecodec.Decode(m.Encoding, m.Data, geom.ChunkArea)
	if err != nil {
		return err
	}
	for i, t := range tiles {
		if !t.Valid() {
			return fmt.Errorf("mirror: chunk %s tile %d invalid: %s", origin, i, t)
		}
	}
	return r.store.InsertChunk(origin, tiles)
}

// DecodeRect turns a RECT message into a checked patch.
func DecodeRect(m protocol.RectMsg, maxCells int) (diff.Patch, error) {
	if maxCells <= 0 {
		maxCells = diff.MaxCells
	}
	if m.W <= 0 || m.H <= 0 || m.W > maxCells || m.H > maxCells || m.W*m.H > maxCells {
		return diff.Patch{}, fmt.Errorf("mirror: bad rect %dx%d", m.W, m.H)
	}
	n := m.W * m.H
	tiles, err := tilecodec.Decode(m.Encoding, m.Data, n)
	if err != nil {
		return diff.Patch{}, err
	}
	changed, err := tilecodec.DecodeBitmap(m.Changed, diff.BitmapLen(n))
	if err != nil {
		return diff.Patch{}, err
	}
	p := diff.Patch{Origin: geom.Pos{X: m.X, Y: m.Y}, W: m.W, H: m.H, Tiles: tiles, Changed: changed}
	if err := p.Validate(maxCells); err != nil {
		return diff.Patch{}, err
	}
	return p, nil
}

// ApplyRect applies a region diff and reports whether it opened a mine.
// Re-applying the same RECT is a no-op.
func (r *Replica) ApplyRect(m protocol.RectMsg) (bool, error) {
	p, err := DecodeRect(m, r.maxPatchCells)
	if err != nil {
		return false, err
	}
	return r.store.ApplyRegionDiff(p), nil
}

// ApplyFlag applies one FLAGGED or UNFLAGGED event.
func (r *Replica) ApplyFlag(m protocol.FlagMsg) bool {
	_, changed := r.store.SetFlag(geom.Pos{X: m.X, Y: m.Y}, m.Type == protocol.TypeFlagged)
	return changed
}

func (r *Replica) GetTile(p geom.Pos) tile.Tile { return r.store.GetTile(p) }

func (r *Replica) GetChunk(p geom.Pos) (*store.Chunk, bool) { return r.store.GetChunk(p) }

func (r *Replica) QueryRegion(topLeft, bottomRight geom.Pos) []store.Key {
	return r.store.QueryRegion(topLeft, bottomRight)
}

// OverlapRegion lists held chunks that intersect the box, for drawing.
func (r *Replica) OverlapRegion(topLeft, bottomRight geom.Pos) []store.Key {
	return r.store.OverlapRegion(topLeft, bottomRight)
}

// TakeDirty returns chunks changed since the last call; a renderer redraws
// exactly these.
func (r *Replica) TakeDirty() []store.Key { return r.store.TakeDirty() }

func (r *Replica) Len() int { return r.store.Len() }

func (r *Replica) Player(id string) (protocol.PlayerMsg, bool) {
	p, ok := r.players[id]
	return p, ok
}
