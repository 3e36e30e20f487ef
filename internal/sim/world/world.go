package world

import (
	"fmt"
	"sync/atomic"
	"time"

	"minefield.gg/internal/observerproto"
	"minefield.gg/internal/protocol"
	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/io/tilecodec"
	"minefield.gg/internal/sim/reveal"
	"minefield.gg/internal/sim/scoring"
	"minefield.gg/internal/sim/store"
)

type JoinRequest struct {
	Name string
	// Encodings the client can decode, in order of preference.
	Encodings []string
	Out       chan []byte
	Resp      chan JoinResponse
}

// AttachRequest reconnects a session to an existing player. An unknown
// token is treated as a fresh join under Name.
type AttachRequest struct {
	ResumeToken string
	Name        string
	Encodings   []string
	Out         chan []byte
	Resp        chan JoinResponse
}

// LeaveRequest detaches the session identified by Out. A stale request from
// a session that was already replaced by a resume is ignored.
type LeaveRequest struct {
	PlayerID string
	Out      chan []byte
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// ActionEnvelope carries one client request into the world loop. W and H are
// only used by QUERY.
type ActionEnvelope struct {
	PlayerID string
	Type     string
	X        int
	Y        int
	W        int
	H        int
}

type RecordedJoin struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []ActionEnvelope `json:"actions,omitempty"`
	// Digest covers every chunk written during the tick.
	Digest string `json:"digest"`
}

// AuditEntry is one sourced event. The log is an audit trail only; the world
// is never rebuilt from it.
type AuditEntry struct {
	Tick     uint64 `json:"tick"`
	UnixMS   int64  `json:"unix_ms"`
	Actor    string `json:"actor"`
	Action   string `json:"action"` // CLICK, DOUBLE_CLICK, FLAG, UNFLAG, CHUNK_GENERATED
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Revealed int    `json:"revealed,omitempty"`
	HitMine  bool   `json:"hit_mine,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// World is the single-writer authority over the minefield.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	now func() time.Time

	tick atomic.Uint64

	store  *store.Store
	engine *reveal.Engine
	board  *scoring.Board
	frames *tilecodec.FrameCache

	clients   map[string]*clientState
	tokens    map[string]string // resume token -> player id
	observers map[string]*observerClient

	inbox         chan ActionEnvelope
	join          chan JoinRequest
	attach        chan AttachRequest
	leave         chan LeaveRequest
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stateReq      chan stateReq
	stop          chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Per-tick bookkeeping for the tick log and observers.
	tickJoins  []RecordedJoin
	tickLeaves []string
	tickAudits []AuditEntry

	counters counters
	metrics  atomic.Value // WorldMetrics
	players  atomic.Value // []observerproto.PlayerState
}

type counters struct {
	actions   uint64
	revealed  uint64
	deaths    uint64
	rects     uint64
	chunks    uint64
	drops     uint64
	resyncs   uint64
	generated uint64
}

// New builds a world. now may be nil, in which case time.Now is used.
func New(cfg WorldConfig, now func() time.Time) (*World, error) {
	cfg.applyDefaults()
	if now == nil {
		now = time.Now
	}
	frames, err := tilecodec.NewFrameCache(cfg.ChunkCacheBytes)
	if err != nil {
		return nil, fmt.Errorf("frame cache: %w", err)
	}
	w := &World{
		cfg: cfg,
		now: now,
		store: store.New(store.Options{
			CreateOnWrite: true,
			Bounds:        cfg.Bounds(),
			Seed:          cfg.Seed,
			MinesPerChunk: cfg.MinesPerChunk,
		}),
		board: scoring.NewBoard(scoring.Config{
			Respawn:       cfg.Respawn,
			RespawnGrowth: cfg.RespawnGrowth,
		}, now),
		frames:        frames,
		clients:       map[string]*clientState{},
		tokens:        map[string]string{},
		observers:     map[string]*observerClient{},
		inbox:         make(chan ActionEnvelope, 1024),
		join:          make(chan JoinRequest, 64),
		attach:        make(chan AttachRequest, 64),
		leave:         make(chan LeaveRequest, 64),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		stateReq:      make(chan stateReq, 8),
		stop:          make(chan struct{}),
	}
	w.engine = reveal.New(w.store, w.board)
	w.players.Store([]observerproto.PlayerState(nil))
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- ActionEnvelope                       { return w.inbox }
func (w *World) Join() chan<- JoinRequest                           { return w.join }
func (w *World) Attach() chan<- AttachRequest                       { return w.attach }
func (w *World) Leave() chan<- LeaveRequest                         { return w.leave }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() WorldConfig { return w.cfg }

// WorldParams is the public parameter block sent in WELCOME.
func (w *World) WorldParams() protocol.WorldParams {
	return protocol.WorldParams{
		TickRateHz:    w.cfg.TickRateHz,
		ChunkSize:     geom.ChunkSize,
		MinesPerChunk: w.cfg.MinesPerChunk,
		BoundaryR:     w.cfg.BoundaryR,
		MaxQueryChunk: w.cfg.MaxQueryChunks,
	}
}

// PlayerStates is the latest per-tick roster, safe to call from any goroutine.
func (w *World) PlayerStates() []observerproto.PlayerState {
	v, _ := w.players.Load().([]observerproto.PlayerState)
	return v
}

// FrameCacheMetrics reports encoded CHUNK frame cache hits and misses.
func (w *World) FrameCacheMetrics() (hits, misses uint64) { return w.frames.Metrics() }

// Close releases resources held outside the loop. Call after Run returns.
func (w *World) Close() { w.frames.Close() }
