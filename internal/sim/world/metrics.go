package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players      int `json:"players"`
	Clients      int `json:"clients"`
	Observers    int `json:"observers"`
	LoadedChunks int `json:"loaded_chunks"`
	DirtyChunks  int `json:"dirty_chunks"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	ActionsTotal         uint64 `json:"actions_total"`
	TilesRevealedTotal   uint64 `json:"tiles_revealed_total"`
	DeathsTotal          uint64 `json:"deaths_total"`
	ChunksGeneratedTotal uint64 `json:"chunks_generated_total"`
	RectsSentTotal       uint64 `json:"rects_sent_total"`
	ChunksSentTotal      uint64 `json:"chunks_sent_total"`
	SendDropsTotal       uint64 `json:"send_drops_total"`
	ResyncsTotal         uint64 `json:"resyncs_total"`
}

type QueueDepths struct {
	Inbox        int `json:"inbox"`
	Join         int `json:"join"`
	Leave        int `json:"leave"`
	Attach       int `json:"attach"`
	ObserverJoin int `json:"observer_join"`
}

func (w *World) publishMetrics(tick uint64, dirty int, took time.Duration) {
	w.metrics.Store(WorldMetrics{
		Tick:         tick,
		Players:      w.board.Len(),
		Clients:      len(w.clients),
		Observers:    len(w.observers),
		LoadedChunks: w.store.Len(),
		DirtyChunks:  dirty,
		QueueDepths: QueueDepths{
			Inbox:        len(w.inbox),
			Join:         len(w.join),
			Leave:        len(w.leave),
			Attach:       len(w.attach),
			ObserverJoin: len(w.observerJoin),
		},
		StepMS:               float64(took.Microseconds()) / 1000,
		ActionsTotal:         w.counters.actions,
		TilesRevealedTotal:   w.counters.revealed,
		DeathsTotal:          w.counters.deaths,
		ChunksGeneratedTotal: w.counters.generated,
		RectsSentTotal:       w.counters.rects,
		ChunksSentTotal:      w.counters.chunks,
		SendDropsTotal:       w.counters.drops,
		ResyncsTotal:         w.counters.resyncs,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
