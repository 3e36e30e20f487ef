// Package indexdb keeps a queryable secondary index of the audit trail and
// player standings. Writers never block the world loop: rows are queued and
// dropped when the queue is full. The JSONL audit log stays the source of
// truth.
package indexdb

import (
	"minefield.gg/internal/observerproto"
	"minefield.gg/internal/sim/world"
)

// Index is implemented by every backend.
type Index interface {
	world.TickLogger
	world.AuditLogger
	UpsertPlayers(players []observerproto.PlayerState)
	Stats() Stats
	Close() error
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropTickTotal   uint64 `json:"drop_tick_total"`
	DropAuditTotal  uint64 `json:"drop_audit_total"`
	DropPlayerTotal uint64 `json:"drop_player_total"`

	FlushFailTotal uint64 `json:"flush_fail_total"`
}

var (
	_ Index = (*SQLiteIndex)(nil)
	_ Index = (*D1Index)(nil)
)
