package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"minefield.gg/internal/persistence/indexdb"
	"minefield.gg/internal/sim/tuning"
	"minefield.gg/internal/sim/world"
	"minefield.gg/internal/transport/observer"
	"minefield.gg/internal/transport/ws"
)

type muxOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func newMux(w *world.World, idx indexdb.Index, tune tuning.Tuning, opts muxOptions, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeWorldMetrics(rw, w)
		if idx != nil {
			writeIndexMetrics(rw, idx.Stats())
		}
	})

	if opts.EnableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			st, err := w.RequestState(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(st)
		})
		mux.HandleFunc("/admin/v1/tuning", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(tune)
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (MF_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	wsSrv := ws.NewServer(w, logger)
	wsSrv.SetRateLimits(tune.RateLimits)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

func writeWorldMetrics(rw io.Writer, w *world.World) {
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}
	hits, misses := w.FrameCacheMetrics()

	// Minimal Prometheus exposition format.
	gauge(rw, "minefield_world_tick", "Current world tick.", tick)
	gauge(rw, "minefield_world_players", "Players on the scoreboard.", m.Players)
	gauge(rw, "minefield_world_clients", "Current number of connected clients.", m.Clients)
	gauge(rw, "minefield_world_observers", "Current number of observer sessions.", m.Observers)
	gauge(rw, "minefield_world_loaded_chunks", "Materialized chunk count.", m.LoadedChunks)
	gauge(rw, "minefield_world_dirty_chunks", "Chunks written during the last tick.", m.DirtyChunks)

	fmt.Fprintf(rw, "# HELP minefield_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE minefield_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "minefield_world_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "minefield_world_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "minefield_world_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)
	fmt.Fprintf(rw, "minefield_world_queue_depth{queue=%q} %d\n", "attach", m.QueueDepths.Attach)
	fmt.Fprintf(rw, "minefield_world_queue_depth{queue=%q} %d\n", "observer_join", m.QueueDepths.ObserverJoin)

	fmt.Fprintf(rw, "# HELP minefield_world_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE minefield_world_step_ms gauge\n")
	fmt.Fprintf(rw, "minefield_world_step_ms %.3f\n", m.StepMS)

	counter(rw, "minefield_actions_total", "Player actions applied.", m.ActionsTotal)
	counter(rw, "minefield_tiles_revealed_total", "Tiles revealed by clicks and chords.", m.TilesRevealedTotal)
	counter(rw, "minefield_deaths_total", "Mines hit.", m.DeathsTotal)
	counter(rw, "minefield_chunks_generated_total", "Chunks that received their mines.", m.ChunksGeneratedTotal)
	counter(rw, "minefield_rects_sent_total", "RECT messages queued to clients.", m.RectsSentTotal)
	counter(rw, "minefield_chunks_sent_total", "CHUNK snapshots queued to clients and observers.", m.ChunksSentTotal)
	counter(rw, "minefield_send_drops_total", "Messages dropped on full session queues.", m.SendDropsTotal)
	counter(rw, "minefield_resyncs_total", "View resyncs after dropped messages.", m.ResyncsTotal)
	counter(rw, "minefield_frame_cache_hits_total", "Encoded CHUNK frame cache hits.", hits)
	counter(rw, "minefield_frame_cache_misses_total", "Encoded CHUNK frame cache misses.", misses)
}

func writeIndexMetrics(rw io.Writer, s indexdb.Stats) {
	gauge(rw, "minefield_index_queue_depth", "Index write queue depth.", s.QueueDepth)
	gauge(rw, "minefield_index_queue_capacity", "Index write queue capacity.", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP minefield_index_dropped_total Index rows dropped on a full queue.\n")
	fmt.Fprintf(rw, "# TYPE minefield_index_dropped_total counter\n")
	fmt.Fprintf(rw, "minefield_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "minefield_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "minefield_index_dropped_total{kind=%q} %d\n", "player", s.DropPlayerTotal)

	counter(rw, "minefield_index_flush_fail_total", "Failed index flushes.", s.FlushFailTotal)
}

func gauge[T int | uint64](rw io.Writer, name, help string, v T) {
	fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
}

func counter(rw io.Writer, name, help string, v uint64) {
	fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
