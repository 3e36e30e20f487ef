package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	persistlog "minefield.gg/internal/persistence/log"
	"minefield.gg/internal/sim/tuning"
	"minefield.gg/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults are used when missing)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "mine layout seed (overrides tuning.yaml when set)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite/D1 index (JSONL audit log is still written)")
		logFile    = flag.String("log_file", "", "also write the server log to this file, rotated by size (optional)")
		envFile    = flag.String("env", ".env", "dotenv file with MF_* settings (optional)")
	)
	flag.Parse()

	// Real environment variables win over the file.
	_ = godotenv.Load(*envFile)

	var out io.Writer = os.Stdout
	if p := strings.TrimSpace(*logFile); p != "" {
		rot := &lumberjack.Logger{
			Filename:   p,
			MaxSize:    envInt("MF_LOG_MAX_MB", 64),
			MaxBackups: envInt("MF_LOG_MAX_BACKUPS", 5),
			MaxAge:     envInt("MF_LOG_MAX_AGE_DAYS", 14),
			Compress:   true,
		}
		defer rot.Close()
		out = io.MultiWriter(os.Stdout, rot)
	}
	logger := log.New(out, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.LoadOrDefault(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if flagSet("seed") {
		tune.Seed = *seed
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	// Optional: read-model index backend (does not affect the authority).
	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if tr, ok := idx.(tuningRecorder); ok {
			if err := tr.UpsertTuning(tune); err != nil {
				logger.Printf("index backend: upsert tuning: %v", err)
			}
		}
	}

	w, err := world.New(world.ConfigFromTuning(tune), nil)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	defer w.Close()

	tickLog := persistlog.NewTickLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()
	if idx != nil {
		go syncPlayers(ctx, w, idx, 5*time.Second)
	}

	mux := newMux(w, idx, tune, muxOptions{
		EnableAdmin: envBool("MF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("MF_ENABLE_PPROF_HTTP", false),
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s seed=%d mines_per_chunk=%d boundary_r=%d data=%s",
		*addr, tune.Seed, tune.MinesPerChunk, tune.BoundaryR, filepath.Clean(*dataDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// syncPlayers copies the roster into the index until ctx ends.
func syncPlayers(ctx context.Context, w *world.World, idx playerSink, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			idx.UpsertPlayers(w.PlayerStates())
			return
		case <-t.C:
			idx.UpsertPlayers(w.PlayerStates())
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
