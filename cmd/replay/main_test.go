package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "minefield.gg/internal/persistence/log"
	"minefield.gg/internal/sim/world"
)

func TestReportFromAuditLog(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditLogger(dir)
	entries := []world.AuditEntry{
		{Tick: 1, Actor: "a", Action: "CLICK", Revealed: 40},
		{Tick: 1, Action: "CHUNK_GENERATED", X: 0, Y: 0},
		{Tick: 2, Actor: "b", Action: "CLICK", Revealed: 1, HitMine: true},
		{Tick: 3, Actor: "b", Action: "FLAG", X: 4, Y: 4},
		{Tick: 9, Actor: "a", Action: "DOUBLE_CLICK", Revealed: 3},
	}
	for _, e := range entries {
		e.UnixMS = time.Now().UnixMilli()
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := listAuditFiles(filepath.Join(dir, "audit"))
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	rep := newReport(filter{To: 5})
	for _, f := range files {
		if err := persistlog.ReadJSONL(f, func(line []byte) error { return decodeInto(rep, line) }); err != nil {
			t.Fatalf("ReadJSONL: %v", err)
		}
	}
	if rep.entries != 4 || rep.first != 1 || rep.last != 3 {
		t.Fatalf("entries=%d ticks=%d..%d", rep.entries, rep.first, rep.last)
	}
	ranked := rep.ranked()
	if len(ranked) != 2 || ranked[0].ID != "a" || ranked[0].Revealed != 40 || ranked[1].Deaths != 1 {
		t.Fatalf("ranked=%+v %+v", ranked[0], ranked[1])
	}

	var buf bytes.Buffer
	rep.print(&buf, 10)
	for _, want := range []string{"entries=4 ticks=1..3", "CHUNK_GENERATED", "player b actions=2 revealed=1 deaths=1"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("report missing %q:\n%s", want, buf.String())
		}
	}
}

func TestFilterByActor(t *testing.T) {
	f := filter{Actor: "a"}
	if !f.match(world.AuditEntry{Actor: "a"}) || f.match(world.AuditEntry{Actor: "b"}) || f.match(world.AuditEntry{}) {
		t.Fatalf("actor filter wrong")
	}
}
