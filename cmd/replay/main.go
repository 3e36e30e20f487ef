// Command replay reads the JSONL audit trail written by the server and
// prints per-action and per-player totals.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "minefield.gg/internal/persistence/log"
	"minefield.gg/internal/sim/world"
)

func main() {
	var (
		auditDir = flag.String("audit", "./data/audit", "dir containing audit-*.jsonl.zst")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (inclusive, optional)")
		actor    = flag.String("player", "", "only count entries by this player id (optional)")
		top      = flag.Int("top", 10, "players to list")
	)
	flag.Parse()

	files, err := listAuditFiles(*auditDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit files:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no audit files found in", *auditDir)
		os.Exit(1)
	}

	rep := newReport(filter{From: *fromTick, To: *toTick, Actor: strings.TrimSpace(*actor)})
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error { return decodeInto(rep, line) })
		if err != nil {
			err = fmt.Errorf("%s: %w", filepath.Base(path), err)
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	rep.print(os.Stdout, *top)
}

func decodeInto(r *report, line []byte) error {
	var e world.AuditEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return err
	}
	r.add(e)
	return nil
}

func listAuditFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	// Hourly names sort chronologically.
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type filter struct {
	From, To uint64
	Actor    string
}

func (f filter) match(e world.AuditEntry) bool {
	if e.Tick < f.From || (f.To != 0 && e.Tick > f.To) {
		return false
	}
	return f.Actor == "" || e.Actor == f.Actor
}

type playerTotals struct {
	ID       string
	Actions  int
	Revealed int
	Deaths   int
}

type report struct {
	filter  filter
	entries int
	first   uint64
	last    uint64
	actions map[string]int
	reasons map[string]int
	players map[string]*playerTotals
}

func newReport(f filter) *report {
	return &report{
		filter:  f,
		actions: map[string]int{},
		reasons: map[string]int{},
		players: map[string]*playerTotals{},
	}
}

func (r *report) add(e world.AuditEntry) {
	if !r.filter.match(e) {
		return
	}
	if r.entries == 0 || e.Tick < r.first {
		r.first = e.Tick
	}
	if e.Tick > r.last {
		r.last = e.Tick
	}
	r.entries++
	r.actions[e.Action]++
	if e.Reason != "" {
		r.reasons[e.Reason]++
	}
	if e.Actor == "" {
		return
	}
	p := r.players[e.Actor]
	if p == nil {
		p = &playerTotals{ID: e.Actor}
		r.players[e.Actor] = p
	}
	p.Actions++
	p.Revealed += e.Revealed
	if e.HitMine {
		p.Deaths++
	}
}

// ranked orders players by tiles revealed, then id.
func (r *report) ranked() []*playerTotals {
	out := make([]*playerTotals, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revealed != out[j].Revealed {
			return out[i].Revealed > out[j].Revealed
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *report) print(w io.Writer, top int) {
	fmt.Fprintf(w, "entries=%d ticks=%d..%d players=%d\n", r.entries, r.first, r.last, len(r.players))
	for _, k := range sortedKeys(r.actions) {
		fmt.Fprintf(w, "action %-16s %d\n", k, r.actions[k])
	}
	for _, k := range sortedKeys(r.reasons) {
		fmt.Fprintf(w, "reason %-16s %d\n", k, r.reasons[k])
	}
	for i, p := range r.ranked() {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "player %s actions=%d revealed=%d deaths=%d\n", p.ID, p.Actions, p.Revealed, p.Deaths)
	}
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
