package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"minefield.gg/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dbPath := fs.String("db", "./data/index/minefield.sqlite", "sqlite index path")
	n := fs.Int("n", 10, "rows to print")
	action := fs.String("action", "CLICK", "audit action to count")
	_ = fs.Parse(args[1:])

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "top":
		rows, err := idx.TopPlayers(ctx, *n)
		if err != nil {
			fmt.Fprintln(os.Stderr, "top players:", err)
			os.Exit(1)
		}
		printJSON(rows)
	case "audits":
		c, err := idx.CountAudits(ctx, *action)
		if err != nil {
			fmt.Fprintln(os.Stderr, "count audits:", err)
			os.Exit(1)
		}
		printJSON(map[string]any{"action": *action, "count": c})
	default:
		usage()
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
