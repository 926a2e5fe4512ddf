package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hexchunk.ai/internal/persistence/borderdb"
)

func openDB(dataDir, dbPath string) *borderdb.DB {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "borders.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	db, err := borderdb.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func bordersCmd(args []string) {
	fs := flag.NewFlagSet("borders", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	asJSON := fs.Bool("json", false, "print JSON lines")
	_ = fs.Parse(args)

	db := openDB(*dataDir, *dbPath)
	defer db.Close()

	ctx := context.Background()
	if digest, ok, err := db.Meta(ctx, "tuning_digest"); err == nil && ok {
		fmt.Fprintf(os.Stderr, "tuning_digest=%s\n", digest)
	}
	list, err := db.List(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, c := range list {
		if *asJSON {
			_ = enc.Encode(c)
			continue
		}
		fmt.Printf("(%d,%d)\tseg=%d\tpositions=%v\n", c.Key.Chunk.Q, c.Key.Chunk.R, c.Key.Segment, c.Positions)
	}
}

func generationsCmd(args []string) {
	fs := flag.NewFlagSet("generations", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	db := openDB(*dataDir, *dbPath)
	defer db.Close()

	rows, err := db.Generations(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
}
