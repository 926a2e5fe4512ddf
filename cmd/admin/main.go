package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hexchunk.ai/internal/persistence/layoutfile"
	persistlog "hexchunk.ai/internal/persistence/log"
	"hexchunk.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "borders":
			bordersCmd(os.Args[2:])
			return
		case "generations":
			generationsCmd(os.Args[2:])
			return
		case "layout":
			layoutCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	matches, err := filepath.Glob(filepath.Join(*dataDir, "layouts", "*.layout.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	for _, p := range matches {
		h, err := layoutfile.ReadHeader(p)
		if err != nil {
			fmt.Printf("%s\terror=%v\n", filepath.Base(p), err)
			continue
		}
		fmt.Printf("%s\tseed=%d\tradius=%d\tchunks=%d\tcreated=%s\n", filepath.Base(p), h.WorldSeed, h.Radius, h.Chunks, h.CreatedAt)
	}
}

// layoutCmd prints a layout file header and, with -q/-r, one chunk as ASCII.
func layoutCmd(args []string) {
	fs := flag.NewFlagSet("layout", flag.ExitOnError)
	path := fs.String("file", "", "layout file path (required)")
	q := fs.Int("q", 0, "chunk q")
	r := fs.Int("r", 0, "chunk r")
	all := fs.Bool("all", false, "list every chunk instead of drawing one")
	_ = fs.Parse(args)

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}
	f, err := layoutfile.Read(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	fmt.Printf("version=%d seed=%d radius=%d chunks=%d created=%s\n", f.Header.Version, f.Header.WorldSeed, f.Header.Radius, f.Header.Chunks, f.Header.CreatedAt)

	if *all {
		for _, ch := range f.Chunks {
			fmt.Printf("(%d,%d)\tseed=%d\tshortfall=%d\tdigest=%s\n", ch.Q, ch.R, ch.Seed, ch.Shortfall, ch.Digest)
		}
		return
	}
	for _, ch := range f.Chunks {
		if ch.Q != *q || ch.R != *r {
			continue
		}
		l, err := world.ImportChunk(f.Header.Radius, ch)
		if err != nil {
			fmt.Fprintln(os.Stderr, "chunk:", err)
			os.Exit(1)
		}
		fmt.Printf("chunk=(%d,%d) digest=%s\n", ch.Q, ch.R, ch.Digest)
		fmt.Printf("entries=%v shortfall=%d\n", l.Entries, l.Shortfall)
		fmt.Print(l.ASCII())
		return
	}
	fmt.Fprintf(os.Stderr, "chunk (%d,%d) not in file\n", *q, *r)
	os.Exit(2)
}

// logCmd dumps the zstd JSONL generation log.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	failed := fs.Bool("failed", false, "only failed generations")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadGenerations(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if *failed && e.Error == "" {
			continue
		}
		_ = enc.Encode(e)
	}
}
