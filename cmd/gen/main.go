package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hexchunk.ai/internal/persistence/borderdb"
	"hexchunk.ai/internal/persistence/layoutfile"
	persistlog "hexchunk.ai/internal/persistence/log"
	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
	"hexchunk.ai/internal/sim/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		out        = flag.String("out", "", "layout file path (default: <data>/layouts/<unix>.layout.zst)")
		seed       = flag.Int64("seed", 0, "override tuning world_seed (0 keeps the file value)")
		radius     = flag.Int("radius", -1, "override tuning chunk_radius (-1 keeps the file value)")
		q          = flag.Int("q", 0, "center chunk q")
		r          = flag.Int("r", 0, "center chunk r")
		rings      = flag.Int("rings", 2, "generate chunks within this many rings of the center")
		workers    = flag.Int("workers", 0, "parallel workers (0 uses tuning workers)")
		useDB      = flag.Bool("db", true, "persist border commitments in <data>/borders.sqlite")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[gen] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *seed != 0 {
		tune.WorldSeed = *seed
	}
	if *radius >= 0 {
		tune.ChunkRadius = *radius
	}

	// Runs after the deferred closes below so logs and the db are flushed.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jsonl := persistlog.NewGenerationLogger(*dataDir)
	defer jsonl.Close()
	genLoggers := world.GenerationLoggers{jsonl}

	var store borders.Store = borders.NewMemStore()
	if *useDB {
		db, err := borderdb.Open(filepath.Join(*dataDir, "borders.sqlite"))
		if err != nil {
			logger.Fatalf("open border db: %v", err)
		}
		defer db.Close()
		if _, err := db.UpsertTuning(ctx, tune); err != nil {
			logger.Printf("border db: upsert tuning: %v", err)
		}
		store = db
		genLoggers = append(genLoggers, db)
	}

	gen, err := world.NewGenerator(world.GeneratorConfig{
		Tuning:    tune,
		Store:     store,
		Logger:    logger,
		GenLogger: genLoggers,
	})
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}

	center := hexgrid.ChunkKey{Q: *q, R: *r}
	start := time.Now()
	areaErr := gen.GenerateArea(ctx, center, *rings, *workers)
	m := gen.Metrics()
	logger.Printf("generated %d chunks (%d failed, %d short on buildings) in %s",
		m.Generated, m.Failed, m.Shortfalls, time.Since(start).Round(time.Millisecond))
	if areaErr != nil {
		logger.Printf("area: %v", areaErr)
	}
	if bad := gen.Unstable(); len(bad) > 0 {
		logger.Printf("%d chunks do not re-merge to their stored tiles: %v", len(bad), bad)
		exitCode = 1
	}

	path := strings.TrimSpace(*out)
	if path == "" {
		path = filepath.Join(*dataDir, "layouts", fmt.Sprintf("%d.layout.zst", time.Now().Unix()))
	}
	f := gen.ExportLoaded()
	if err := layoutfile.Write(path, f); err != nil {
		logger.Fatalf("write layout file: %v", err)
	}
	logger.Printf("wrote %d chunks to %s", len(f.Chunks), path)
	if areaErr != nil {
		exitCode = 1
	}
}
