package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hexchunk.ai/internal/persistence/borderdb"
	"hexchunk.ai/internal/persistence/layoutfile"
	persistlog "hexchunk.ai/internal/persistence/log"
	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/catalogs"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
	"hexchunk.ai/internal/sim/world"
	"hexchunk.ai/internal/transport/observer"
	"hexchunk.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "override tuning world_seed (0 keeps the file value)")
		disableDB  = flag.Bool("disable_db", false, "keep border commitments in memory only")

		importPath   = flag.String("import", "", "layout file to adopt at startup (optional)")
		exportPath   = flag.String("export", "", "write loaded layouts to this file on shutdown (optional)")
		preloadRings = flag.Int("preload_rings", -1, "generate chunks within this many rings of (0,0) before serving (-1 to skip)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.WorldSeed = *seed
	}
	_ = os.MkdirAll(*dataDir, 0o755)

	ctx, cancel := signalContext()
	defer cancel()

	var (
		store     borders.Store
		genLogger world.GenerationLoggers
	)
	jsonl := persistlog.NewGenerationLogger(*dataDir)
	defer jsonl.Close()
	genLogger = append(genLogger, jsonl)

	_, tuningDigest, err := tune.Canonical()
	if err != nil {
		logger.Fatalf("tuning digest: %v", err)
	}
	if *disableDB {
		store = borders.NewMemStore()
		logger.Printf("border db disabled; commitments are lost on exit")
	} else {
		db, err := borderdb.Open(filepath.Join(*dataDir, "borders.sqlite"))
		if err != nil {
			logger.Fatalf("open border db: %v", err)
		}
		defer db.Close()
		if prev, ok, err := db.Meta(ctx, "tuning_digest"); err == nil && ok && prev != tuningDigest {
			logger.Printf("border db was written with tuning %s; now %s", shortDigest(prev), shortDigest(tuningDigest))
		}
		if _, err := db.UpsertTuning(ctx, tune); err != nil {
			logger.Printf("border db: upsert tuning: %v", err)
		}
		store = db
		genLogger = append(genLogger, db)
	}

	gen, err := world.NewGenerator(world.GeneratorConfig{
		Tuning:    tune,
		Store:     store,
		Logger:    log.New(os.Stdout, "[gen] ", log.LstdFlags|log.Lmicroseconds),
		GenLogger: genLogger,
	})
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}

	if p := strings.TrimSpace(*importPath); p != "" {
		f, err := layoutfile.Read(p)
		if err != nil {
			logger.Fatalf("read layout file: %v", err)
		}
		if err := gen.Import(ctx, f); err != nil {
			logger.Fatalf("import layout file: %v", err)
		}
		logger.Printf("imported %d chunks from %s", len(f.Chunks), filepath.Base(p))
	}
	if *preloadRings >= 0 {
		start := time.Now()
		if err := gen.GenerateArea(ctx, hexgrid.ChunkKey{}, *preloadRings, tune.Workers); err != nil {
			logger.Printf("preload: %v", err)
		}
		logger.Printf("preloaded %d chunks in %s", gen.Metrics().LoadedChunks, time.Since(start).Round(time.Millisecond))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, gen.Metrics(), tune.WorldSeed)
	})

	wsSrv := ws.NewServer(gen, cats, tuningDigest, logger)
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/v1/chunk", wsSrv.ChunkHandler())

	enableAdminHTTP := envBool("HC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("HC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Seed         int64                  `json:"seed"`
				ChunkRadius  int                    `json:"chunk_radius"`
				TuningDigest string                 `json:"tuning_digest"`
				Metrics      world.GeneratorMetrics `json:"metrics"`
			}{
				Seed:         tune.WorldSeed,
				ChunkRadius:  tune.ChunkRadius,
				TuningDigest: tuningDigest,
				Metrics:      gen.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/export", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path := filepath.Join(*dataDir, "layouts", fmt.Sprintf("%d.layout.zst", time.Now().Unix()))
			f := gen.ExportLoaded()
			rw.Header().Set("Content-Type", "application/json")
			if err := layoutfile.Write(path, f); err != nil {
				rw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path, "chunks": len(f.Chunks)})
		})

		obsSrv := observer.NewServer(gen, cats, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (HC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

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

	logger.Printf("listening on %s (seed=%d radius=%d)", *addr, tune.WorldSeed, tune.ChunkRadius)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	if p := strings.TrimSpace(*exportPath); p != "" {
		f := gen.ExportLoaded()
		if err := layoutfile.Write(p, f); err != nil {
			logger.Printf("export: %v", err)
		} else {
			logger.Printf("exported %d chunks to %s", len(f.Chunks), p)
		}
	}
}

func writeMetrics(rw http.ResponseWriter, m world.GeneratorMetrics, seed int64) {
	fmt.Fprintf(rw, "# HELP hexchunk_loaded_chunks Generated chunks held in memory.\n")
	fmt.Fprintf(rw, "# TYPE hexchunk_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "hexchunk_loaded_chunks{seed=\"%d\"} %d\n", seed, m.LoadedChunks)

	fmt.Fprintf(rw, "# HELP hexchunk_generated_total Successful chunk generations.\n")
	fmt.Fprintf(rw, "# TYPE hexchunk_generated_total counter\n")
	fmt.Fprintf(rw, "hexchunk_generated_total{seed=\"%d\"} %d\n", seed, m.Generated)

	fmt.Fprintf(rw, "# HELP hexchunk_failed_total Failed chunk generations.\n")
	fmt.Fprintf(rw, "# TYPE hexchunk_failed_total counter\n")
	fmt.Fprintf(rw, "hexchunk_failed_total{seed=\"%d\"} %d\n", seed, m.Failed)

	fmt.Fprintf(rw, "# HELP hexchunk_shortfall_total Generations that placed fewer buildings than requested.\n")
	fmt.Fprintf(rw, "# TYPE hexchunk_shortfall_total counter\n")
	fmt.Fprintf(rw, "hexchunk_shortfall_total{seed=\"%d\"} %d\n", seed, m.Shortfalls)

	fmt.Fprintf(rw, "# HELP hexchunk_generate_ms Duration of the last generation in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE hexchunk_generate_ms gauge\n")
	fmt.Fprintf(rw, "hexchunk_generate_ms{seed=\"%d\"} %d\n", seed, m.LastMS)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
