package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"hexchunk.ai/internal/sim/world"
)

// stateReply mirrors GET /admin/v1/state.
type stateReply struct {
	Seed         int64                  `json:"seed"`
	ChunkRadius  int                    `json:"chunk_radius"`
	TuningDigest string                 `json:"tuning_digest"`
	Metrics      world.GeneratorMetrics `json:"metrics"`
}

// exportReply mirrors POST /admin/v1/export.
type exportReply struct {
	OK     bool   `json:"ok"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error"`
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

// decodeReply reads a JSON body into v; non-2xx answers become errors unless
// the body still decodes, so the server's own message is kept.
func decodeReply(resp *http.Response, v any) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
		}
		return fmt.Errorf("decode reply: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s", resp.Status)
	}
	return nil
}

func fetchState(cl *http.Client, base string) (stateReply, error) {
	var out stateReply
	resp, err := cl.Get(adminURL(base, "/admin/v1/state"))
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	return out, decodeReply(resp, &out)
}

func requestExport(cl *http.Client, base string) (exportReply, error) {
	var out exportReply
	req, err := http.NewRequest(http.MethodPost, adminURL(base, "/admin/v1/export"), nil)
	if err != nil {
		return out, err
	}
	resp, err := cl.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := decodeReply(resp, &out); err != nil {
		if out.Error != "" {
			return out, fmt.Errorf("%w: %s", err, out.Error)
		}
		return out, err
	}
	return out, nil
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	st, err := fetchState(&http.Client{Timeout: 5 * time.Second}, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "state:", err)
		os.Exit(1)
	}
	m := st.Metrics
	fmt.Printf("seed=%d chunk_radius=%d tuning=%.12s\n", st.Seed, st.ChunkRadius, st.TuningDigest)
	fmt.Printf("loaded=%d generated=%d failed=%d shortfalls=%d last_ms=%d\n",
		m.LoadedChunks, m.Generated, m.Failed, m.Shortfalls, m.LastMS)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	res, err := requestExport(&http.Client{Timeout: 10 * time.Second}, *baseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
	fmt.Printf("exported %d chunks to %s\n", res.Chunks, res.Path)
}
