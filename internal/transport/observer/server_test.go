package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hexchunk.ai/internal/observerproto"
	"hexchunk.ai/internal/protocol"
	"hexchunk.ai/internal/sim/catalogs"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
	"hexchunk.ai/internal/sim/world"
)

func newTestObserver(t *testing.T, radius int) (*Server, *world.Generator) {
	t.Helper()
	tune := tuning.Defaults()
	tune.ChunkRadius = radius
	tune.WorldSeed = 5
	gen, err := world.NewGenerator(world.GeneratorConfig{Tuning: tune})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return NewServer(gen, cats, nil), gen
}

func hexChunk(q, r int) hexgrid.ChunkKey { return hexgrid.ChunkKey{Q: q, R: r} }

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:5555":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestBootstrap(t *testing.T) {
	s, gen := newTestObserver(t, 2)
	if _, err := gen.GetOrGenerate(context.Background(), hexChunk(0, 0)); err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rr := httptest.NewRecorder()
	s.BootstrapHandler()(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorldParams.ChunkRadius != 2 || resp.WorldParams.CellsPerChunk != 19 {
		t.Fatalf("world params: %+v", resp.WorldParams)
	}
	if len(resp.TilePalette) != 5 || len(resp.LoadedChunks) != 1 {
		t.Fatalf("palette=%v loaded=%v", resp.TilePalette, resp.LoadedChunks)
	}

	remote := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	remote.RemoteAddr = "10.1.2.3:4444"
	rr = httptest.NewRecorder()
	s.BootstrapHandler()(rr, remote)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want 403", rr.Code)
	}
}

func TestWS_StreamsSubscribedArea(t *testing.T) {
	s, gen := newTestObserver(t, 3)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Center:          protocol.ChunkRef{Q: 1, R: 1},
		Rings:           1,
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write: %v", err)
	}

	chunks := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		if base.Type == "CHUNK" {
			var cm observerproto.ChunkMsg
			if err := json.Unmarshal(b, &cm); err != nil {
				t.Fatalf("decode chunk: %v", err)
			}
			l, ok := gen.Chunk(hexChunk(cm.Chunk.Q, cm.Chunk.R))
			if !ok || l.Digest() != cm.Digest {
				t.Fatalf("chunk %+v not cached or digest mismatch", cm.Chunk)
			}
			chunks++
			continue
		}
		if base.Type != "AREA_DONE" {
			t.Fatalf("unexpected message type %s", base.Type)
		}
		var done observerproto.AreaDoneMsg
		if err := json.Unmarshal(b, &done); err != nil {
			t.Fatalf("decode done: %v", err)
		}
		if done.Chunks != 7 || chunks != 7 || len(done.Failed) != 0 {
			t.Fatalf("done=%+v chunks=%d", done, chunks)
		}
		return
	}
}
