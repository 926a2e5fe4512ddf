package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hexchunk.ai/internal/observerproto"
	"hexchunk.ai/internal/protocol"
	"hexchunk.ai/internal/sim/catalogs"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/world"
	"hexchunk.ai/internal/transport/ws"
)

type Server struct {
	gen  *world.Generator
	cats *catalogs.Catalogs
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(gen *world.Generator, cats *catalogs.Catalogs, logger *log.Logger) *Server {
	return &Server{
		gen:  gen,
		cats: cats,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		tune := s.gen.Tuning()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldParams: observerproto.WorldParams{
				Seed:          tune.WorldSeed,
				ChunkRadius:   tune.ChunkRadius,
				CellsPerChunk: hexgrid.CellCount(tune.ChunkRadius),
				MaxRings:      tune.Generation.MaxRings,
			},
			LoadedChunks: []protocol.ChunkRef{},
		}
		if s.cats != nil {
			resp.TilePalette = s.cats.Tiles.Palette
		}
		for _, k := range s.gen.LoadedChunkKeys() {
			resp.LoadedChunks = append(resp.LoadedChunks, protocol.ChunkRef{Q: k.Q, R: k.R})
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		subs := make(chan observerproto.SubscribeMsg, 1)
		// Reader loop: the latest SUBSCRIBE replaces a pending one.
		go func() {
			defer cancel()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var sub observerproto.SubscribeMsg
				if err := json.Unmarshal(msg, &sub); err != nil {
					continue
				}
				if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
					continue
				}
				s.normalizeSubscribe(&sub)
				select {
				case <-subs:
				default:
				}
				subs <- sub
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
				return
			case sub := <-subs:
				if err := s.streamArea(ctx, conn, sub); err != nil {
					return
				}
			}
		}
	}
}

// streamArea sends every chunk in the subscribed area, then AREA_DONE.
func (s *Server) streamArea(ctx context.Context, conn *websocket.Conn, sub observerproto.SubscribeMsg) error {
	center := hexgrid.ChunkKey{Q: sub.Center.Q, R: sub.Center.R}
	keys := hexgrid.ChunksWithin(center, sub.Rings)
	if len(keys) > sub.MaxChunks {
		keys = keys[:sub.MaxChunks]
	}
	done := observerproto.AreaDoneMsg{
		Type:            "AREA_DONE",
		ProtocolVersion: observerproto.Version,
		Center:          sub.Center,
	}
	for _, k := range keys {
		ref := protocol.ChunkRef{Q: k.Q, R: k.R}
		l, err := s.gen.GetOrGenerate(ctx, k)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			done.Failed = append(done.Failed, observerproto.ChunkError{Chunk: ref, Code: ws.ErrorCode(err), Message: err.Error()})
			continue
		}
		lm := ws.LayoutMessage("", k, l)
		if err := writeJSON(conn, observerproto.ChunkMsg{
			Type:            "CHUNK",
			ProtocolVersion: observerproto.Version,
			Chunk:           ref,
			TilesRLE:        lm.TilesRLE,
			Entries:         lm.Entries,
			Digest:          lm.Digest,
		}); err != nil {
			return err
		}
		done.Chunks++
	}
	if len(done.Failed) > 0 && s.log != nil {
		s.log.Printf("observer area (%d,%d): %d chunks failed", center.Q, center.R, len(done.Failed))
	}
	return writeJSON(conn, done)
}

func (s *Server) normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.Rings < 0 {
		sub.Rings = 0
	}
	if sub.Rings > 8 {
		sub.Rings = 8
	}
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 256
	}
	if sub.MaxChunks > 1024 {
		sub.MaxChunks = 1024
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
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
