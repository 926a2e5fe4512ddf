package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hexchunk.ai/internal/protocol"
	"hexchunk.ai/internal/sim/catalogs"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/world"
)

// maxInflight bounds concurrent GENERATE requests per connection.
const maxInflight = 4

type Server struct {
	gen          *world.Generator
	cats         *catalogs.Catalogs
	tuningDigest string
	log          *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(gen *world.Generator, cats *catalogs.Catalogs, tuningDigest string, logger *log.Logger) *Server {
	return &Server{
		gen:          gen,
		cats:         cats,
		tuningDigest: tuningDigest,
		log:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, m := range Greeting(s.gen, s.cats, s.tuningDigest) {
			if err := writeJSON(conn, m); err != nil {
				return
			}
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}
		sem := make(chan struct{}, maxInflight)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				send(badRequest("", protocol.ErrProtoBadRequest, "malformed json"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				send(badRequest("", protocol.ErrProtoBadRequest, "bad protocol_version"))
				continue
			}
			switch base.Type {
			case protocol.TypeHello:
				// Greeting already sent.
			case protocol.TypeGenerate:
				var req protocol.GenerateMsg
				if err := json.Unmarshal(msg, &req); err != nil {
					send(badRequest("", protocol.ErrBadRequest, "bad GENERATE"))
					continue
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				go func() {
					defer func() { <-sem }()
					send(s.generate(ctx, req))
				}()
			default:
				send(badRequest("", protocol.ErrBadRequest, "unknown type "+base.Type))
			}
		}
	}
}

// ChunkHandler serves GET ?q=&r= as a LAYOUT message, generating on first use.
func (s *Server) ChunkHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		key, err := hexgrid.ParseChunkKey(r.URL.Query().Get("q"), r.URL.Query().Get("r"))
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(badRequest("", protocol.ErrBadRequest, "bad chunk: "+err.Error()))
			return
		}
		reply := s.generate(r.Context(), protocol.GenerateMsg{Chunk: protocol.ChunkRef{Q: key.Q, R: key.R}})
		if _, ok := reply.(protocol.ErrorMsg); ok {
			rw.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(rw).Encode(reply)
	}
}

func (s *Server) generate(ctx context.Context, req protocol.GenerateMsg) any {
	key := hexgrid.ChunkKey{Q: req.Chunk.Q, R: req.Chunk.R}
	l, err := s.gen.GetOrGenerate(ctx, key)
	if err != nil {
		if s.log != nil {
			s.log.Printf("generate (%d,%d): %v", key.Q, key.R, err)
		}
		return ErrorMessage(req.RequestID, err)
	}
	return LayoutMessage(req.RequestID, key, l)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
