package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"hexchunk.ai/internal/protocol"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/transport/ws"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		q     = flag.Int("q", 0, "center chunk q")
		r     = flag.Int("r", 0, "center chunk r")
		rings = flag.Int("rings", 1, "request every chunk within this many rings of the center")
		draw  = flag.Bool("draw", false, "print each layout as ASCII")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:              protocol.TypeHello,
		ProtocolVersion:   protocol.Version,
		SupportedVersions: []string{protocol.Version},
		ClientName:        *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	keys := hexgrid.ChunksWithin(hexgrid.ChunkKey{Q: *q, R: *r}, *rings)
	for i, k := range keys {
		req := protocol.GenerateMsg{
			Type:            protocol.TypeGenerate,
			ProtocolVersion: protocol.Version,
			RequestID:       fmt.Sprintf("G%d", i+1),
			Chunk:           protocol.ChunkRef{Q: k.Q, R: k.R},
		}
		if err := conn.WriteJSON(req); err != nil {
			logger.Fatalf("send GENERATE: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	pending := len(keys)
	for pending > 0 {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME seed=%d chunk_radius=%d cells=%d palette=%d", w.WorldParams.Seed, w.WorldParams.ChunkRadius, w.WorldParams.CellsPerChunk, w.Catalogs.TilePalette.Count)

		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			logger.Printf("CATALOG %s digest=%.12s", c.Name, c.Digest)

		case protocol.TypeLayout:
			pending--
			var lm protocol.LayoutMsg
			if err := json.Unmarshal(msg, &lm); err != nil {
				continue
			}
			l, err := ws.DecodeLayout(lm)
			if err != nil {
				logger.Printf("LAYOUT %s (%d,%d): %v", lm.RequestID, lm.Chunk.Q, lm.Chunk.R, err)
				continue
			}
			logger.Printf("LAYOUT %s (%d,%d) roads=%d buildings=%d shortfall=%d digest=%.12s",
				lm.RequestID, lm.Chunk.Q, lm.Chunk.R, lm.Stats.Roads, lm.Stats.Buildings, lm.Shortfall, lm.Digest)
			if *draw {
				fmt.Println(l.ASCII())
			}

		case protocol.TypeError:
			pending--
			var em protocol.ErrorMsg
			if err := json.Unmarshal(msg, &em); err != nil {
				continue
			}
			logger.Printf("ERROR %s %s: %s", em.RequestID, em.Code, em.Message)
		}
	}
}
