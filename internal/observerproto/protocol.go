package observerproto

import "hexchunk.ai/internal/protocol"

// Version is the observer protocol version (separate from the generation WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; re-send to view another area.
type SubscribeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Center          protocol.ChunkRef `json:"center"`
	Rings           int               `json:"rings"`
	MaxChunks       int               `json:"max_chunks"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string              `json:"protocol_version"`
	WorldParams     WorldParams         `json:"world_params"`
	TilePalette     []string            `json:"tile_palette"`
	LoadedChunks    []protocol.ChunkRef `json:"loaded_chunks"`
}

type WorldParams struct {
	Seed          int64 `json:"seed"`
	ChunkRadius   int   `json:"chunk_radius"`
	CellsPerChunk int   `json:"cells_per_chunk"`
	MaxRings      int   `json:"max_rings"`
}

// Server -> Client. One per chunk in the subscribed area, q-then-r order.
type ChunkMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Chunk           protocol.ChunkRef `json:"chunk"`
	TilesRLE        string            `json:"tiles_rle"`
	Entries         [6][]int          `json:"entries"`
	Digest          string            `json:"digest"`
}

// Server -> Client. Sent after the last CHUNK of a subscription.
type AreaDoneMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Center          protocol.ChunkRef `json:"center"`
	Chunks          int               `json:"chunks"`
	Failed          []ChunkError      `json:"failed,omitempty"`
}

type ChunkError struct {
	Chunk   protocol.ChunkRef `json:"chunk"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
}
