package protocol

// HELLO (client -> server). Optional; the server greets every connection.
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	ClientName        string   `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	Seed          int64 `json:"seed"`
	ChunkRadius   int   `json:"chunk_radius"`
	CellsPerChunk int   `json:"cells_per_chunk"`
}

type CatalogDigests struct {
	TilePalette  DigestRef `json:"tile_palette"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): a chunk of catalog data.
// Each catalog currently goes out as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // e.g. "tile_palette"
	Digest          string      `json:"digest"` // sha256 hex
	Part            int         `json:"part"`
	TotalParts      int         `json:"total_parts"`
	Data            interface{} `json:"data"`
}

type ChunkRef struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// GENERATE (client -> server): fetch a chunk, generating it on first use.
type GenerateMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RequestID       string   `json:"request_id,omitempty"`
	Chunk           ChunkRef `json:"chunk"`
}

// LAYOUT (server -> client). Tiles are the RLE of tile ids in canonical cell
// order (q ascending, then r ascending).
type LayoutMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	RequestID       string      `json:"request_id,omitempty"`
	Chunk           ChunkRef    `json:"chunk"`
	Radius          int         `json:"radius"`
	Seed            int64       `json:"seed"`
	TilesRLE        string      `json:"tiles_rle"`
	Entries         [6][]int    `json:"entries"`
	Shortfall       int         `json:"shortfall"`
	Digest          string      `json:"digest"`
	Stats           LayoutStats `json:"stats"`
}

type LayoutStats struct {
	Roads     int `json:"roads"`
	Buildings int `json:"buildings"`
	Forest    int `json:"forest"`
	Water     int `json:"water"`
	Grass     int `json:"grass"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	Segment         *int   `json:"segment,omitempty"`
}
