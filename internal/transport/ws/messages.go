package ws

import (
	"errors"

	"hexchunk.ai/internal/protocol"
	"hexchunk.ai/internal/sim/catalogs"
	"hexchunk.ai/internal/sim/encoding"
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/world"
)

// LayoutMessage renders a generated chunk as a LAYOUT message.
func LayoutMessage(requestID string, key hexgrid.ChunkKey, l *layout.Layout) protocol.LayoutMsg {
	ids := make([]uint8, len(l.Tiles))
	for i, t := range l.Tiles {
		ids[i] = uint8(t)
	}
	return protocol.LayoutMsg{
		Type:            protocol.TypeLayout,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Chunk:           protocol.ChunkRef{Q: key.Q, R: key.R},
		Radius:          l.Radius,
		Seed:            l.Seed,
		TilesRLE:        encoding.EncodeRLE(ids),
		Entries:         l.Entries,
		Shortfall:       l.Shortfall,
		Digest:          l.Digest(),
		Stats: protocol.LayoutStats{
			Roads:     l.Stats.Roads,
			Buildings: l.Stats.Buildings,
			Forest:    l.Stats.Forest,
			Water:     l.Stats.Water,
			Grass:     l.Stats.Grass,
		},
	}
}

// DecodeLayout turns a LAYOUT message back into a layout, checking the
// digest.
func DecodeLayout(m protocol.LayoutMsg) (*layout.Layout, error) {
	ids, err := encoding.DecodeRLE(m.TilesRLE, hexgrid.CellCount(hexgrid.MaxRings))
	if err != nil {
		return nil, err
	}
	tiles := make([]layout.TileType, len(ids))
	for i, b := range ids {
		tiles[i] = layout.TileType(b)
	}
	l, err := layout.FromTiles(m.Radius, m.Seed, tiles, m.Entries, m.Shortfall)
	if err != nil {
		return nil, err
	}
	if l.Digest() != m.Digest {
		return nil, errors.New("layout digest mismatch")
	}
	return l, nil
}

// ErrorCode maps a generation failure to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, layout.ErrInvalidRadius):
		return protocol.ErrInvalidRadius
	case errors.Is(err, layout.ErrInsufficientGridSize):
		return protocol.ErrInsufficientGrid
	case errors.Is(err, layout.ErrUnreachableBorder):
		return protocol.ErrUnreachableBorder
	case errors.Is(err, layout.ErrBorderConflict):
		return protocol.ErrBorderConflict
	default:
		return protocol.ErrInternal
	}
}

func ErrorMessage(requestID string, err error) protocol.ErrorMsg {
	m := protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            ErrorCode(err),
		Message:         err.Error(),
	}
	var ge *layout.Error
	if errors.As(err, &ge) && ge.Segment >= 0 {
		seg := ge.Segment
		m.Segment = &seg
	}
	return m
}

func badRequest(requestID, code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		RequestID:       requestID,
		Code:            code,
		Message:         msg,
	}
}

// Greeting builds the WELCOME and CATALOG messages sent on connect.
func Greeting(gen *world.Generator, cats *catalogs.Catalogs, tuningDigest string) []any {
	tune := gen.Tuning()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldParams: protocol.WorldParams{
			Seed:          tune.WorldSeed,
			ChunkRadius:   tune.ChunkRadius,
			CellsPerChunk: hexgrid.CellCount(tune.ChunkRadius),
		},
		Catalogs: protocol.CatalogDigests{TuningDigest: tuningDigest},
	}
	out := []any{&welcome}
	if cats != nil {
		welcome.Catalogs.TilePalette = protocol.DigestRef{Digest: cats.Tiles.PaletteDigest, Count: len(cats.Tiles.Palette)}
		out = append(out, protocol.CatalogMsg{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "tile_palette",
			Digest:          cats.Tiles.PaletteDigest,
			Part:            1,
			TotalParts:      1,
			Data:            cats.Tiles.Ordered(),
		})
	}
	return out
}
