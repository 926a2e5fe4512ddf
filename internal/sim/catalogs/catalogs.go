package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hexchunk.ai/internal/sim/layout"
)

type Catalogs struct {
	Tiles TileCatalog
}

// TileCatalog describes how each tile variant is presented. Palette is
// indexed by the tile's numeric value, which is what layouts carry on the
// wire and on disk.
type TileCatalog struct {
	Palette       []string
	Index         map[string]uint8
	Defs          map[string]TileDef
	PaletteDigest string
	DefsDigest    string
}

type TileDef struct {
	ID    string `json:"id"`
	Color string `json:"color"`
	Model string `json:"model,omitempty"`
}

type tilesFile struct {
	Tiles []TileDef `json:"tiles"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadTiles(filepath.Join(configDir, "tiles.json"), &c.Tiles); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadTiles(path string, out *TileCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var f tilesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("tiles.json: %w", err)
	}
	out.Defs = map[string]TileDef{}
	for _, d := range f.Tiles {
		if d.ID == "" {
			return fmt.Errorf("tiles.json: empty id")
		}
		if _, err := layout.ParseTileType(d.ID); err != nil {
			return fmt.Errorf("tiles.json: %w", err)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("tiles.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	out.Palette = make([]string, 0, len(layout.TileTypes))
	out.Index = make(map[string]uint8, len(layout.TileTypes))
	for _, t := range layout.TileTypes {
		id := t.String()
		if _, ok := out.Defs[id]; !ok {
			return fmt.Errorf("tiles.json: missing %s", id)
		}
		out.Palette = append(out.Palette, id)
		out.Index[id] = uint8(t)
	}
	palJSON, _ := json.Marshal(out.Palette)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// Ordered lists tile definitions in palette order.
func (c TileCatalog) Ordered() []TileDef {
	out := make([]TileDef, 0, len(c.Palette))
	for _, id := range c.Palette {
		out = append(out, c.Defs[id])
	}
	return out
}
