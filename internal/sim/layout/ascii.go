package layout

import (
	"strings"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// Glyph is the one-character form used by ASCII dumps.
func (t TileType) Glyph() byte {
	switch t {
	case TileRoad:
		return '#'
	case TileBuilding:
		return 'B'
	case TileForest:
		return 'T'
	case TileWater:
		return '~'
	default:
		return '.'
	}
}

// ASCII draws the chunk one axial row per line, each row indented by half a
// cell per step away from the centre row.
func (l *Layout) ASCII() string {
	var b strings.Builder
	for r := -l.Radius; r <= l.Radius; r++ {
		indent := r
		if indent < 0 {
			indent = -indent
		}
		b.WriteString(strings.Repeat(" ", indent))
		for q := -l.Radius; q <= l.Radius; q++ {
			t, ok := l.TileAt(hexgrid.Coord{Q: q, R: r})
			if !ok {
				continue
			}
			b.WriteByte(t.Glyph())
			b.WriteByte(' ')
		}
		b.WriteString("\n")
	}
	return b.String()
}
