package api

import (
	"net/http"
	"strconv"

	"github.com/fogleman/gg"

	"warfront/internal/nav"
	"warfront/internal/nav/field"
)

// handleFieldPNG renders one chunk's flow field toward a query tile as a
// PNG: passable tiles shaded by cost, impassable tiles dark, and a short
// stroke per tile pointing along the flow direction.
//
// GET /debug/field.png?layer=0&chunk_r=0&chunk_c=0&tile_r=32&tile_c=32
func (s *Server) handleFieldPNG(w http.ResponseWriter, r *http.Request) {
	qi := func(name string, def int) int {
		if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil {
			return v
		}
		return def
	}

	layer := nav.Layer(qi("layer", 0))
	if layer >= nav.NumLayers {
		http.Error(w, "bad layer", http.StatusBadRequest)
		return
	}
	chunk := nav.Coord{R: qi("chunk_r", 0), C: qi("chunk_c", 0)}

	data := s.core.NavData()
	ch := data.ChunkAt(layer, chunk)
	if ch == nil {
		http.Error(w, "chunk out of bounds", http.StatusBadRequest)
		return
	}

	target := nav.TileDesc{
		ChunkR: chunk.R, ChunkC: chunk.C,
		TileR: qi("tile_r", ch.TilesH/2), TileC: qi("tile_c", ch.TilesW/2),
	}
	if target.TileR < 0 || target.TileR >= ch.TilesH || target.TileC < 0 || target.TileC >= ch.TilesW {
		http.Error(w, "tile out of bounds", http.StatusBadRequest)
		return
	}

	builder := field.NewBuilder(data)
	id := nav.MakeFieldID(layer, chunk, nav.Target{Kind: nav.TargetTile, Tile: target})
	flow := builder.BuildFlowField(id, nav.Target{Kind: nav.TargetTile, Tile: target})
	if flow == nil {
		http.Error(w, "no field", http.StatusNotFound)
		return
	}

	const px = 10
	dc := gg.NewContext(ch.TilesW*px, ch.TilesH*px)
	dc.SetRGB(0.08, 0.08, 0.1)
	dc.Clear()

	for tr := 0; tr < ch.TilesH; tr++ {
		for tc := 0; tc < ch.TilesW; tc++ {
			x := float64(tc * px)
			y := float64(tr * px)
			switch {
			case !ch.Passable(tr, tc):
				dc.SetRGB(0.25, 0.12, 0.12)
			case ch.Cost(tr, tc) > 1:
				dc.SetRGB(0.35, 0.3, 0.15)
			default:
				dc.SetRGB(0.16, 0.2, 0.16)
			}
			dc.DrawRectangle(x, y, px-1, px-1)
			dc.Fill()

			d := flow.At(tr, tc)
			if d == field.DirNone {
				continue
			}
			v := d.Vec()
			cx, cy := x+px/2, y+px/2
			dc.SetRGB(0.7, 0.85, 1.0)
			dc.SetLineWidth(1)
			dc.DrawLine(cx-v.X*3, cy-v.Z*3, cx+v.X*3, cy+v.Z*3)
			dc.Stroke()
			dc.DrawCircle(cx+v.X*3, cy+v.Z*3, 1)
			dc.Fill()
		}
	}

	// Target marker.
	dc.SetRGB(1, 0.5, 0.2)
	dc.DrawCircle(float64(target.TileC*px)+px/2, float64(target.TileR*px)+px/2, 3)
	dc.Fill()

	w.Header().Set("Content-Type", "image/png")
	dc.EncodePNG(w)
}
