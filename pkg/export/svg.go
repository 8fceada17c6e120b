package export

import (
	"io"
	"strconv"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/taggrove/pkg/hierarchy"
	"github.com/vanderheijden86/taggrove/pkg/model"
)

const (
	svgRowHeight   = 28
	svgIndentStep  = 28
	svgMarginX     = 20
	svgMarginY     = 20
	svgSwatchSize  = 12
	svgLabelOffset = 20
	svgWidth       = 720
)

// WriteSVG renders the pre-ordered listing as a simple indented tree diagram:
// one row per node, a color swatch per row, usage counts on tags, a dashed
// marker on orphans.
func WriteSVG(w io.Writer, entries []hierarchy.Entry, usage map[string]int) {
	height := 2*svgMarginY + svgRowHeight*len(entries)
	if len(entries) == 0 {
		height = 2*svgMarginY + svgRowHeight
	}

	canvas := svg.New(w)
	canvas.Start(svgWidth, height)
	canvas.Rect(0, 0, svgWidth, height, "fill:#1e222a")

	if len(entries) == 0 {
		canvas.Text(svgMarginX, svgMarginY+svgRowHeight/2,
			"empty tree", "fill:#abb2bf;font-family:monospace;font-size:14px")
		canvas.End()
		return
	}

	for i, e := range entries {
		x := svgMarginX + (int(e.Node.Level)-1)*svgIndentStep
		y := svgMarginY + i*svgRowHeight

		swatchStyle := "fill:" + e.Node.DisplayColor()
		if e.Orphan {
			swatchStyle += ";stroke:#e05561;stroke-width:2;stroke-dasharray:3"
		}
		canvas.Rect(x, y+(svgRowHeight-svgSwatchSize)/2, svgSwatchSize, svgSwatchSize, swatchStyle)

		label := e.Node.Name
		if e.Node.Level == model.LevelTag {
			if count := usage[e.Node.ID]; count > 0 {
				label += "  (" + strconv.Itoa(count) + ")"
			}
		}
		if e.Orphan {
			label += "  [orphan]"
		}
		canvas.Text(x+svgLabelOffset, y+svgRowHeight/2+5, label,
			"fill:#dcdfe4;font-family:monospace;font-size:14px")
	}

	canvas.End()
}
