package selection

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"floorplan/internal/floorplan/geometry"
)

// ============================================================
// Target indicator
// ============================================================

// Indicator is the circle around the selected shape and the leader line
// from the description panel to the circle, in screen coordinates.
type Indicator struct {
	Center geometry.Point `json:"center"`
	Radius float64        `json:"radius"`
	Anchor geometry.Point `json:"anchor"`
	End    geometry.Point `json:"end"`
}

// ComputeIndicator places the target around shape and runs the leader
// line from the bottom center of panel to the near side of the circle.
func ComputeIndicator(shape, panel geometry.Box) Indicator {
	center := shape.Center()
	radius := geometry.TargetRadius(shape)
	anchor := panel.BottomCenter()
	return Indicator{
		Center: center,
		Radius: radius,
		Anchor: anchor,
		End:    center.Sub(geometry.PerimeterOffset(center, radius, anchor)),
	}
}

// LinePath is the leader line as SVG path data.
func (ind Indicator) LinePath() string {
	return fmt.Sprintf("M %s L %s", geometry.FormatPoint(ind.Anchor), geometry.FormatPoint(ind.End))
}

// RenderOverlay writes an SVG of the given screen size holding the
// indicator, or an empty overlay when there is none.
func RenderOverlay(w io.Writer, width, height int, ind *Indicator) {
	canvas := svg.New(w)
	canvas.Start(width, height, `class="target-overlay"`)
	if ind != nil {
		canvas.Circle(round(ind.Center.X), round(ind.Center.Y), round(ind.Radius),
			`class="target"`, "fill:none;stroke:red;stroke-width:2")
		canvas.Path(ind.LinePath(), `class="target-line"`, "fill:none;stroke:red;stroke-width:2")
	}
	canvas.End()
}

func round(v float64) int {
	return int(math.Round(v))
}
