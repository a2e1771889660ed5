package export

import (
	"encoding/csv"
	"io"

	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/models"
)

// InchesPerFoot converts plan dimensions, stored in feet, for the layout
// spreadsheet.
const InchesPerFoot = 12

// Headings of the layout spreadsheet. The empty column is left for notes.
var Headings = []string{"name", "empty", "id", "width", "depth"}

// ============================================================
// TSV export
// ============================================================

// WriteTSV writes one row per item, widths and depths in inches. Missing
// dimensions are left blank.
func WriteTSV(w io.Writer, items []*models.Item) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(Headings); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{it.Name, "", it.UniqueID, inches(it.Width), inches(it.Depth)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func inches(feet *float64) string {
	if feet == nil {
		return ""
	}
	return geometry.FormatFloat(*feet * InchesPerFoot)
}
