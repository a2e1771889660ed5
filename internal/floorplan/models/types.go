package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ============================================================
// Item
// ============================================================

// Item is one physical thing on the floor plan: furniture, equipment,
// storage. Render handles are owned by the renderers, never by the item.
type Item struct {
	Name           string
	UniqueID       string
	X              *float64
	Y              *float64
	Rotation       float64 // turns, 0..1
	Width          *float64
	Depth          *float64
	PathOutline    string
	StyleClass     string
	Description    string
	DescriptionRef string
	Contents       []*Item
	SourceDocument string

	BookingID   string
	BookingNote string
}

// HasPosition reports whether both x and y are numeric.
func (it *Item) HasPosition() bool {
	return it != nil && it.X != nil && it.Y != nil
}

// Placed reports whether the item has a complete position and footprint.
// Only placed items can be selected.
func (it *Item) Placed() bool {
	return it.HasPosition() && it.Width != nil && it.Depth != nil
}

// RotationDegrees converts the rotation in turns to degrees.
func (it *Item) RotationDegrees() float64 {
	return it.Rotation * 360
}

// ContentNames returns the display names of the direct children.
func (it *Item) ContentNames() []string {
	names := make([]string, 0, len(it.Contents))
	for _, c := range it.Contents {
		names = append(names, c.Name)
	}
	return names
}

// ============================================================
// JSON records
// ============================================================

type record struct {
	Name            json.RawMessage `json:"name"`
	UniqueID        json.RawMessage `json:"unique_id"`
	X               json.RawMessage `json:"x"`
	Y               json.RawMessage `json:"y"`
	Rotation        json.RawMessage `json:"rotation"`
	Width           json.RawMessage `json:"width"`
	Depth           json.RawMessage `json:"depth"`
	PathD           json.RawMessage `json:"path_d"`
	CSSClass        json.RawMessage `json:"cssClass"`
	Description     json.RawMessage `json:"description"`
	DescriptionURI  json.RawMessage `json:"description_uri"`
	Contents        json.RawMessage `json:"contents"`
	ClustermarketID json.RawMessage `json:"clustermarket_id"`
	BookingNote     json.RawMessage `json:"booking_note"`
}

// UnmarshalJSON decodes an item record. Fields of the wrong JSON type are
// treated as absent rather than failing the whole document: a string "5"
// for x leaves the item unplaced, an object for cssClass leaves it
// unstyled. Only a record that is not a JSON object is an error.
func (it *Item) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*it = Item{
		Name:           scalarText(rec.Name),
		UniqueID:       scalarText(rec.UniqueID),
		X:              optionalNumber(rec.X),
		Y:              optionalNumber(rec.Y),
		Width:          optionalNumber(rec.Width),
		Depth:          optionalNumber(rec.Depth),
		PathOutline:    optionalString(rec.PathD),
		StyleClass:     optionalString(rec.CSSClass),
		Description:    scalarText(rec.Description),
		DescriptionRef: optionalString(rec.DescriptionURI),
		BookingID:      scalarText(rec.ClustermarketID),
		BookingNote:    optionalString(rec.BookingNote),
	}
	if r := optionalNumber(rec.Rotation); r != nil {
		it.Rotation = *r
	}

	var contents []json.RawMessage
	if err := json.Unmarshal(rec.Contents, &contents); err != nil {
		contents = nil
	}
	for _, raw := range contents {
		child, err := decodeContent(raw)
		if err != nil {
			return err
		}
		if child != nil {
			it.Contents = append(it.Contents, child)
		}
	}
	return nil
}

// decodeContent promotes a plain name string to a minimal item. Entries
// that are neither a string nor an object are skipped.
func decodeContent(raw json.RawMessage) (*Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '"' && trimmed[0] != '{') {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil, err
		}
		return &Item{Name: name}, nil
	}
	child := &Item{}
	if err := json.Unmarshal(trimmed, child); err != nil {
		return nil, err
	}
	return child, nil
}

// ParseRecords decodes a source document: a JSON array of item records.
func ParseRecords(data []byte) ([]*Item, error) {
	var items []*Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out, nil
}

// optionalNumber returns nil unless raw is a JSON number. null, strings
// and booleans all count as absent.
func optionalNumber(raw json.RawMessage) *float64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	return &v
}

// optionalString returns raw if it is a JSON string, otherwise "".
func optionalString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return ""
	}
	return s
}

// scalarText renders a string or number as text; anything else is empty.
func scalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return ""
	}
	return strings.TrimSpace(n.String())
}
