package models

import "fmt"

// ParseError reports a source document that is not a JSON array of item
// records.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DrawError reports an item record that could not be turned into a shape.
type DrawError struct {
	Item   string
	Source string
	Index  int
	Reason string
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("drawing %s (%s #%d): %s", e.Item, e.Source, e.Index, e.Reason)
}
