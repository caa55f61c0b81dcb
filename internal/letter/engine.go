package letter

import "io"

// FieldValue is one form field assignment.
type FieldValue struct {
	Name  string
	Value string
}

// FillReport describes the non-fatal parts of a fill.
type FillReport struct {
	Flattened int
	// StripErr is set when removing the interactive form or annotations
	// failed. The written document is still usable.
	StripErr error
}

// Engine fills, flattens and writes a PDF form.
type Engine interface {
	FieldNames(template io.ReadSeeker) ([]string, error)
	Fill(template io.ReadSeeker, values []FieldValue, w io.Writer) (*FillReport, error)
}
