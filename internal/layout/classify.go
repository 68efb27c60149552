// Package layout classifies PDF pages by physical size and plans how they
// are placed onto printable sheets. It performs no I/O.
package layout

import "math"

// SizeClass is a named page-dimension bucket.
type SizeClass string

const (
	A4Portrait   SizeClass = "A4-portrait"
	A4Landscape  SizeClass = "A4-landscape"
	A5Landscape  SizeClass = "A5-landscape"
	A6Landscape  SizeClass = "A6-landscape"
	Unclassified SizeClass = "unclassified"
)

// Reference dimensions in points (1/72 inch).
const (
	A4Width  = 595.276
	A4Height = 841.89
	A5Width  = 595.276
	A5Height = 419.528
	A6Width  = 419.528
	A6Height = 297.638

	// Tolerance is the allowed deviation per dimension, in points.
	Tolerance = 5.0
)

// Dim is a width/height pair in points.
type Dim struct {
	Width  float64
	Height float64
}

type sizeRef struct {
	class SizeClass
	dim   Dim
}

// classOrder is the priority in which classes are tested.
var classOrder = []sizeRef{
	{A4Portrait, Dim{A4Width, A4Height}},
	{A4Landscape, Dim{A4Height, A4Width}},
	{A5Landscape, Dim{A5Width, A5Height}},
	{A6Landscape, Dim{A6Width, A6Height}},
}

// Classify returns the first class whose reference dimensions are both
// within Tolerance of (w, h), or Unclassified.
func Classify(w, h float64) SizeClass {
	for _, ref := range classOrder {
		if math.Abs(w-ref.dim.Width) <= Tolerance && math.Abs(h-ref.dim.Height) <= Tolerance {
			return ref.class
		}
	}
	return Unclassified
}

// Dims returns the reference dimensions of a class. ok is false for
// Unclassified.
func (c SizeClass) Dims() (d Dim, ok bool) {
	for _, ref := range classOrder {
		if ref.class == c {
			return ref.dim, true
		}
	}
	return Dim{}, false
}

// Source is one probed input file.
type Source struct {
	Path  string
	Pages []Dim
}

// Class classifies the file's first page.
func (s Source) Class() SizeClass {
	if len(s.Pages) == 0 {
		return Unclassified
	}
	return Classify(s.Pages[0].Width, s.Pages[0].Height)
}

// IsDocument reports whether the file is an already-composed multi-page
// document rather than a single placeable page.
func (s Source) IsDocument() bool {
	return len(s.Pages) > 1
}

// IsCard reports whether the file is a single small landscape page that
// goes through pair or quad tiling.
func (s Source) IsCard() bool {
	if s.IsDocument() || len(s.Pages) == 0 {
		return false
	}
	switch s.Class() {
	case A5Landscape, A6Landscape:
		return true
	case A4Portrait, A4Landscape, Unclassified:
		return false
	}
	return false
}
