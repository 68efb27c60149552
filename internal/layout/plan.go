package layout

import "fmt"

// Layout selects how single card pages are tiled.
type Layout string

const (
	// Pair stacks two A5 landscape pages on an A4 portrait sheet.
	Pair Layout = "pair"
	// Quad tiles four scaled pages on an A4 landscape sheet.
	Quad Layout = "quad"
	// Passthrough copies every page onto its own sheet.
	Passthrough Layout = "passthrough"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case Pair, Quad, Passthrough:
		return l, nil
	}
	return "", fmt.Errorf("unknown layout %q (want pair, quad or passthrough)", s)
}

const (
	QuadScale       = 0.65
	QuadSpacing     = 10.0
	ScaleDownFactor = 0.5
)

// PageRef names page Page (1-based) of source Source.
type PageRef struct {
	Source int
	Page   int
}

// Placement positions one source page on a sheet. The page is scaled
// uniformly by Scale and its origin moved to (TX, TY), in PDF user space
// with the origin at the bottom-left.
type Placement struct {
	Ref   PageRef
	Scale float64
	TX    float64
	TY    float64
}

// Sheet is one output page.
type Sheet struct {
	Width      float64
	Height     float64
	Placements []Placement
}

// Plan partitions sources into card pages and documents, tiles the cards
// with layout and appends every document page through passthrough. Card
// sheets come first. Sources without pages are ignored.
func Plan(sources []Source, layout Layout, scaleDown bool) []Sheet {
	var cards []PageRef
	var docs []int
	for i, s := range sources {
		switch {
		case len(s.Pages) == 0:
			continue
		case s.IsCard() && layout != Passthrough:
			cards = append(cards, PageRef{Source: i, Page: 1})
		default:
			docs = append(docs, i)
		}
	}

	var sheets []Sheet
	switch layout {
	case Pair:
		sheets = PlanPair(cards)
	case Quad:
		sheets = PlanQuad(cards)
	case Passthrough:
	}
	return append(sheets, PlanPassthrough(sources, docs, scaleDown)...)
}

// PlanPair places pages two per A4 portrait sheet: the first flush with the
// top edge, the second at the bottom. An odd last page fills only the top.
func PlanPair(refs []PageRef) []Sheet {
	top := A4Height - A5Height
	var sheets []Sheet
	for i := 0; i < len(refs); i += 2 {
		sh := Sheet{Width: A4Width, Height: A4Height}
		sh.Placements = append(sh.Placements, Placement{Ref: refs[i], Scale: 1, TY: top})
		if i+1 < len(refs) {
			sh.Placements = append(sh.Placements, Placement{Ref: refs[i+1], Scale: 1})
		}
		sheets = append(sheets, sh)
	}
	return sheets
}

// QuadSlots returns the origins of the four grid cells on an A4 landscape
// sheet in fill order: top-left, top-right, bottom-left, bottom-right.
func QuadSlots() [4][2]float64 {
	sheetW, sheetH := A4Height, A4Width
	cellW, cellH := A5Width*QuadScale, A5Height*QuadScale

	marginX := (sheetW - (2*cellW + QuadSpacing)) / 2
	marginY := (sheetH - (2*cellH + QuadSpacing)) / 2

	left, right := marginX, marginX+cellW+QuadSpacing
	bottom, top := marginY, marginY+cellH+QuadSpacing
	return [4][2]float64{
		{left, top},
		{right, top},
		{left, bottom},
		{right, bottom},
	}
}

// PlanQuad places pages four per A4 landscape sheet. Missing slots on the
// last sheet are left out.
func PlanQuad(refs []PageRef) []Sheet {
	slots := QuadSlots()
	var sheets []Sheet
	for i := 0; i < len(refs); i += 4 {
		sh := Sheet{Width: A4Height, Height: A4Width}
		for j := 0; j < 4 && i+j < len(refs); j++ {
			sh.Placements = append(sh.Placements, Placement{
				Ref:   refs[i+j],
				Scale: QuadScale,
				TX:    slots[j][0],
				TY:    slots[j][1],
			})
		}
		sheets = append(sheets, sh)
	}
	return sheets
}

// PlanPassthrough emits one sheet per page of the given sources, at the
// page's own size or scaled by ScaleDownFactor.
func PlanPassthrough(sources []Source, indices []int, scaleDown bool) []Sheet {
	scale := 1.0
	if scaleDown {
		scale = ScaleDownFactor
	}
	var sheets []Sheet
	for _, i := range indices {
		for p, d := range sources[i].Pages {
			sheets = append(sheets, Sheet{
				Width:  d.Width * scale,
				Height: d.Height * scale,
				Placements: []Placement{{
					Ref:   PageRef{Source: i, Page: p + 1},
					Scale: scale,
				}},
			})
		}
	}
	return sheets
}

// PageCount returns the number of placements across sheets.
func PageCount(sheets []Sheet) int {
	n := 0
	for _, s := range sheets {
		n += len(s.Placements)
	}
	return n
}
