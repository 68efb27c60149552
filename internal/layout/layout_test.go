package layout

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		want SizeClass
	}{
		{"A4 portrait", 595.276, 841.89, A4Portrait},
		{"A4 landscape", 841.89, 595.276, A4Landscape},
		{"A5 landscape", 595.276, 419.528, A5Landscape},
		{"A6 landscape", 419.528, 297.638, A6Landscape},
		{"within tolerance", 599, 838, A4Portrait},
		{"letter is close but out", 612, 792, Unclassified},
		{"square", 100, 100, Unclassified},
		{"A5 portrait is not landscape", 419.528, 595.276, Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.w, tt.h); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSource_Routing(t *testing.T) {
	a5 := Dim{A5Width, A5Height}
	a4 := Dim{A4Width, A4Height}
	tests := []struct {
		name  string
		src   Source
		card  bool
		isDoc bool
		class SizeClass
	}{
		{"single A5", Source{Pages: []Dim{a5}}, true, false, A5Landscape},
		{"single A6", Source{Pages: []Dim{{A6Width, A6Height}}}, true, false, A6Landscape},
		{"multi-page A5 is a document", Source{Pages: []Dim{a5, a5}}, false, true, A5Landscape},
		{"single A4", Source{Pages: []Dim{a4}}, false, false, A4Portrait},
		{"empty", Source{}, false, false, Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.IsCard(); got != tt.card {
				t.Errorf("IsCard = %v, want %v", got, tt.card)
			}
			if got := tt.src.IsDocument(); got != tt.isDoc {
				t.Errorf("IsDocument = %v, want %v", got, tt.isDoc)
			}
			if got := tt.src.Class(); got != tt.class {
				t.Errorf("Class = %q, want %q", got, tt.class)
			}
		})
	}
}

func cardSources(n int) []Source {
	out := make([]Source, n)
	for i := range out {
		out[i] = Source{Path: "card.pdf", Pages: []Dim{{A5Width, A5Height}}}
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestPlan_Pair(t *testing.T) {
	sheets := Plan(cardSources(3), Pair, false)
	if len(sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(sheets))
	}
	for _, sh := range sheets {
		if sh.Width != A4Width || sh.Height != A4Height {
			t.Errorf("sheet is %.3fx%.3f, want A4 portrait", sh.Width, sh.Height)
		}
	}
	first := sheets[0].Placements
	if len(first) != 2 {
		t.Fatalf("first sheet has %d pages, want 2", len(first))
	}
	if !near(first[0].TY, A4Height-A5Height) || first[0].TX != 0 {
		t.Errorf("top placement at (%.3f, %.3f)", first[0].TX, first[0].TY)
	}
	if first[1].TY != 0 || first[1].TX != 0 {
		t.Errorf("bottom placement at (%.3f, %.3f)", first[1].TX, first[1].TY)
	}
	last := sheets[1].Placements
	if len(last) != 1 || !near(last[0].TY, A4Height-A5Height) {
		t.Errorf("odd page should fill only the top half: %+v", last)
	}
	if last[0].Ref.Source != 2 {
		t.Errorf("last sheet holds source %d, want 2", last[0].Ref.Source)
	}
}

func TestPlan_Quad(t *testing.T) {
	sheets := Plan(cardSources(5), Quad, false)
	if len(sheets) != 2 {
		t.Fatalf("got %d sheets, want 2", len(sheets))
	}
	if n := len(sheets[0].Placements); n != 4 {
		t.Errorf("first sheet has %d pages, want 4", n)
	}
	if n := len(sheets[1].Placements); n != 1 {
		t.Errorf("second sheet has %d pages, want 1", n)
	}
	sh := sheets[0]
	if sh.Width != A4Height || sh.Height != A4Width {
		t.Errorf("sheet is %.3fx%.3f, want A4 landscape", sh.Width, sh.Height)
	}

	p := sh.Placements
	cellW, cellH := A5Width*QuadScale, A5Height*QuadScale
	// Symmetric margins.
	left := p[0].TX
	right := sh.Width - (p[1].TX + cellW)
	if !near(left, right) {
		t.Errorf("horizontal margins %.3f and %.3f differ", left, right)
	}
	bottom := p[2].TY
	top := sh.Height - (p[0].TY + cellH)
	if !near(bottom, top) {
		t.Errorf("vertical margins %.3f and %.3f differ", bottom, top)
	}
	// Spacing between cells.
	if !near(p[1].TX-(p[0].TX+cellW), QuadSpacing) {
		t.Errorf("column gap = %.3f", p[1].TX-(p[0].TX+cellW))
	}
	if !near(p[0].TY-(p[2].TY+cellH), QuadSpacing) {
		t.Errorf("row gap = %.3f", p[0].TY-(p[2].TY+cellH))
	}
	// Fill order TL, TR, BL, BR.
	if !(p[0].TY == p[1].TY && p[2].TY == p[3].TY && p[0].TX == p[2].TX && p[1].TX == p[3].TX) {
		t.Errorf("unexpected slot order: %+v", p)
	}
	for _, pl := range p {
		if pl.Scale != QuadScale {
			t.Errorf("scale = %v, want %v", pl.Scale, QuadScale)
		}
	}
	// The lone page on the last sheet takes the top-left slot.
	if lone := sheets[1].Placements[0]; lone.TX != p[0].TX || lone.TY != p[0].TY {
		t.Errorf("lone page at (%.3f, %.3f)", lone.TX, lone.TY)
	}
}

func TestPlan_DocumentsPassThroughAfterCards(t *testing.T) {
	doc := Source{Path: "toc.pdf", Pages: []Dim{{A4Width, A4Height}, {A4Width, A4Height}}}
	sources := append([]Source{doc}, cardSources(2)...)

	sheets := Plan(sources, Pair, true)
	if len(sheets) != 3 {
		t.Fatalf("got %d sheets, want 3", len(sheets))
	}
	if sheets[0].Placements[0].Ref.Source != 1 {
		t.Error("card sheets must come first")
	}
	for i, sh := range sheets[1:] {
		if !near(sh.Width, A4Width*ScaleDownFactor) || !near(sh.Height, A4Height*ScaleDownFactor) {
			t.Errorf("passthrough sheet %d is %.3fx%.3f", i, sh.Width, sh.Height)
		}
		pl := sh.Placements[0]
		if pl.Scale != ScaleDownFactor || pl.TX != 0 || pl.TY != 0 {
			t.Errorf("passthrough placement %+v", pl)
		}
		if pl.Ref != (PageRef{Source: 0, Page: i + 1}) {
			t.Errorf("passthrough ref %+v", pl.Ref)
		}
	}
}

func TestPlan_PassthroughLayout(t *testing.T) {
	sheets := Plan(cardSources(3), Passthrough, false)
	if len(sheets) != 3 {
		t.Fatalf("got %d sheets, want 3", len(sheets))
	}
	if sheets[0].Width != A5Width || sheets[0].Placements[0].Scale != 1 {
		t.Errorf("unexpected sheet %+v", sheets[0])
	}
	if PageCount(sheets) != 3 {
		t.Errorf("PageCount = %d", PageCount(sheets))
	}
}

func TestPlan_Empty(t *testing.T) {
	if sheets := Plan([]Source{{Path: "broken.pdf"}}, Quad, false); len(sheets) != 0 {
		t.Errorf("got %d sheets, want 0", len(sheets))
	}
}

func TestParseLayout(t *testing.T) {
	for _, s := range []string{"pair", "quad", "passthrough"} {
		if _, err := ParseLayout(s); err != nil {
			t.Errorf("ParseLayout(%q): %v", s, err)
		}
	}
	if _, err := ParseLayout("grid"); err == nil {
		t.Error("expected an error for an unknown layout")
	}
}
