package normalize

import (
	"regexp"
	"strconv"
	"testing"
)

func TestImagePaths(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nested relative", `<img src="images/chapter1/figure1.png" alt="x">`, `<img src="figure1.png" alt="x">`},
		{"dot relative", `<img src="./media/subfolder/image.jpg">`, `<img src="image.jpg">`},
		{"absolute", `<img src="/absolute/path/to/image.gif">`, `<img src="image.gif">`},
		{"backslashes", `<img src="C:\books\media\cover.JPEG">`, `<img src="cover.JPEG">`},
		{"already bare", `<img src="image.png">`, `<img src="image.png">`},
		{"svg and webp", `<img src="a/b.svg"><img src="c/d.webp">`, `<img src="b.svg"><img src="d.webp">`},
		{"other extension untouched", `<script src="js/app.js"></script>`, `<script src="js/app.js"></script>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImagePaths(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if again := ImagePaths(got); again != got {
				t.Errorf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestImageWhitespace(t *testing.T) {
	input := "<p>a  b</p><img\n   src=\"x.png\"\n\talt=\"y\">"
	want := "<p>a  b</p><img src=\"x.png\" alt=\"y\">"
	if got := ImageWhitespace(input); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEmptySpans(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`<p>a<span></span>b</p>`, `<p>ab</p>`},
		{`<p>a<span class="x">  \n </span>b</p>`, `<p>a<span class="x">  \n </span>b</p>`},
		{"<p>a<span class=\"x\"> \n\t</span>b</p>", `<p>ab</p>`},
		{`<p><span>kept</span></p>`, `<p><span>kept</span></p>`},
		{`<p><span class="a"><span> </span></span>x</p>`, `<p>x</p>`},
		{`<p><span><span><span></span></span> </span>x<span>y<span></span></span></p>`, `<p>x<span>y</span></p>`},
	}
	for _, tt := range tests {
		if got := EmptySpans(tt.input); got != tt.want {
			t.Errorf("EmptySpans(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStripLinksAndIDs(t *testing.T) {
	input := `<a href="#note1" id="ref1" class="c">x</a><div data-id="keep" id='old'>y</div>`
	want := `<a class="c">x</a><div data-id="keep">y</div>`
	if got := StripLinksAndIDs(input); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAssignIDs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare tag", `<p>x</p>`, `<p id="tag-1">x</p>`},
		{"with attributes", `<p class="a">x</p>`, `<p id="tag-1" class="a">x</p>`},
		{"newline kept", "<div\nclass=\"a\">", "<div id=\"tag-1\"\nclass=\"a\">"},
		{"nested order", `<div><p>a</p><p>b</p></div>`, `<div id="tag-1"><p id="tag-2">a</p><p id="tag-3">b</p></div>`},
		{"closing and doctype skipped", `<!DOCTYPE html></p>`, `<!DOCTYPE html></p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssignIDs(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := "<html><body><h1 id=\"c1\">Title</h1>\n<p>One <a href=\"#n1\">1</a><span> </span></p>" +
		"<img\n src=\"/tmp/work-1234/media/fig.png\"\n alt=\"f\"></body></html>"

	first := Normalize(raw)
	second := Normalize(raw)
	if first != second {
		t.Fatalf("outputs differ:\n%q\n%q", first, second)
	}

	// The same document converted from another directory must match.
	moved := "<html><body><h1 id=\"c1\">Title</h1>\n<p>One <a href=\"#n1\">1</a><span> </span></p>" +
		"<img\n      src=\"/home/someone/else/media/fig.png\"\n alt=\"f\"></body></html>"
	if got := Normalize(moved); got != first {
		t.Errorf("location-dependent output:\n%q\n%q", got, first)
	}
}

func TestNormalize_IdentifiersUniqueAndOrdered(t *testing.T) {
	raw := `<html><head><title>t</title></head><body><div id="x"><p>a</p><p>b<em>c</em></p></div></body></html>`
	out := Normalize(raw)

	re := regexp.MustCompile(`id="tag-(\d+)"`)
	matches := re.FindAllStringSubmatch(out, -1)
	if len(matches) != 8 {
		t.Fatalf("got %d identifiers, want 8 in %q", len(matches), out)
	}
	seen := make(map[int]bool)
	for i, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			t.Fatalf("bad identifier %q", m[0])
		}
		if seen[n] {
			t.Errorf("duplicate identifier %d", n)
		}
		seen[n] = true
		if n != i+1 {
			t.Errorf("identifier %d at position %d, want %d", n, i, i+1)
		}
	}
	if regexp.MustCompile(`id="x"`).MatchString(out) {
		t.Error("stale identifier survived normalization")
	}
}

func TestAnchorAttr(t *testing.T) {
	if got := AnchorAttr("tag-5"); got != `id="tag-5"` {
		t.Errorf("got %q", got)
	}
}
