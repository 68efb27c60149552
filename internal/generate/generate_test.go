package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/bookdeck/internal/allocate"
	"github.com/jackzampolin/bookdeck/internal/book"
	"github.com/jackzampolin/bookdeck/internal/llmcall"
	"github.com/jackzampolin/bookdeck/internal/prompts/structure"
	"github.com/jackzampolin/bookdeck/internal/providers"
	"github.com/jackzampolin/bookdeck/internal/segment"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testDoc = `<body id="tag-1"><h1 id="tag-2">One</h1><p id="tag-3">` + strings.Repeat("a", 600) +
	`</p><h1 id="tag-4">Two</h1><p id="tag-5">` + strings.Repeat("b", 200) +
	`</p><p id="tag-6">end</p></body>`

func testStructure() book.Structure {
	return book.Structure{Sections: []book.Section{
		{
			Name:     "First",
			Color:    book.Color{Name: "red", Hex: "#FF0000"},
			Chapters: []book.Chapter{{Name: "One", StartTag: "tag-2", EndTag: "tag-4"}},
		},
		{
			Name:     "Second",
			Color:    book.Color{Name: "blue", Hex: "#0000FF"},
			Chapters: []book.Chapter{{Name: "Two", StartTag: "tag-4", EndTag: "tag-6"}},
		},
	}}
}

func newTestGenerator(t *testing.T, llm providers.LLMClient, mutate func(*Config)) *Generator {
	t.Helper()
	cfg := Config{LLM: llm, Book: "test", Logger: quietLogger()}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func userMessage(req *providers.ChatRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

func TestNew_RequiresLLM(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without an LLM client")
	}
}

func TestAnalyzeStructure(t *testing.T) {
	reply := `{"sections":[{"section_name":"First","section_introduction":"intro",
"section_color":{"name":"red","html_color":"#FF0000"},
"key_passages":[
 {"passage_start_tag":"tag-2","passage_end_tag":"tag-3","chapter":"One"},
 {"passage_start_tag":"tag-98","passage_end_tag":"tag-99","chapter":"One"}],
"visual_landscape_description":"hills",
"chapters":[{"chapter_name":"One","chapter_comment":"c","chapter_start_tag":"tag-2","chapter_end_tag":"tag-6","key_quotes":[]}],
"image_base64":"junk"}]}`

	llm := providers.NewMockClient()
	llm.Respond = func(req *providers.ChatRequest) (string, error) { return reply, nil }

	callLog := filepath.Join(t.TempDir(), llmcall.FileName)
	g := newTestGenerator(t, llm, func(c *Config) {
		c.Recorder = llmcall.NewRecorder(callLog, quietLogger())
		c.Sections = 4
	})

	got, err := g.AnalyzeStructure(context.Background(), testDoc)
	if err != nil {
		t.Fatalf("AnalyzeStructure() error = %v", err)
	}
	if len(got.Sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(got.Sections))
	}
	sec := got.Sections[0]
	if want := `<h1 id="tag-2">One</h1><p id="tag-3"`; sec.KeyPassages[0].Text != want {
		t.Errorf("passage text = %q, want %q", sec.KeyPassages[0].Text, want)
	}
	if sec.KeyPassages[1].Text != "" {
		t.Errorf("missing-anchor passage text = %q, want empty", sec.KeyPassages[1].Text)
	}
	if sec.Image != "" {
		t.Errorf("image = %q, want empty", sec.Image)
	}

	reqs := llm.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Messages[0].Role != "system" || !strings.Contains(reqs[0].Messages[0].Content, "4") {
		t.Error("system prompt missing or not rendered with the section count")
	}
	if !strings.Contains(userMessage(&reqs[0]), testDoc) {
		t.Error("user prompt does not carry the document")
	}
	if reqs[0].ResponseFormat == nil {
		t.Error("structure request has no response format")
	}
	if reqs[0].Model != DefaultModel {
		t.Errorf("model = %q, want %q", reqs[0].Model, DefaultModel)
	}

	calls, err := llmcall.List(callLog, llmcall.QueryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(calls) != 1 || calls[0].PromptKey != structure.UserPromptKey || !calls[0].Success {
		t.Errorf("recorded calls = %+v", calls)
	}
}

func TestAnalyzeStructure_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no sections", `{"sections":[]}`},
		{"section without chapters", `{"sections":[{"section_name":"x","chapters":[]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := providers.NewMockClient()
			llm.Respond = func(*providers.ChatRequest) (string, error) { return tt.reply, nil }
			g := newTestGenerator(t, llm, nil)

			_, err := g.AnalyzeStructure(context.Background(), testDoc)
			if !errors.Is(err, ErrEmptyStructure) {
				t.Errorf("error = %v, want ErrEmptyStructure", err)
			}
		})
	}
}

func TestAnalyzeStructure_LLMError(t *testing.T) {
	llm := providers.NewMockClient()
	llm.ShouldFail = true
	callLog := filepath.Join(t.TempDir(), llmcall.FileName)
	g := newTestGenerator(t, llm, func(c *Config) {
		c.Recorder = llmcall.NewRecorder(callLog, quietLogger())
	})

	if _, err := g.AnalyzeStructure(context.Background(), testDoc); err == nil {
		t.Fatal("expected error")
	}
	calls, _ := llmcall.List(callLog, llmcall.QueryFilter{})
	if len(calls) != 1 || calls[0].Success {
		t.Errorf("recorded calls = %+v, want one failed call", calls)
	}
}

// cardReply answers every card request with two cards named after the
// prompt kind and the section text.
func cardReply(req *providers.ChatRequest) (string, error) {
	user := userMessage(req)
	kind := "concept"
	if strings.Contains(user, "concrete examples") {
		kind = "example"
	}
	section := "second"
	if strings.Contains(user, "aaaa") {
		section = "first"
	}
	return fmt.Sprintf(`{"card_definitions":[
{"title":"%[1]s-%[2]s-1","description":"d","illustration":"scene","quotes":["q"]},
{"title":"%[1]s-%[2]s-2","description":"d","illustration":"scene","quotes":[]}]}`, section, kind), nil
}

func TestGenerateCards(t *testing.T) {
	llm := providers.NewMockClient()
	llm.Respond = cardReply
	g := newTestGenerator(t, llm, nil)

	const total = 20
	deck, err := g.GenerateCards(context.Background(), testDoc, testStructure(), total)
	if err != nil {
		t.Fatalf("GenerateCards() error = %v", err)
	}

	segments, err := segment.SplitSections(testDoc, testStructure())
	if err != nil {
		t.Fatal(err)
	}
	plan := allocate.Plan(segments, total, allocate.ConceptRatio)

	var wantTitles []string
	var wantCalls int
	for i, name := range []string{"first", "second"} {
		if plan[i].Concepts > 0 {
			wantTitles = append(wantTitles, name+"-concept-1", name+"-concept-2")
			wantCalls++
		}
		if plan[i].Examples > 0 {
			wantTitles = append(wantTitles, name+"-example-1", name+"-example-2")
			wantCalls++
		}
	}
	if got := int(llm.RequestCount()); got != wantCalls {
		t.Errorf("requests = %d, want %d", got, wantCalls)
	}
	if len(deck) != len(wantTitles) {
		t.Fatalf("cards = %d, want %d", len(deck), len(wantTitles))
	}
	for i, c := range deck {
		if c.Title != wantTitles[i] {
			t.Errorf("card %d title = %q, want %q", i, c.Title, wantTitles[i])
		}
		wantKind := book.KindConcept
		if strings.Contains(c.Title, "example") {
			wantKind = book.KindExample
		}
		if c.Kind != wantKind {
			t.Errorf("card %d kind = %q, want %q", i, c.Kind, wantKind)
		}
		wantColor := "#FF0000"
		if strings.HasPrefix(c.Title, "second") {
			wantColor = "#0000FF"
		}
		if c.Color != wantColor {
			t.Errorf("card %d color = %q, want %q", i, c.Color, wantColor)
		}
	}

	// The requested counts follow the allocation plan.
	for _, req := range llm.Requests() {
		user := userMessage(&req)
		i := 1
		if strings.Contains(user, "aaaa") {
			i = 0
		}
		want := plan[i].Concepts
		if strings.Contains(user, "concrete examples") {
			want = plan[i].Examples
		}
		if !strings.Contains(user, fmt.Sprintf(" %d Zettelkasten", want)) {
			t.Errorf("section %d prompt does not request %d cards", i, want)
		}
	}
}

func TestGenerateCards_ZeroBudgetSkipsRequests(t *testing.T) {
	llm := providers.NewMockClient()
	llm.Respond = cardReply
	g := newTestGenerator(t, llm, nil)

	deck, err := g.GenerateCards(context.Background(), testDoc, testStructure(), 1)
	if err != nil {
		t.Fatalf("GenerateCards() error = %v", err)
	}
	if len(deck) != 0 {
		t.Errorf("cards = %d, want 0", len(deck))
	}
	if llm.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", llm.RequestCount())
	}
}

func TestGenerateCards_MissingAnchorIsFatal(t *testing.T) {
	s := testStructure()
	s.Sections[1].Chapters[0].EndTag = "tag-404"

	llm := providers.NewMockClient()
	llm.Respond = cardReply
	g := newTestGenerator(t, llm, nil)

	_, err := g.GenerateCards(context.Background(), testDoc, s, 10)
	if !errors.Is(err, segment.ErrAnchorNotFound) {
		t.Errorf("error = %v, want ErrAnchorNotFound", err)
	}
	if llm.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", llm.RequestCount())
	}
}

func TestGenerateCards_LLMErrorPropagates(t *testing.T) {
	var n atomic.Int32
	llm := providers.NewMockClient()
	llm.Respond = func(req *providers.ChatRequest) (string, error) {
		if n.Add(1) == 1 {
			return "", errors.New("boom")
		}
		return cardReply(req)
	}
	g := newTestGenerator(t, llm, nil)

	if _, err := g.GenerateCards(context.Background(), testDoc, testStructure(), 20); err == nil {
		t.Error("expected error")
	}
}

func testDeck() book.CardSet {
	return book.CardSet{
		{Title: "a", Illustration: "a cat", Kind: book.KindConcept, Quotes: []string{"q"}},
		{Title: "b", Illustration: "a dog", Kind: book.KindConcept},
		{Title: "c", Illustration: "a bird", Kind: book.KindExample},
	}
}

func TestAddStyles(t *testing.T) {
	llm := providers.NewMockClient()
	llm.Respond = func(req *providers.ChatRequest) (string, error) {
		return `{"style_list":["watercolor","ink illustration"]}`, nil
	}
	g := newTestGenerator(t, llm, nil)

	deck := testDeck()
	got, err := g.AddStyles(context.Background(), deck)
	if err != nil {
		t.Fatalf("AddStyles() error = %v", err)
	}

	want := []string{"a cat watercolor", "a dog ink illustration", "a bird"}
	for i, p := range got.Prompts() {
		if p != want[i] {
			t.Errorf("card %d illustration = %q, want %q", i, p, want[i])
		}
	}
	if deck[0].Illustration != "a cat" {
		t.Error("input deck was modified")
	}

	user := userMessage(&llm.Requests()[0])
	for _, marker := range []string{"CARD #0\n", "CARD #2\n", "\n\n----\n\n", "exactly 3 styles"} {
		if !strings.Contains(user, marker) {
			t.Errorf("style prompt missing %q", marker)
		}
	}
}

func TestAddStyles_EmptyDeck(t *testing.T) {
	llm := providers.NewMockClient()
	g := newTestGenerator(t, llm, nil)

	got, err := g.AddStyles(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("AddStyles(nil) = %v, %v", got, err)
	}
	if llm.RequestCount() != 0 {
		t.Error("empty deck made a request")
	}
}

func TestGenerateImages(t *testing.T) {
	images := &providers.MockImageGenerator{
		Fail: func(req providers.ImageRequest) bool { return req.Prompt == "a dog" },
	}
	g := newTestGenerator(t, providers.NewMockClient(), func(c *Config) {
		c.Images = images
		c.ImageModel = "runware:101@1"
		c.ImageConcurrency = 2
	})

	deck := testDeck()
	s := testStructure()
	s.Sections[0].Landscape = "hills"
	s.Sections[1].Landscape = "sea"

	gotDeck, gotStructure, err := g.GenerateImages(context.Background(), deck, s)
	if err != nil {
		t.Fatalf("GenerateImages() error = %v", err)
	}

	cardReq := providers.ImageRequest{Prompt: "a cat", Size: providers.CardImageSize}
	if want := providers.MockImagePayload(cardReq); gotDeck[0].Image != want {
		t.Errorf("card 0 image = %q, want %q", gotDeck[0].Image, want)
	}
	if gotDeck[1].Image != book.NoImage {
		t.Errorf("card 1 image = %q, want %q", gotDeck[1].Image, book.NoImage)
	}
	if gotDeck[1].HasImage() {
		t.Error("sentinel reported as image")
	}
	landReq := providers.ImageRequest{Prompt: "sea", Size: providers.LandscapeImageSize}
	if want := providers.MockImagePayload(landReq); gotStructure.Sections[1].Image != want {
		t.Errorf("landscape 1 image = %q, want %q", gotStructure.Sections[1].Image, want)
	}
	if deck[0].Image != "" || s.Sections[0].Image != "" {
		t.Error("inputs were modified")
	}

	reqs := images.Requests()
	if len(reqs) != len(deck)+len(s.Sections) {
		t.Fatalf("image requests = %d, want %d", len(reqs), len(deck)+len(s.Sections))
	}
	for _, r := range reqs {
		if r.NegativePrompt != providers.DefaultNegativePrompt {
			t.Errorf("negative prompt = %q", r.NegativePrompt)
		}
		if r.Model != "runware:101@1" {
			t.Errorf("model = %q", r.Model)
		}
	}
}

func TestGenerateImages_Errors(t *testing.T) {
	t.Run("no generator", func(t *testing.T) {
		g := newTestGenerator(t, providers.NewMockClient(), nil)
		_, _, err := g.GenerateImages(context.Background(), testDeck(), testStructure())
		if !errors.Is(err, ErrNoImageGenerator) {
			t.Errorf("error = %v, want ErrNoImageGenerator", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		g := newTestGenerator(t, providers.NewMockClient(), func(c *Config) {
			c.Images = &providers.MockImageGenerator{}
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := g.GenerateImages(ctx, testDeck(), testStructure())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestDefaultResolver(t *testing.T) {
	r := DefaultResolver(nil, quietLogger())
	var keys []string
	for _, p := range r.AllEmbedded() {
		keys = append(keys, p.Key)
	}
	got, _ := json.Marshal(keys)
	want := `["stages.cards.concept","stages.cards.example","stages.structure.system","stages.structure.user","stages.style.user"]`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
