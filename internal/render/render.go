// Package render turns cards and book structure into printable pages: HTML
// from embedded templates, converted to PDF by an external command.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"github.com/jackzampolin/bookdeck/internal/jobs"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cardTemplate     = "card.html"
	sectionTemplate  = "section.html"
	tocTemplate      = "toc.html"
	passagesTemplate = "passages.html"

	convertTask = "convert"
)

// fallbackColor is used when a model-provided color is not a hex triplet.
const fallbackColor = "#444444"

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config configures a Renderer.
type Config struct {
	Converter Converter // defaults to weasyprint
	Workers   int       // conversion workers, default runtime.NumCPU()
	Logger    *slog.Logger
}

// Renderer renders pages and converts them to PDF.
type Renderer struct {
	conv   Converter
	pool   *jobs.CPUWorkerPool
	tmpl   *template.Template
	md     goldmark.Markdown
	logger *slog.Logger
}

// New creates a Renderer and parses the page templates.
func New(cfg Config) (*Renderer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Converter == nil {
		cfg.Converter = NewCommandConverter(DefaultCommand, cfg.Logger)
	}

	r := &Renderer{
		conv:   cfg.Converter,
		md:     goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe())),
		logger: cfg.Logger,
	}
	r.pool = jobs.NewCPUWorkerPool(jobs.CPUWorkerPoolConfig{
		Name:        "render",
		Logger:      cfg.Logger,
		WorkerCount: cfg.Workers,
	})
	r.pool.RegisterHandler(convertTask, r.convertUnit)

	tmpl, err := template.New("pages").Funcs(template.FuncMap{
		"markdown":  r.markdown,
		"imageURL":  imageURL,
		"color":     color,
		"plainText": PlainText,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Page is one HTML document to convert.
type Page struct {
	HTMLPath string
	PDFPath  string
}

// execute renders the named template into a string.
func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// writePage renders a template to <dir>/<base>.html and returns the page.
func (r *Renderer) writePage(name string, data any, dir, base string) (Page, error) {
	doc, err := r.execute(name, data)
	if err != nil {
		return Page{}, err
	}
	p := Page{
		HTMLPath: filepath.Join(dir, base+".html"),
		PDFPath:  filepath.Join(dir, base+".pdf"),
	}
	if err := os.WriteFile(p.HTMLPath, []byte(doc), 0o644); err != nil {
		return Page{}, fmt.Errorf("failed to write %s: %w", p.HTMLPath, err)
	}
	return p, nil
}

// Convert converts pages on the worker pool. It returns the PDFs that were
// written, in page order, and every conversion failure joined.
func (r *Renderer) Convert(ctx context.Context, pages []Page) ([]string, error) {
	units := make([]*jobs.WorkUnit, len(pages))
	for i, p := range pages {
		units[i] = &jobs.WorkUnit{Task: convertTask, Data: p}
	}
	results := r.pool.Run(ctx, units)

	var out []string
	var errs []error
	for i, res := range results {
		p := pages[i]
		if !res.Success() {
			r.logger.Warn("page conversion failed", "index", i, "file", filepath.Base(p.HTMLPath), "error", res.Error)
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(p.HTMLPath), res.Error))
			continue
		}
		r.logger.Info("page rendered", "index", i, "file", filepath.Base(p.PDFPath), "duration", res.Duration)
		out = append(out, p.PDFPath)
	}
	return out, errors.Join(errs...)
}

func (r *Renderer) convertUnit(ctx context.Context, unit *jobs.WorkUnit) (any, error) {
	p, ok := unit.Data.(Page)
	if !ok {
		return nil, fmt.Errorf("unexpected work unit data %T", unit.Data)
	}
	return p.PDFPath, r.conv.Convert(ctx, p.HTMLPath, p.PDFPath)
}

func (r *Renderer) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// imageURL returns a data URL for a base64 image payload.
func imageURL(payload string) template.URL {
	return template.URL("data:" + imageMIME(payload) + ";base64," + payload)
}

func imageMIME(payload string) string {
	head := payload
	if len(head) > 512 {
		head = head[:512]
	}
	head = head[:len(head)/4*4]
	data, err := base64.StdEncoding.DecodeString(head)
	if err == nil {
		if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
			return mime
		}
	}
	return "image/png"
}

func color(hex string) template.CSS {
	if hexColorRe.MatchString(hex) {
		return template.CSS(hex)
	}
	return template.CSS(fallbackColor)
}

var spaceRe = regexp.MustCompile(`\s+`)

// PlainText returns the text content of an HTML fragment with whitespace
// collapsed. Unclosed trailing tags are ignored.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " "))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
