package compose

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jackzampolin/bookdeck/internal/layout"
)

// pageForm is a source page wrapped as a form XObject.
type pageForm struct {
	ref *types.IndirectRef
	llx float64 // media box origin, compensated when placing
	lly float64
}

type placedForm struct {
	form      pageForm
	placement layout.Placement
}

// newPageForm copies page pageNr's content and resources into a form
// XObject so it can be drawn anywhere with a transformation matrix.
func newPageForm(ctx *model.Context, pageNr int) (pageForm, error) {
	if pageNr < 1 || pageNr > ctx.PageCount {
		return pageForm{}, fmt.Errorf("page %d out of range", pageNr)
	}

	d, _, inh, err := ctx.PageDict(pageNr, true)
	if err != nil {
		return pageForm{}, fmt.Errorf("failed to read page dict: %w", err)
	}
	if d == nil || inh == nil || inh.MediaBox == nil {
		return pageForm{}, fmt.Errorf("page %d has no media box", pageNr)
	}

	var content []byte
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return pageForm{}, fmt.Errorf("failed to extract content: %w", err)
	}
	if r != nil {
		if content, err = io.ReadAll(r); err != nil {
			return pageForm{}, fmt.Errorf("failed to read content: %w", err)
		}
	}

	box := inh.MediaBox
	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return pageForm{}, fmt.Errorf("failed to create form stream: %w", err)
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.Insert("BBox", box.Array())
	sd.Insert("Matrix", types.NewNumberArray(1, 0, 0, 1, 0, 0))
	if inh.Resources != nil {
		sd.Insert("Resources", inh.Resources)
	}
	if err := sd.Encode(); err != nil {
		return pageForm{}, fmt.Errorf("failed to encode form stream: %w", err)
	}

	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return pageForm{}, fmt.Errorf("failed to register form: %w", err)
	}
	return pageForm{ref: ref, llx: box.LL.X, lly: box.LL.Y}, nil
}

// formName is the resource name of the i-th form on a sheet.
func formName(i int) string {
	return "Fm" + strconv.Itoa(i)
}

// sheetContent draws every placed form with its scale and translation.
func sheetContent(placements []placedForm) []byte {
	var buf bytes.Buffer
	for i, p := range placements {
		s := p.placement.Scale
		tx := p.placement.TX - s*p.form.llx
		ty := p.placement.TY - s*p.form.lly
		fmt.Fprintf(&buf, "q %s 0 0 %s %s %s cm /%s Do Q\n",
			num(s), num(s), num(tx), num(ty), formName(i))
	}
	return buf.Bytes()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// newSheetPage creates a page of the sheet's size that draws its forms.
func newSheetPage(ctx *model.Context, parent types.IndirectRef, sh builtSheet) (*types.IndirectRef, error) {
	xobjects := types.Dict{}
	for i, p := range sh.placements {
		xobjects[formName(i)] = *p.form.ref
	}

	sd, err := ctx.NewStreamDictForBuf(sheetContent(sh.placements))
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	contentRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}

	page := types.Dict{
		"Type":      types.Name("Page"),
		"Parent":    parent,
		"MediaBox":  types.NewRectangle(0, 0, sh.width, sh.height).Array(),
		"Resources": types.Dict{"XObject": xobjects},
		"Contents":  *contentRef,
	}
	return ctx.IndRefForNewObject(page)
}
