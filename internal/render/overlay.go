package render

import (
	"bytes"
	"fmt"
	"log"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// overlayResources holds the font and image objects shared by every page of
// one render. Created lazily on first use.
type overlayResources struct {
	fontRef  *types.IndirectRef
	imageRef *types.IndirectRef
}

// overlayDocument applies draw ops to a PDF and serializes the result.
// Failures on a single page skip that page's ops and keep going; only
// document-level parse or write failures abort.
func overlayDocument(data []byte, ops []drawOp, cfg Config) (out []byte, pages, drawn, skipped int, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to ensure page count: %w", err)
	}

	byPage := make(map[int][]drawOp)
	for _, op := range ops {
		byPage[op.page()] = append(byPage[op.page()], op)
	}
	pageNrs := make([]int, 0, len(byPage))
	for nr := range byPage {
		pageNrs = append(pageNrs, nr)
	}
	sort.Ints(pageNrs)

	shared := &overlayResources{}
	for _, nr := range pageNrs {
		pageOps := byPage[nr]
		if nr < 1 || nr > ctx.PageCount {
			log.Printf("[render] page %d out of range (document has %d), skipping %d field(s)", nr, ctx.PageCount, len(pageOps))
			skipped += len(pageOps)
			continue
		}
		if err := applyPageOps(ctx, nr, pageOps, shared, cfg); err != nil {
			log.Printf("[render] failed to draw on page %d, skipping %d field(s): %v", nr, len(pageOps), err)
			skipped += len(pageOps)
			continue
		}
		drawn += len(pageOps)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), ctx.PageCount, drawn, skipped, nil
}

// applyPageOps emits all ops for one page into a content stream appended
// behind the page's existing streams, registering the overlay font and image
// in the page resources as needed.
func applyPageOps(ctx *model.Context, pageNr int, ops []drawOp, shared *overlayResources, cfg Config) error {
	pageDict, _, inhPAttrs, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return fmt.Errorf("page dict missing")
	}

	geo := geometryFor(inhPAttrs)

	var content bytes.Buffer
	needFont := false
	var img *signatureImage
	for _, op := range ops {
		op.appendTo(&content, geo, cfg)
		if op.usesFont() {
			needFont = true
		}
		if op.kind == opImage && op.img != nil {
			img = op.img
		}
	}
	if content.Len() == 0 {
		return nil
	}

	res := ensurePageResources(ctx, pageDict, inhPAttrs)
	if needFont {
		ref, err := shared.font(ctx)
		if err != nil {
			return err
		}
		if err := ensureResourceEntry(ctx, res, "Font", overlayFontName, *ref); err != nil {
			return err
		}
	}
	if img != nil {
		ref, err := shared.image(ctx, img)
		if err != nil {
			return err
		}
		if err := ensureResourceEntry(ctx, res, "XObject", overlayImageName, *ref); err != nil {
			return err
		}
	}

	return appendPageContent(ctx, pageDict, content.Bytes())
}

// geometryFor reads the page MediaBox, falling back to US Letter.
func geometryFor(inhPAttrs *model.InheritedPageAttrs) pageGeometry {
	if inhPAttrs == nil || inhPAttrs.MediaBox == nil {
		return defaultGeometry()
	}
	mb := inhPAttrs.MediaBox
	if mb.Width() <= 0 || mb.Height() <= 0 {
		return defaultGeometry()
	}
	return pageGeometry{llx: mb.LL.X, lly: mb.LL.Y, w: mb.Width(), h: mb.Height()}
}

// ensurePageResources returns the page's own resource dict, materializing one
// from inherited resources when the page has none.
func ensurePageResources(ctx *model.Context, pageDict types.Dict, inhPAttrs *model.InheritedPageAttrs) types.Dict {
	if obj, found := pageDict.Find("Resources"); found {
		if d, err := ctx.DereferenceDict(obj); err == nil && d != nil {
			return d
		}
	}

	res := types.NewDict()
	if inhPAttrs != nil && inhPAttrs.Resources != nil {
		for k, v := range inhPAttrs.Resources {
			res[k] = v
		}
	}
	pageDict.Update("Resources", res)
	return res
}

// ensureResourceEntry registers ref under res[category][name], creating the
// category dict when absent.
func ensureResourceEntry(ctx *model.Context, res types.Dict, category, name string, ref types.IndirectRef) error {
	var d types.Dict
	if obj, found := res.Find(category); found {
		dd, err := ctx.DereferenceDict(obj)
		if err != nil {
			return fmt.Errorf("failed to resolve %s resources: %w", category, err)
		}
		if dd != nil {
			d = dd
		}
	}
	if d == nil {
		d = types.NewDict()
		res.Update(category, d)
	}
	d.Update(name, ref)
	return nil
}

// appendPageContent appends a content stream after the page's existing ones.
// The existing streams are bracketed by a pushed graphics state so a final
// translation or scale in them cannot displace the overlay.
func appendPageContent(ctx *model.Context, pageDict types.Dict, bb []byte) error {
	obj, found := pageDict.Find("Contents")
	if !found {
		ref, err := contentStreamRef(ctx, bb)
		if err != nil {
			return err
		}
		pageDict.Update("Contents", *ref)
		return nil
	}

	guardRef, err := contentStreamRef(ctx, []byte("q\n"))
	if err != nil {
		return err
	}
	ourRef, err := contentStreamRef(ctx, append([]byte("Q\n"), bb...))
	if err != nil {
		return err
	}

	var existing types.Array
	switch o := obj.(type) {
	case types.Array:
		existing = o
	default:
		resolved, err := ctx.Dereference(obj)
		if err != nil {
			return fmt.Errorf("failed to resolve page contents: %w", err)
		}
		if arr, ok := resolved.(types.Array); ok {
			existing = arr
		} else {
			existing = types.Array{obj}
		}
	}

	combined := make(types.Array, 0, len(existing)+2)
	combined = append(combined, *guardRef)
	combined = append(combined, existing...)
	combined = append(combined, *ourRef)
	pageDict.Update("Contents", combined)
	return nil
}

// contentStreamRef stores bb as a new flate-encoded stream object.
func contentStreamRef(ctx *model.Context, bb []byte) (*types.IndirectRef, error) {
	sd, err := ctx.NewStreamDictForBuf(bb)
	if err != nil {
		return nil, fmt.Errorf("failed to create content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode content stream: %w", err)
	}
	return ctx.IndRefForNewObject(*sd)
}

// font returns the shared overlay font object, creating it on first use.
func (r *overlayResources) font(ctx *model.Context) (*types.IndirectRef, error) {
	if r.fontRef != nil {
		return r.fontRef, nil
	}
	d := types.Dict(map[string]types.Object{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	ref, err := ctx.IndRefForNewObject(d)
	if err != nil {
		return nil, fmt.Errorf("failed to create overlay font: %w", err)
	}
	r.fontRef = ref
	return ref, nil
}

// image returns the shared signature XObject, creating it on first use.
func (r *overlayResources) image(ctx *model.Context, img *signatureImage) (*types.IndirectRef, error) {
	if r.imageRef != nil {
		return r.imageRef, nil
	}
	sd, err := ctx.NewStreamDictForBuf(img.rgb)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature stream: %w", err)
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Image")
	sd.InsertInt("Width", img.width)
	sd.InsertInt("Height", img.height)
	sd.InsertName("ColorSpace", "DeviceRGB")
	sd.InsertInt("BitsPerComponent", 8)
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode signature stream: %w", err)
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature object: %w", err)
	}
	r.imageRef = ref
	return ref, nil
}
