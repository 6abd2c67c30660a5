package extract

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/formfill/formfill/internal/document"
)

// formFields walks every page's widget annotations and emits one candidate
// per interactive form field, using the field's declared name as the raw
// text. Native fields carry full confidence.
func formFields(data []byte) ([]document.Candidate, int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, 0, fmt.Errorf("failed to ensure page count: %w", err)
	}

	var candidates []document.Candidate
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, inhPAttrs, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}

		for i, annotRef := range annots {
			annotDict, err := ctx.DereferenceDict(annotRef)
			if err != nil || annotDict == nil {
				continue
			}
			if !isWidgetAnnotation(ctx, annotDict) {
				continue
			}

			name := fieldName(ctx, annotDict, 0)
			if name == "" {
				name = fmt.Sprintf("field_%d_%d", pageNr, i)
			}

			bbox, ok := widgetBBox(ctx, annotDict, pageNr, inhPAttrs.MediaBox)
			if !ok {
				continue
			}

			candidates = append(candidates, document.Candidate{
				ID:         uuid.New().String(),
				RawText:    name,
				Confidence: acroFieldConfidence,
				BBox:       bbox,
			})
		}
	}
	return candidates, ctx.PageCount, nil
}

// isWidgetAnnotation reports whether the annotation is a form-field widget.
func isWidgetAnnotation(ctx *model.Context, annotDict types.Dict) bool {
	subObj, found := annotDict.Find("Subtype")
	if !found {
		return false
	}
	name, err := ctx.DereferenceName(subObj, model.V10, nil)
	return err == nil && name == "Widget"
}

// fieldName resolves the field's T entry, walking up Parent references for
// fields whose widget carries no name of its own.
func fieldName(ctx *model.Context, fieldDict types.Dict, depth int) string {
	if depth > maxParentDepth {
		return ""
	}

	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil && name != "" {
			return name
		}
	}

	if parentObj, found := fieldDict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return fieldName(ctx, parentDict, depth+1)
		}
	}
	return ""
}

// widgetBBox converts the widget's Rect into a normalized top-left-origin box
// on its page.
func widgetBBox(ctx *model.Context, annotDict types.Dict, pageNr int, mediaBox *types.Rectangle) (document.BoundingBox, bool) {
	rectObj, found := annotDict.Find("Rect")
	if !found {
		return document.BoundingBox{}, false
	}
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return document.BoundingBox{}, false
	}

	coords := make([]float64, 4)
	for i, coord := range rectArray {
		f, err := ctx.DereferenceNumber(coord)
		if err != nil {
			return document.BoundingBox{}, false
		}
		coords[i] = f
	}

	llx, lly, urx, ury := coords[0], coords[1], coords[2], coords[3]
	if llx > urx {
		llx, urx = urx, llx
	}
	if lly > ury {
		lly, ury = ury, lly
	}

	box := defaultPageBox()
	if mediaBox != nil && mediaBox.Width() > 0 && mediaBox.Height() > 0 {
		box = pageBox{
			llx: mediaBox.LL.X,
			lly: mediaBox.LL.Y,
			urx: mediaBox.UR.X,
			ury: mediaBox.UR.Y,
		}
	}

	bbox := document.BoundingBox{
		Page:   pageNr,
		X:      (llx - box.llx) / box.width(),
		Y:      (box.ury - ury) / box.height(),
		Width:  (urx - llx) / box.width(),
		Height: (ury - lly) / box.height(),
	}
	return bbox.Clamp(), true
}
